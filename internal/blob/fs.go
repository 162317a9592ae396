package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// Filesystem stores blobs as files under a root directory. The content type
// is not persisted; it is derived from the extension or sniffed on Open.
type Filesystem struct {
	root    string
	baseURL string
}

// NewFilesystem returns a store rooted at root, creating it if needed.
func NewFilesystem(root, baseURL string) (*Filesystem, error) {
	if root == "" {
		root = "./blobdata"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}
	return &Filesystem{root: root, baseURL: baseURL}, nil
}

func (s *Filesystem) Driver() Driver { return DriverFilesystem }

func (s *Filesystem) pathFor(key string) (string, string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return k, filepath.Join(s.root, filepath.FromSlash(k)), nil
}

func (s *Filesystem) Put(_ context.Context, key string, r io.Reader, contentType string) (Info, error) {
	k, dataPath, err := s.pathFor(key)
	if err != nil {
		return Info{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return Info{}, fmt.Errorf("creating blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return Info{}, fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	size, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return Info{}, fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Info{}, fmt.Errorf("closing blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return Info{}, fmt.Errorf("moving blob into place: %w", err)
	}

	return Info{Key: k, Size: size, ContentType: contentType}, nil
}

func (s *Filesystem) Open(_ context.Context, key string) (Info, io.ReadCloser, error) {
	k, dataPath, err := s.pathFor(key)
	if err != nil {
		return Info{}, nil, err
	}
	f, err := os.Open(dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Info{}, nil, ErrNotFound
	}
	if err != nil {
		return Info{}, nil, fmt.Errorf("opening blob: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return Info{}, nil, fmt.Errorf("stat blob: %w", err)
	}
	if st.IsDir() {
		_ = f.Close()
		return Info{}, nil, ErrNotFound
	}

	ct := mime.TypeByExtension(filepath.Ext(dataPath))
	if ct == "" {
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		ct = http.DetectContentType(head[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			_ = f.Close()
			return Info{}, nil, fmt.Errorf("rewinding blob: %w", err)
		}
	}
	return Info{Key: k, Size: st.Size(), ContentType: ct}, f, nil
}

func (s *Filesystem) Delete(_ context.Context, key string) error {
	_, dataPath, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dataPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

func (s *Filesystem) URL(_ context.Context, key string) (string, error) {
	k, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return localURL(s.baseURL, k), nil
}
