// Package blob stores attachment files behind a small driver interface.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"
)

// Driver identifies a blob store implementation.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// ErrNotFound is returned by Open for unknown keys.
var ErrNotFound = errors.New("blob not found")

// Info describes a stored blob.
type Info struct {
	Key         string
	Size        int64
	ContentType string
}

// Store is implemented by every driver. Put overwrites an existing key and
// Delete of a missing key is not an error.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	Open(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// URL returns the retrieval URL recorded on attachments. It must stay
	// valid for as long as the blob exists.
	URL(ctx context.Context, key string) (string, error)
	Driver() Driver
}

// Presigner is implemented by stores that can hand out short-lived direct
// download URLs. The blob handler redirects to them instead of streaming.
type Presigner interface {
	Presign(ctx context.Context, key string) (string, error)
}

// Config selects and configures a driver.
type Config struct {
	Driver  Driver   `yaml:"driver"`
	FSRoot  string   `yaml:"fs_root"`
	BaseURL string   `yaml:"base_url"`
	S3      S3Config `yaml:"s3"`
}

// Open constructs the configured store. An empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFilesystem, "":
		return NewFilesystem(cfg.FSRoot, cfg.BaseURL)
	case DriverS3:
		return NewS3(ctx, cfg.S3, cfg.BaseURL)
	case DriverMemory:
		return NewMemory(cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// CleanKey validates a key and returns its canonical slash-separated form.
// Empty keys, absolute keys and keys with ".." segments are rejected.
func CleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid key %q: path traversal", key)
		}
	}
	clean := path.Clean(key)
	if clean == "." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return clean, nil
}

// localURL builds base + "/blobs/" + escaped key.
func localURL(base, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/blobs/" + strings.Join(segs, "/")
}

// DefaultURLExpiry is the lifetime of presigned S3 URLs, the SigV4 maximum.
const DefaultURLExpiry = 7 * 24 * time.Hour
