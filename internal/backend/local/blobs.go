package local

import (
	"context"
	"fmt"
	"io"

	"github.com/erazemk/zaloga/internal/backend"
)

// UploadBlob stores r at path, which must lie under users/{uid}/.
func (c *Conn) UploadBlob(ctx context.Context, path string, r io.Reader, contentType string) (backend.BlobRef, error) {
	uid, err := c.uid()
	if err != nil {
		return backend.BlobRef{}, err
	}
	key, err := ownedKey(uid, path)
	if err != nil {
		return backend.BlobRef{}, err
	}

	info, err := c.svc.blobs.Put(ctx, key, r, contentType)
	if err != nil {
		return backend.BlobRef{}, fmt.Errorf("uploading %s: %w", key, err)
	}
	return backend.BlobRef{Path: info.Key, ContentType: contentType, Size: info.Size}, nil
}

// RetrievalURL returns the URL recorded on the attachment.
func (c *Conn) RetrievalURL(ctx context.Context, ref backend.BlobRef) (string, error) {
	return c.svc.blobs.URL(ctx, ref.Path)
}

// DeleteBlob removes an owned blob.
func (c *Conn) DeleteBlob(ctx context.Context, path string) error {
	uid, err := c.uid()
	if err != nil {
		return err
	}
	key, err := ownedKey(uid, path)
	if err != nil {
		return err
	}
	return c.svc.blobs.Delete(ctx, key)
}
