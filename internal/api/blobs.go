package api

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/erazemk/zaloga/internal/backend/local"
	"github.com/erazemk/zaloga/internal/blob"
	"github.com/erazemk/zaloga/internal/imaging"
)

// BlobsHandler serves attachment blobs. Stores that presign (S3) get a
// redirect to a fresh direct URL, the others are streamed.
type BlobsHandler struct {
	Service *local.Service
}

// Get handles GET /blobs/{key...}. Only the owner can read a blob.
func (h *BlobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	key := r.PathValue("key")

	target, ok, err := h.Service.PresignBlob(r.Context(), claims.UID, key)
	if err != nil {
		writeError(w, err)
		return
	}
	if ok {
		w.Header().Set("Cache-Control", "no-store")
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	info, rc, err := h.Service.OpenBlob(r.Context(), claims.UID, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			jsonError(w, http.StatusNotFound, "blob not found")
			return
		}
		writeError(w, err)
		return
	}
	defer rc.Close()

	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if !servedInline(info.ContentType) {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(info.Key)}))
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("streaming blob", "key", info.Key, "error", err)
	}
}

// servedInline reports whether a blob may render on the app's origin.
// SVG can carry script, so it is downloaded like any other document.
func servedInline(contentType string) bool {
	return imaging.Classify(contentType) == imaging.PreviewImage &&
		!strings.Contains(strings.ToLower(contentType), "svg")
}
