package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/zaloga/internal/inventory"
	"github.com/erazemk/zaloga/internal/model"
)

// errBadPayload marks a malformed event payload.
var errBadPayload = errors.New("invalid event payload")

// maxQuantityDelta bounds a single quantity adjustment.
const maxQuantityDelta = 1_000_000

// eventResult is the response to an event. View is always the state after
// the event ran.
type eventResult struct {
	View      inventory.View `json:"view"`
	Discarded bool           `json:"discarded,omitempty"`
	ItemID    string         `json:"item_id,omitempty"`
}

type eventFunc func(ctx context.Context, c *inventory.Client, payload json.RawMessage) (eventResult, error)

// events maps UI event names to their handlers. logout and addFiles are
// dispatched separately since they need the token and the multipart body.
var events = map[string]eventFunc{
	"search":           onSearch,
	"adjustQuantity":   onAdjustQuantity,
	"openCreate":       onOpenCreate,
	"openEdit":         onOpenEdit,
	"setFields":        onSetFields,
	"removeAttachment": onRemoveAttachment,
	"submit":           onSubmit,
	"cancel":           onCancel,
	"deleteItem":       onDeleteItem,
}

// EventsHandler routes UI events to the caller's session.
type EventsHandler struct {
	Sessions       *Sessions
	Auth           *AuthHandler
	MaxUploadBytes int64
}

// Dispatch handles POST /api/events/{name}.
func (h *EventsHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	claims := GetClaims(r.Context())

	switch name {
	case "logout":
		if err := h.Auth.logout(r, claims); err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to revoke token")
			return
		}
		jsonResponse(w, http.StatusOK, eventResult{View: inventory.BuildView(nil, nil, "", model.Today(time.Now()))})
		return
	case "addFiles":
		h.addFiles(w, r)
		return
	}

	fn, ok := events[name]
	if !ok {
		jsonError(w, http.StatusNotFound, fmt.Sprintf("unknown event %q", name))
		return
	}

	sess, err := h.Sessions.Get(r.Context(), claims)
	if err != nil {
		writeError(w, err)
		return
	}

	payload, err := readPayload(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := fn(r.Context(), sess.Client, payload)
	if err != nil {
		if errors.Is(err, errBadPayload) {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, err)
		return
	}
	res.View = sess.Client.View()
	jsonResponse(w, http.StatusOK, res)
}

func readPayload(r *http.Request) (json.RawMessage, error) {
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return data, nil
}

func decodePayload(payload json.RawMessage, target any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: missing body", errBadPayload)
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return nil
}

func onSearch(_ context.Context, c *inventory.Client, payload json.RawMessage) (eventResult, error) {
	var p struct {
		Text string `json:"text"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return eventResult{}, err
	}
	c.SetSearch(p.Text)
	return eventResult{}, nil
}

func onAdjustQuantity(ctx context.Context, c *inventory.Client, payload json.RawMessage) (eventResult, error) {
	var p struct {
		ID    string `json:"id"`
		Delta int    `json:"delta"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return eventResult{}, err
	}
	if p.Delta > maxQuantityDelta || p.Delta < -maxQuantityDelta {
		return eventResult{}, fmt.Errorf("%w: delta out of range", errBadPayload)
	}
	return eventResult{}, c.AdjustQuantity(ctx, p.ID, p.Delta)
}

func onOpenCreate(_ context.Context, c *inventory.Client, _ json.RawMessage) (eventResult, error) {
	if c.Identity().IsZero() {
		return eventResult{}, inventory.ErrNotAuthenticated
	}
	discarded, err := c.Edit.OpenCreate()
	return eventResult{Discarded: discarded}, err
}

func onOpenEdit(_ context.Context, c *inventory.Client, payload json.RawMessage) (eventResult, error) {
	var p struct {
		ID string `json:"id"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return eventResult{}, err
	}
	discarded, err := c.Edit.OpenEdit(p.ID)
	return eventResult{Discarded: discarded}, err
}

func onSetFields(_ context.Context, c *inventory.Client, payload json.RawMessage) (eventResult, error) {
	var f model.ItemFields
	if err := decodePayload(payload, &f); err != nil {
		return eventResult{}, err
	}
	return eventResult{}, c.Edit.SetFields(f)
}

func onRemoveAttachment(_ context.Context, c *inventory.Client, payload json.RawMessage) (eventResult, error) {
	var p struct {
		Index int    `json:"index"`
		Kind  string `json:"kind"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return eventResult{}, err
	}
	switch p.Kind {
	case "kept":
		return eventResult{}, c.Edit.RemoveKept(p.Index)
	case "pending":
		return eventResult{}, c.Edit.RemovePending(p.Index)
	default:
		return eventResult{}, fmt.Errorf("%w: kind must be kept or pending", errBadPayload)
	}
}

func onSubmit(ctx context.Context, c *inventory.Client, _ json.RawMessage) (eventResult, error) {
	id, err := c.Commit(ctx)
	return eventResult{ItemID: id}, err
}

func onCancel(_ context.Context, c *inventory.Client, _ json.RawMessage) (eventResult, error) {
	return eventResult{}, c.Edit.Cancel()
}

func onDeleteItem(ctx context.Context, c *inventory.Client, payload json.RawMessage) (eventResult, error) {
	var p struct {
		ID string `json:"id"`
	}
	if err := decodePayload(payload, &p); err != nil {
		return eventResult{}, err
	}
	return eventResult{}, c.DeleteItem(ctx, p.ID)
}

// addFiles handles POST /api/events/addFiles, a multipart form with one or
// more "files" parts.
func (h *EventsHandler) addFiles(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Get(r.Context(), GetClaims(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "files too large or invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		jsonError(w, http.StatusBadRequest, "files required")
		return
	}

	files := make([]inventory.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			jsonError(w, http.StatusBadRequest, "reading upload")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			jsonError(w, http.StatusBadRequest, "reading upload")
			return
		}

		mime := fh.Header.Get("Content-Type")
		if mime == "" || mime == "application/octet-stream" {
			mime = http.DetectContentType(data)
		}
		files = append(files, inventory.File{Name: fh.Filename, Type: mime, Data: data})
	}

	if err := sess.Client.Edit.AddFiles(files...); err != nil {
		writeError(w, err)
		return
	}
	slog.Info("files added to edit session", "uid", sess.Client.Identity().UID, "count", len(files))
	jsonResponse(w, http.StatusOK, eventResult{View: sess.Client.View()})
}
