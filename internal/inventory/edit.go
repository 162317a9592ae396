package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/erazemk/zaloga/internal/backend"
	"github.com/erazemk/zaloga/internal/imaging"
	"github.com/erazemk/zaloga/internal/model"
)

// EditMode tells whether an edit session creates or replaces an item.
type EditMode string

const (
	ModeCreate EditMode = "create"
	ModeEdit   EditMode = "edit"
)

// EditState is the state of an EditSession.
type EditState string

const (
	EditClosed EditState = "closed"
	EditOpen   EditState = "open"
	EditSaving EditState = "saving"
)

// File is a local file selected for upload.
type File struct {
	Name string
	Type string
	Data []byte
}

type pendingFile struct {
	File
	preview imaging.PreviewKind
}

// PendingFileView describes a pending file without its contents.
type PendingFileView struct {
	Name    string              `json:"name"`
	Type    string              `json:"type"`
	Size    int                 `json:"size"`
	Preview imaging.PreviewKind `json:"preview"`
}

// KeptAttachmentView is an already stored attachment with its preview kind.
type KeptAttachmentView struct {
	model.Attachment
	Preview imaging.PreviewKind `json:"preview"`
}

// EditSnapshot is a read-only copy of the edit buffer.
type EditSnapshot struct {
	State   EditState            `json:"state"`
	Mode    EditMode             `json:"mode"`
	ItemID  string               `json:"item_id,omitempty"`
	Fields  model.ItemFields     `json:"fields"`
	Pending []PendingFileView    `json:"pending"`
	Kept    []KeptAttachmentView `json:"kept"`
}

// EditSession is the buffer of the create/edit form. There is at most one
// per client; opening another one discards the current buffer.
type EditSession struct {
	items     *ItemStore
	blobs     backend.Blobs
	identity  func() model.Identity
	now       func() time.Time
	downscale bool
	rec       Recorder

	mu       sync.Mutex
	gen      uint64
	state    EditState
	mode     EditMode
	itemID   string
	fields   model.ItemFields
	pending  []pendingFile
	kept     []model.Attachment
	original []model.Attachment
	removed  []model.Attachment
}

// EditOptions configures an EditSession.
type EditOptions struct {
	// DownscaleImages re-encodes JPEG and PNG uploads with imaging.Process.
	DownscaleImages bool
	Clock           func() time.Time
	Recorder        Recorder
}

// NewEditSession returns a closed session. identity supplies the uploader's
// uid at commit time.
func NewEditSession(items *ItemStore, blobs backend.Blobs, identity func() model.Identity, opts EditOptions) *EditSession {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &EditSession{
		items:     items,
		blobs:     blobs,
		identity:  identity,
		now:       now,
		downscale: opts.DownscaleImages,
		rec:       recorderOrNop(opts.Recorder),
		state:     EditClosed,
	}
}

// OpenCreate opens a blank buffer. discarded reports whether an open
// buffer was thrown away to make room.
func (e *EditSession) OpenCreate() (discarded bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EditSaving {
		return false, ErrSaving
	}
	discarded = e.state == EditOpen
	e.reset()
	e.state = EditOpen
	e.mode = ModeCreate
	return discarded, nil
}

// OpenEdit opens a buffer seeded from the item with the given id.
func (e *EditSession) OpenEdit(id string) (discarded bool, err error) {
	item, ok := e.items.Get(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EditSaving {
		return false, ErrSaving
	}
	discarded = e.state == EditOpen
	e.reset()
	e.state = EditOpen
	e.mode = ModeEdit
	e.itemID = id
	e.fields = item.Fields()
	e.fields.Attachments = nil
	e.kept = model.CloneAttachments(item.Attachments)
	e.original = model.CloneAttachments(item.Attachments)
	return discarded, nil
}

// SetFields replaces the buffered field values. Attachments in f are
// ignored; they are managed through AddFiles and the Remove methods.
func (e *EditSession) SetFields(f model.ItemFields) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editable(); err != nil {
		return err
	}
	f.Attachments = nil
	if f.Expiry != nil && f.Expiry.IsZero() {
		f.Expiry = nil
	}
	if f.Expiry != nil {
		d := *f.Expiry
		f.Expiry = &d
	}
	e.fields = f
	return nil
}

// AddFiles appends files to the pending list.
func (e *EditSession) AddFiles(files ...File) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editable(); err != nil {
		return err
	}
	for _, f := range files {
		e.pending = append(e.pending, pendingFile{File: f, preview: imaging.Classify(f.Type)})
	}
	return nil
}

// RemoveKept drops the kept attachment at index. Its blob is deleted once
// the item is saved.
func (e *EditSession) RemoveKept(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editable(); err != nil {
		return err
	}
	if index < 0 || index >= len(e.kept) {
		return fmt.Errorf("%w: kept attachment %d", ErrIndexOutOfRange, index)
	}
	e.removed = append(e.removed, e.kept[index])
	e.kept = append(e.kept[:index:index], e.kept[index+1:]...)
	return nil
}

// RemovePending drops the pending file at index.
func (e *EditSession) RemovePending(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.editable(); err != nil {
		return err
	}
	if index < 0 || index >= len(e.pending) {
		return fmt.Errorf("%w: pending file %d", ErrIndexOutOfRange, index)
	}
	e.pending = append(e.pending[:index:index], e.pending[index+1:]...)
	return nil
}

// Cancel discards the buffer. Cancelling a closed session is a no-op.
func (e *EditSession) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EditSaving {
		return ErrSaving
	}
	e.reset()
	return nil
}

// Discard closes the session whatever its state. A commit in flight still
// finishes but no longer touches the buffer.
func (e *EditSession) Discard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reset()
}

// State returns the current state.
func (e *EditSession) State() EditState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns a copy of the buffer, or nil when closed.
func (e *EditSession) Snapshot() *EditSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EditClosed {
		return nil
	}
	fields := e.fields
	if fields.Expiry != nil {
		d := *fields.Expiry
		fields.Expiry = &d
	}
	snap := &EditSnapshot{
		State:   e.state,
		Mode:    e.mode,
		ItemID:  e.itemID,
		Fields:  fields,
		Pending: make([]PendingFileView, len(e.pending)),
		Kept:    make([]KeptAttachmentView, len(e.kept)),
	}
	for i, p := range e.pending {
		snap.Pending[i] = PendingFileView{Name: p.Name, Type: p.Type, Size: len(p.Data), Preview: p.preview}
	}
	for i, a := range e.kept {
		snap.Kept[i] = KeptAttachmentView{Attachment: a, Preview: imaging.Classify(a.Type)}
	}
	return snap
}

// Commit uploads the pending files, writes the item with the kept
// attachments followed by the uploaded ones and closes the session. On
// failure the session returns to open with the buffer untouched; blobs
// uploaded before the failure stay in storage.
func (e *EditSession) Commit(ctx context.Context) (string, error) {
	e.mu.Lock()
	if err := e.editable(); err != nil {
		e.mu.Unlock()
		return "", err
	}
	id := e.identity()
	if id.IsZero() {
		e.mu.Unlock()
		return "", ErrNotAuthenticated
	}
	if e.mode == ModeCreate && e.itemID == "" {
		// Reserved once so a retry uploads under the same item.
		e.itemID = e.items.NewID()
	}
	e.state = EditSaving
	gen := e.gen
	mode, itemID := e.mode, e.itemID
	fields := e.fields
	pending := append([]pendingFile(nil), e.pending...)
	kept := model.CloneAttachments(e.kept)
	e.mu.Unlock()

	err := e.write(ctx, id.UID, itemID, mode == ModeCreate, fields, kept, pending)

	e.mu.Lock()
	if gen != e.gen {
		// Discarded while saving.
		e.mu.Unlock()
		e.rec.ItemCommitted(err == nil)
		return itemID, err
	}
	if err != nil {
		e.state = EditOpen
		e.mu.Unlock()
		e.rec.ItemCommitted(false)
		slog.Warn("saving item failed", "item", itemID, "error", err)
		return "", err
	}
	obsolete := droppedAttachments(e.original, kept, e.removed)
	e.reset()
	e.mu.Unlock()

	e.rec.ItemCommitted(true)
	slog.Info("item saved", "item", itemID, "mode", string(mode), "uploaded", len(pending))
	deleteBlobs(ctx, e.blobs, obsolete, e.rec)
	return itemID, nil
}

func (e *EditSession) write(ctx context.Context, uid, itemID string, create bool, fields model.ItemFields, kept []model.Attachment, pending []pendingFile) error {
	uploaded := make([]model.Attachment, 0, len(pending))
	for _, p := range pending {
		a, err := e.upload(ctx, uid, itemID, p)
		if err != nil {
			e.rec.AttachmentUploaded(false)
			return err
		}
		e.rec.AttachmentUploaded(true)
		uploaded = append(uploaded, a)
	}

	fields.Attachments = append(kept, uploaded...)
	return e.items.CreateOrReplace(ctx, itemID, create, fields)
}

func (e *EditSession) upload(ctx context.Context, uid, itemID string, p pendingFile) (model.Attachment, error) {
	name, typ, data := p.Name, p.Type, p.Data
	if e.downscale && p.preview == imaging.PreviewImage {
		res, err := imaging.Process(bytes.NewReader(data))
		var unsupported *imaging.UnsupportedError
		switch {
		case err == nil:
			name, typ, data = imaging.JPEGName(name), res.MIME, res.Data
		case errors.As(err, &unsupported):
		default:
			slog.Warn("downscaling attachment failed, uploading original", "name", name, "error", err)
		}
	}

	path := BlobPath(uid, itemID, e.now(), name)
	ref, err := e.blobs.UploadBlob(ctx, path, bytes.NewReader(data), typ)
	if err != nil {
		return model.Attachment{}, &UploadError{Name: p.Name, Err: err}
	}
	url, err := e.blobs.RetrievalURL(ctx, ref)
	if err != nil {
		return model.Attachment{}, &UploadError{Name: p.Name, Err: err}
	}
	return model.Attachment{Name: name, Type: typ, URL: url, Path: ref.Path}, nil
}

// BlobPath returns users/{uid}/{itemID}/{unixMillis}_{name}. Slashes in the
// name are replaced so the file stays in the item's folder.
func BlobPath(uid, itemID string, at time.Time, name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		name = "file"
	}
	return fmt.Sprintf("users/%s/%s/%d_%s", uid, itemID, at.UnixMilli(), name)
}

// droppedAttachments returns the attachments of the original item that are
// no longer kept, plus anything removed explicitly, each path once.
func droppedAttachments(original, kept, removed []model.Attachment) []model.Attachment {
	keep := make(map[string]bool, len(kept))
	for _, a := range kept {
		keep[a.Path] = true
	}
	seen := map[string]bool{}
	var out []model.Attachment
	for _, a := range append(append([]model.Attachment(nil), original...), removed...) {
		if a.Path == "" || keep[a.Path] || seen[a.Path] {
			continue
		}
		seen[a.Path] = true
		out = append(out, a)
	}
	return out
}

func (e *EditSession) editable() error {
	switch e.state {
	case EditClosed:
		return ErrNoEditSession
	case EditSaving:
		return ErrSaving
	}
	return nil
}

func (e *EditSession) reset() {
	e.gen++
	e.state = EditClosed
	e.mode = ""
	e.itemID = ""
	e.fields = model.ItemFields{}
	e.pending = nil
	e.kept = nil
	e.original = nil
	e.removed = nil
}
