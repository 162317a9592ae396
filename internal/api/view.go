package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bep/debounce"
)

// streamDebounce coalesces bursts of store changes into one push.
const streamDebounce = 100 * time.Millisecond

// streamKeepAlive is the interval of comment lines that keep proxies from
// closing an idle stream.
const streamKeepAlive = 30 * time.Second

// ViewHandler renders the caller's view.
type ViewHandler struct {
	Sessions *Sessions
}

// Get handles GET /api/view.
func (h *ViewHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Get(r.Context(), GetClaims(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, sess.Client.View())
}

// Stream handles GET /api/stream. The view is sent as a "view" event on
// connect and again after every change; subscription failures are sent as
// "error" events.
func (h *ViewHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Get(r.Context(), GetClaims(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}

	rc := http.NewResponseController(w)
	// The server write timeout would cut the stream.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.Warn("clearing stream write deadline", "error", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	changed := make(chan struct{}, 1)
	failed := make(chan string, 4)
	debounced := debounce.New(streamDebounce)
	notify := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}

	unregisterChange := sess.Client.OnChange(func() { debounced(notify) })
	defer unregisterChange()
	unregisterError := sess.Client.OnError(func(err error) {
		select {
		case failed <- err.Error():
		default:
		}
	})
	defer unregisterError()

	send := func(event string, data any) bool {
		payload, err := json.Marshal(data)
		if err != nil {
			slog.Error("encoding stream event", "error", err)
			return false
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send("view", sess.Client.View()) {
		return
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-changed:
			if !send("view", sess.Client.View()) {
				return
			}
		case msg := <-failed:
			if !send("error", map[string]string{"error": msg}) {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil || rc.Flush() != nil {
				return
			}
		}
	}
}
