package local

import "sync"

// hub fans out change notifications per topic. A watcher holds at most one
// pending notification, so bursts of writes coalesce into one re-query.
type hub struct {
	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
}

type watcher struct {
	notify chan struct{}
}

func newHub() *hub {
	return &hub{watchers: make(map[string]map[*watcher]struct{})}
}

func (h *hub) watch(topic string) *watcher {
	w := &watcher{notify: make(chan struct{}, 1)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchers[topic] == nil {
		h.watchers[topic] = make(map[*watcher]struct{})
	}
	h.watchers[topic][w] = struct{}{}
	return w
}

func (h *hub) unwatch(topic string, w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.watchers[topic], w)
	if len(h.watchers[topic]) == 0 {
		delete(h.watchers, topic)
	}
}

func (h *hub) publish(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers[topic] {
		select {
		case w.notify <- struct{}{}:
		default:
		}
	}
}

// count returns the number of watchers of topic.
func (h *hub) count(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers[topic])
}
