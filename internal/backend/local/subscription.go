package local

import (
	"context"
	"sync"
)

// subscription runs one live query in its own goroutine: an initial
// snapshot, then one re-query per (coalesced) notification. Callbacks are
// delivered from that goroutine only, so they never overlap. A query error
// is reported once and ends the subscription.
type subscription struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

func subscribe[T any](h *hub, topic string, load func(context.Context) (T, error), onSnapshot func(T), onError func(error)) *subscription {
	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	w := h.watch(topic)

	go func() {
		defer close(sub.done)
		defer h.unwatch(topic, w)
		for {
			v, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			onSnapshot(v)

			select {
			case <-ctx.Done():
				return
			case <-w.notify:
			}
		}
	}()

	return sub
}

// Cancel stops the subscription. It is safe to call more than once and from
// inside a callback. It does not wait for a callback that is already being
// delivered.
func (s *subscription) Cancel() {
	s.once.Do(s.cancel)
}
