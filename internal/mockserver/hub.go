package mockserver

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// hub fans events out to the streams subscribed for an address. Slow
// subscribers lose events instead of blocking publishers.
type hub[T any] struct {
	mu   sync.Mutex
	subs map[string]map[chan T]struct{}
}

func newHub[T any]() *hub[T] {
	return &hub[T]{subs: make(map[string]map[chan T]struct{})}
}

func (h *hub[T]) subscribe(address string) (<-chan T, func()) {
	address = normalize(address)
	ch := make(chan T, subscriberBuffer)

	h.mu.Lock()
	if h.subs[address] == nil {
		h.subs[address] = make(map[chan T]struct{})
	}
	h.subs[address][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs[address], ch)
		if len(h.subs[address]) == 0 {
			delete(h.subs, address)
		}
		h.mu.Unlock()
	}
}

func (h *hub[T]) subscribers(address string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[normalize(address)])
}

// publish returns how many subscribers received the event.
func (h *hub[T]) publish(address string, event T) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for ch := range h.subs[normalize(address)] {
		select {
		case ch <- event:
			delivered++
		default:
		}
	}
	return delivered
}

// pump forwards events to send until ctx is done or send fails.
func pump[T any](ctx context.Context, events <-chan T, send func(any) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-events:
			if err := send(event); err != nil {
				return err
			}
		}
	}
}
