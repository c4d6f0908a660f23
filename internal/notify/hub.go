package notify

import (
	"context"
	"sync"
)

// Hub fans notifications out to attached notifiers and channel subscribers.
type Hub struct {
	mu        sync.RWMutex
	notifiers []Notifier
	listeners map[chan Notification]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		listeners: make(map[chan Notification]struct{}),
	}
}

// Attach adds a notifier that receives every notification synchronously.
func (h *Hub) Attach(n Notifier) {
	h.mu.Lock()
	h.notifiers = append(h.notifiers, n)
	h.mu.Unlock()
}

// Subscribe returns a channel receiving notifications.
// The caller must call Unsubscribe when done.
func (h *Hub) Subscribe() chan Notification {
	ch := make(chan Notification, 8)
	h.mu.Lock()
	h.listeners[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (h *Hub) Unsubscribe(ch chan Notification) {
	h.mu.Lock()
	delete(h.listeners, ch)
	h.mu.Unlock()
	close(ch)
}

// Notify delivers n to every attached notifier, then to subscribers.
// Subscribers whose buffer is full miss the notification.
func (h *Hub) Notify(ctx context.Context, n Notification) {
	h.mu.RLock()
	notifiers := append([]Notifier(nil), h.notifiers...)
	h.mu.RUnlock()

	for _, target := range notifiers {
		target.Notify(ctx, n)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.listeners {
		select {
		case ch <- n:
		default:
		}
	}
}
