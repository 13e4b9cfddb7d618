package pubsub

import "context"

// ContinuousListener wraps a broker subscription with a pull-style API.
// Callers loop on Next until it reports false.
type ContinuousListener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewContinuousListener subscribes to the broker. The subscription is
// automatically cleaned up when the context is cancelled.
func NewContinuousListener[T any](ctx context.Context, broker *Broker[T]) *ContinuousListener[T] {
	return &ContinuousListener[T]{
		ctx: ctx,
		ch:  broker.Subscribe(ctx),
	}
}

// Next blocks until an event arrives. It returns false when the context is
// cancelled or the broker is closed.
func (l *ContinuousListener[T]) Next() (Event[T], bool) {
	var zero Event[T]
	select {
	case <-l.ctx.Done():
		return zero, false
	case event, ok := <-l.ch:
		if !ok {
			return zero, false
		}
		return event, true
	}
}

// Events exposes the raw subscription channel for select-based consumers.
func (l *ContinuousListener[T]) Events() <-chan Event[T] {
	return l.ch
}
