// Package publisher delivers audit events to a Store either synchronously or
// through a buffered channel drained by a background goroutine. Emit never
// blocks request handling in async mode; a full buffer drops to synchronous
// delivery rather than losing the event.
package publisher

import (
	"context"
	"sync"

	id "kinlink/pkg/domain"
	audit "kinlink/pkg/platform/audit"
)

type Publisher struct {
	store audit.Store

	inbox  chan audit.Event
	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup
}

type Option func(p *Publisher)

// WithAsyncBuffer enables asynchronous delivery with the given channel size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit delivers the event. In sync mode it appends directly; in async mode it
// enqueues, falling back to a direct append when the buffer is full.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		return p.store.Append(ctx, event)
	}
}

// List exposes stored events, mainly for tests and admin introspection.
func (p *Publisher) List(ctx context.Context, accountID id.AccountID) ([]audit.Event, error) {
	return p.store.ListByAccount(ctx, accountID)
}

// Close stops the background drain, flushing anything still buffered.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		close(p.done)
		if p.inbox != nil {
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	ctx := context.Background()
	for {
		select {
		case event := <-p.inbox:
			_ = p.store.Append(ctx, event)
		case <-p.done:
			for {
				select {
				case event := <-p.inbox:
					_ = p.store.Append(ctx, event)
				default:
					return
				}
			}
		}
	}
}
