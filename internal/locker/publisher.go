package locker

import (
	"context"
	"errors"

	"github.com/vusociu/datn/internal/protocol"
)

// Publisher delivers outbound locker events.
type Publisher interface {
	Publish(ctx context.Context, ev protocol.Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev protocol.Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev protocol.Event) error {
	return f(ctx, ev)
}

// Publishers fans an event out to every publisher. All of them are tried;
// the errors are joined.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, ev protocol.Event) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, protocol.Event) error { return nil }
