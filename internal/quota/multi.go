package quota

import (
	"context"
	"errors"

	"github.com/kodescruxx/kx-cli/internal/api"
	"golang.org/x/sync/errgroup"
)

type multi []Broadcaster

// Multi fans Publish out to every broadcaster and merges their
// subscriptions. nil entries are skipped.
func Multi(bs ...Broadcaster) Broadcaster {
	var m multi
	for _, b := range bs {
		if b != nil {
			m = append(m, b)
		}
	}
	return m
}

func (m multi) Publish(ctx context.Context, info api.QuotaInfo) error {
	var errs []error
	for _, b := range m {
		if err := b.Publish(ctx, info); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe stops every subscription as soon as one of them fails.
func (m multi) Subscribe(ctx context.Context, fn func(api.QuotaInfo)) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, b := range m {
		b := b
		g.Go(func() error {
			return b.Subscribe(ctx, fn)
		})
	}
	return g.Wait()
}
