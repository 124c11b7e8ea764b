package gateway

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Call is one independent backend fetch.
type Call func(ctx context.Context) error

// FetchAll runs calls concurrently and waits for all of them. The first error
// is returned and cancels the calls still in flight. Calls that write shared
// state synchronize it themselves.
func FetchAll(ctx context.Context, calls ...Call) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, call := range calls {
		g.Go(func() error {
			return call(gctx)
		})
	}
	return g.Wait()
}
