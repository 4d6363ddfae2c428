package geocode

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Batch geocodes codes with at most concurrency requests in flight. All
// workers go through c, so a client's limiter bounds the aggregate rate
// whatever the concurrency. Results are parallel to codes. onDone, if set,
// is called once per finished code, never concurrently.
//
// The first error (context cancellation) stops the batch; results gathered
// so far are returned alongside it.
func Batch(ctx context.Context, c Client, codes []string, concurrency int, onDone func(Result)) ([]Result, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]Result, len(codes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	for i, code := range codes {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := c.Geocode(gctx, code)
			if err != nil {
				return err
			}
			results[i] = *r
			if onDone != nil {
				mu.Lock()
				onDone(*r)
				mu.Unlock()
			}
			return nil
		})
	}

	return results, g.Wait()
}
