package mx

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contact-mx/internal/model"
)

// DefaultWorkers bounds concurrent lookups in ClassifyAll.
const DefaultWorkers = 10

// ClassifyAll resolves each domain once with at most workers lookups in
// flight. onDone, if set, is called once per domain in completion order and
// never concurrently. The result is keyed by the input domain string.
func (c *Classifier) ClassifyAll(ctx context.Context, domains []string, workers int, onDone func(model.Classification)) map[string]model.Classification {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var mu sync.Mutex
	results := make(map[string]model.Classification, len(domains))

	var g errgroup.Group
	g.SetLimit(workers)
	for _, d := range domains {
		g.Go(func() error {
			res := c.Resolve(ctx, d)

			mu.Lock()
			defer mu.Unlock()
			results[d] = res
			if onDone != nil {
				onDone(res)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
