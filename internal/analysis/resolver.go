package analysis

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/networkearth/fishflow/internal/observability"
)

// DefaultFetchConcurrency bounds how many chunk fetches run at once.
const DefaultFetchConcurrency = 3

// ChunkFetcher retrieves one occupancy chunk from the scenario data service.
type ChunkFetcher interface {
	FetchChunk(ctx context.Context, scenarioID, month string, depth int) (*Chunk, error)
}

// ProgressFunc receives (completed, total) after every individual fetch
// settles, success or failure.
type ProgressFunc func(completed, total int)

// Resolver computes which chunks a filter state needs, fetches the missing
// ones with bounded concurrency, and returns the new entries for the caller
// to merge. A failed fetch is logged and excluded; it never aborts its
// siblings.
type Resolver struct {
	fetcher     ChunkFetcher
	log         *zap.SugaredLogger
	metrics     observability.MetricsRecorder
	concurrency int
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithConcurrency overrides the per-batch fetch bound.
func WithConcurrency(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithMetrics records per-fetch outcomes on the supplied recorder.
func WithMetrics(m observability.MetricsRecorder) ResolverOption {
	return func(r *Resolver) {
		if m != nil {
			r.metrics = m
		}
	}
}

// NewResolver constructs a resolver over the fetcher. A nil logger is
// replaced with a nop logger.
func NewResolver(fetcher ChunkFetcher, log *zap.SugaredLogger, opts ...ResolverOption) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &Resolver{
		fetcher:     fetcher,
		log:         log,
		metrics:     observability.NopMetrics{},
		concurrency: DefaultFetchConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches every chunk the filter requires that the cache lacks.
// Fetches are issued in batches of at most the configured concurrency, and
// each batch fully settles before the next is issued. Only newly obtained
// chunks are returned; the caller merges them into the cache additively.
// A complete cache yields an empty result with no fetch activity.
func (r *Resolver) Resolve(ctx context.Context, scenarioID string, filter FilterState, cache *ChunkCache, progress ProgressFunc) ([]*Chunk, error) {
	missing := cache.MissingChunks(filter.RequiredMonths(), filter.RequiredDepths())
	if len(missing) == 0 {
		return nil, nil
	}

	total := len(missing)
	completed := 0
	var mu sync.Mutex
	settle := func(ch *Chunk, fetched *[]*Chunk) {
		mu.Lock()
		completed++
		done := completed
		if ch != nil {
			*fetched = append(*fetched, ch)
		}
		mu.Unlock()
		if progress != nil {
			progress(done, total)
		}
	}

	var fetched []*Chunk
	for start := 0; start < len(missing); start += r.concurrency {
		end := start + r.concurrency
		if end > len(missing) {
			end = len(missing)
		}
		if err := ctx.Err(); err != nil {
			return fetched, err
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, key := range missing[start:end] {
			key := key
			g.Go(func() error {
				began := time.Now()
				ch, err := r.fetcher.FetchChunk(gctx, scenarioID, key.Month, key.Depth)
				r.metrics.Observe(gctx, "chunk_fetch", err == nil, time.Since(began))
				if err != nil {
					r.log.Warnw("chunk fetch failed",
						"scenario", scenarioID, "month", key.Month, "depth", key.Depth, "error", err)
					ch = nil
				}
				settle(ch, &fetched)
				return nil
			})
		}
		// Errors never propagate out of the group; Wait only delimits the batch.
		_ = g.Wait()
	}
	return fetched, nil
}
