// Package cache holds the in-memory reconciliation summary cache and its
// durable snapshot store.
package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"stocktally/internal/core/apperror"
	"stocktally/internal/domain/catalog"
	"stocktally/internal/domain/reconcile"
	"stocktally/pkg/logger"
)

// State describes the freshness of the cached summary set.
type State string

const (
	// StateEmpty means nothing has been computed or restored yet.
	StateEmpty State = "empty"

	// StatePopulated means the set reflects the latest completed recompute.
	StatePopulated State = "populated"

	// StateStale means data is served but a mutation or restart happened
	// since it was computed.
	StateStale State = "stale"
)

// Rebuilder recomputes the full summary set from its sources.
type Rebuilder interface {
	BuildAll(ctx context.Context) ([]reconcile.Summary, []catalog.ProductRef, error)
}

// Result is a served summary set plus freshness metadata.
type Result struct {
	Summaries   []reconcile.Summary `json:"summaries"`
	LastUpdated time.Time           `json:"lastUpdated"`
	Stale       bool                `json:"stale"`
}

// SummaryCache serves reconciliation summaries, recomputing the whole set on
// demand. Concurrent refresh requests coalesce into a single recompute; the
// cached set is replaced all-or-nothing, so readers never observe a partially
// updated set.
type SummaryCache struct {
	rebuilder Rebuilder
	snapshots *SnapshotStore // nil disables durable snapshots
	group     singleflight.Group

	mu          sync.RWMutex
	state       State
	summaries   []reconcile.Summary
	bySKU       map[string]reconcile.Summary
	products    []catalog.ProductRef
	lastUpdated time.Time
}

// NewSummaryCache creates an empty cache.
func NewSummaryCache(rebuilder Rebuilder, snapshots *SnapshotStore) *SummaryCache {
	return &SummaryCache{
		rebuilder: rebuilder,
		snapshots: snapshots,
		state:     StateEmpty,
	}
}

// Load returns the summary set, recomputing when the cache is empty or force
// is set. A stale set is served as-is (flagged) unless the caller forces a
// refresh. On recompute failure with data present, the old set keeps serving.
func (c *SummaryCache) Load(ctx context.Context, force bool) (Result, error) {
	if !force {
		c.mu.RLock()
		if c.state != StateEmpty {
			res := Result{
				Summaries:   c.summaries,
				LastUpdated: c.lastUpdated,
				Stale:       c.state == StateStale,
			}
			c.mu.RUnlock()
			return res, nil
		}
		c.mu.RUnlock()
	}

	return c.rebuild(ctx)
}

// LoadSilently refreshes the cache and swallows any failure (logging it).
// Used after ledger mutations: the mutation must not fail because a
// recompute did, and the previously cached data keeps serving.
func (c *SummaryCache) LoadSilently(ctx context.Context) {
	if _, err := c.rebuild(ctx); err != nil {
		logger.Warn(ctx, "silent summary refresh failed, serving previous data",
			"error", err,
		)
		c.Invalidate()
	}
}

// Summary returns the cached summary for one SKU, computing the set first if
// the cache is empty. A SKU absent from the set (unknown, or excluded for
// lack of an actual-stock reading) is NOT_FOUND.
func (c *SummaryCache) Summary(ctx context.Context, sku string) (reconcile.Summary, error) {
	if _, err := c.Load(ctx, false); err != nil {
		return reconcile.Summary{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	summary, ok := c.bySKU[sku]
	if !ok {
		return reconcile.Summary{}, apperror.NewNotFound("summary", sku)
	}
	return summary, nil
}

// Invalidate marks the cached set stale without discarding it.
func (c *SummaryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatePopulated {
		c.state = StateStale
	}
}

// State returns the current freshness state.
func (c *SummaryCache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastUpdated returns when the served set was computed.
func (c *SummaryCache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

// Restore loads the durable snapshot, if any, and serves it marked stale
// until the first recompute.
func (c *SummaryCache) Restore(ctx context.Context) error {
	if c.snapshots == nil {
		return nil
	}

	snapshot, ok, err := c.snapshots.Load()
	if err != nil {
		return err
	}
	if !ok {
		logger.Debug(ctx, "no summary snapshot on disk, starting empty")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries = snapshot.Summaries
	c.bySKU = indexBySKU(snapshot.Summaries)
	c.products = snapshot.Products
	c.lastUpdated = snapshot.LastUpdated
	c.state = StateStale

	logger.Info(ctx, "summary cache restored from snapshot",
		"summaries", len(snapshot.Summaries),
		"computed_at", snapshot.LastUpdated,
	)
	return nil
}

// rebuild recomputes the set through singleflight so overlapping refresh
// requests share one recompute and all receive its result.
func (c *SummaryCache) rebuild(ctx context.Context) (Result, error) {
	v, err, shared := c.group.Do("summaries", func() (any, error) {
		summaries, products, err := c.rebuilder.BuildAll(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()

		c.mu.Lock()
		c.summaries = summaries
		c.bySKU = indexBySKU(summaries)
		c.products = products
		c.lastUpdated = now
		c.state = StatePopulated
		c.mu.Unlock()

		c.persistSnapshot(ctx, Snapshot{
			Summaries:   summaries,
			Products:    products,
			LastUpdated: now,
		})

		return Result{Summaries: summaries, LastUpdated: now}, nil
	})
	if err != nil {
		return Result{}, err
	}

	if shared {
		logger.Debug(ctx, "summary recompute shared with concurrent request")
	}
	return v.(Result), nil
}

// persistSnapshot writes the snapshot best effort: serving fresh data never
// fails because the disk write did.
func (c *SummaryCache) persistSnapshot(ctx context.Context, snapshot Snapshot) {
	if c.snapshots == nil {
		return
	}
	if err := c.snapshots.Save(snapshot); err != nil {
		logger.Warn(ctx, "summary snapshot write failed",
			"error", err,
		)
	}
}

func indexBySKU(summaries []reconcile.Summary) map[string]reconcile.Summary {
	idx := make(map[string]reconcile.Summary, len(summaries))
	for _, s := range summaries {
		idx[s.SKU] = s
	}
	return idx
}
