package provider

import (
	"context"
	"sync"
	"time"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

// TierProvider is one ranked market-data source. Implementations map every
// failure mode (timeout, empty payload, malformed schema) to an error
// wrapping contracts.ErrUnavailable.
type TierProvider interface {
	Tier() contracts.Tier
	Quote(ctx context.Context, inst contracts.Instrument, asOf time.Time) (contracts.Sample, error)
}

// Chain tries ranked providers in priority order per instrument and records
// which tier actually answered. One instrument's failure never aborts the
// batch for others.
// ⭐ SSOT: provider fallthrough happens here only.
type Chain struct {
	tiers   []TierProvider
	workers int
	logger  *logger.Logger

	statsMu sync.Mutex
	stats   ChainStats
}

// ChainStats counts answers per tier since startup.
type ChainStats struct {
	Served map[string]int64 `json:"served"` // tier name -> answers
	Gaps   int64            `json:"gaps"`
}

// NewChain creates a chain over tiers in rank order (Tier-1 first).
func NewChain(tiers []TierProvider, workers int, log *logger.Logger) *Chain {
	if workers < 1 {
		workers = 1
	}
	return &Chain{
		tiers:   tiers,
		workers: workers,
		logger:  log,
		stats:   ChainStats{Served: make(map[string]int64)},
	}
}

// Fetch resolves every instrument against the tier chain with a bounded
// worker pool. The returned sample set and selection log share the single
// as-of timestamp; callers bound the whole call with a deadline context, and
// instruments not answered in time become coverage gaps.
func (c *Chain) Fetch(ctx context.Context, instruments []contracts.Instrument, asOf time.Time) (*contracts.SampleSet, *contracts.ProviderSelectionLog) {
	samples := contracts.NewSampleSet(asOf)
	selection := contracts.NewProviderSelectionLog(asOf)

	type result struct {
		inst   contracts.Instrument
		sample contracts.Sample
		tier   contracts.Tier
	}

	jobs := make(chan contracts.Instrument)
	results := make(chan result, len(instruments))

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for inst := range jobs {
				sample, tier := c.resolve(ctx, inst, asOf)
				results <- result{inst: inst, sample: sample, tier: tier}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, inst := range instruments {
			select {
			case jobs <- inst:
			case <-ctx.Done():
				// Remaining instruments become gaps below
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	resolved := make(map[string]bool, len(instruments))
	for r := range results {
		id := r.inst.ID()
		resolved[id] = true

		if r.tier == contracts.TierUnavailable {
			selection.RecordGap(id)
			continue
		}

		samples.Samples[id] = r.sample
		selection.Record(id, r.tier)
	}

	// Instruments never dispatched before the deadline are gaps too.
	for _, inst := range instruments {
		if !resolved[inst.ID()] {
			selection.RecordGap(inst.ID())
		}
	}

	c.recordStats(selection)

	if selection.GapCount() > 0 {
		c.logger.WithFields(map[string]interface{}{
			"requested": len(instruments),
			"covered":   samples.Count(),
			"gaps":      selection.GapCount(),
		}).Warn("Cycle fetch completed with coverage gaps")
	}

	return samples, selection
}

// resolve walks the tier chain for one instrument. An explicit match on the
// tier variant, not type inspection.
func (c *Chain) resolve(ctx context.Context, inst contracts.Instrument, asOf time.Time) (contracts.Sample, contracts.Tier) {
	for _, tier := range c.tiers {
		select {
		case <-ctx.Done():
			return contracts.Sample{}, contracts.TierUnavailable
		default:
		}

		sample, err := tier.Quote(ctx, inst, asOf)
		if err == nil {
			return sample, tier.Tier()
		}

		// Every tier failure falls through uniformly; an error that is not
		// ErrUnavailable still must not abort the batch.
		c.logger.WithFields(map[string]interface{}{
			"instrument": inst.ID(),
			"tier":       tier.Tier().String(),
			"error":      err.Error(),
		}).Debug("Tier unavailable, falling through")
	}

	return contracts.Sample{}, contracts.TierUnavailable
}

func (c *Chain) recordStats(selection *contracts.ProviderSelectionLog) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	for _, tier := range selection.Selections {
		if tier == contracts.TierUnavailable {
			c.stats.Gaps++
			continue
		}
		c.stats.Served[tier.String()]++
	}
}

// Stats returns a copy of cumulative chain statistics.
func (c *Chain) Stats() ChainStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	served := make(map[string]int64, len(c.stats.Served))
	for k, v := range c.stats.Served {
		served[k] = v
	}
	return ChainStats{Served: served, Gaps: c.stats.Gaps}
}
