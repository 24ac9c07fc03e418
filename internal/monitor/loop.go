package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/jaekwon-dev/tapewatch/internal/archive"
	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/internal/feature"
	"github.com/jaekwon-dev/tapewatch/internal/funnel"
	"github.com/jaekwon-dev/tapewatch/internal/funnelconfig"
	"github.com/jaekwon-dev/tapewatch/internal/risk"
	"github.com/jaekwon-dev/tapewatch/internal/snapshot"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
	"github.com/jaekwon-dev/tapewatch/pkg/redis"
)

// latestCacheKey is where the loop mirrors the current decision view for
// out-of-process readers.
const latestCacheKey = "latest"

// Fetcher resolves one cycle's samples. The provider chain implements this.
type Fetcher interface {
	Fetch(ctx context.Context, instruments []contracts.Instrument, asOf time.Time) (*contracts.SampleSet, *contracts.ProviderSelectionLog)
}

// UniverseSource supplies the tradable instrument set for a session date.
type UniverseSource interface {
	Current(ctx context.Context, sessionDate string) (*contracts.Universe, error)
}

// HistoricalUniverses resolves stored universes for past session dates.
// Warmup needs the set that was tradable when a cycle was archived, not
// today's.
type HistoricalUniverses interface {
	ByDate(ctx context.Context, sessionDate string) (*contracts.Universe, error)
}

// Deps wires the loop to the rest of the pipeline. Archive and Cache are
// optional; everything else is required.
type Deps struct {
	Cfg        *funnelconfig.Config
	Clock      *SessionClock
	Universe   UniverseSource
	Fetcher    Fetcher
	Engine     *feature.Engine
	Classifier *risk.Classifier
	Funnel     *funnel.Funnel
	Store      *snapshot.Store
	Archive    archive.Repository
	Cache      *redis.Cache
	Log        *logger.Logger
}

// Loop drives the pipeline on a fixed cadence during market hours. It is
// single-threaded by construction: one goroutine runs cycles to completion,
// so passes never overlap and the rolling feature buffers see exactly one
// writer. Outside session hours it idles without polling.
type Loop struct {
	deps  Deps
	state *State

	inSession  bool
	cycleIndex int

	// Set by Warmup after a mid-session restart so archived cycle numbering
	// continues instead of colliding.
	resumeSession string
	resumeCycle   int
}

// NewLoop creates a monitor loop. Call Run to start it.
func NewLoop(deps Deps) *Loop {
	return &Loop{deps: deps, state: NewState()}
}

// State returns the read-only latest-decisions surface.
func (l *Loop) State() *State {
	return l.state
}

// Warmup replays archived cycles through the live feature engine so a
// restarted process carries the same rolling buffers an uninterrupted run
// would have. Prior sessions within the lookback window are replayed in
// full, then any cycles already archived for sessionDate, which covers a
// mid-session restart. Without those, the first post-restart decisions
// would differ from what a replay of the same session computes. No-op when
// archival is disabled.
func (l *Loop) Warmup(ctx context.Context, universes HistoricalUniverses, sessionDate string) (int, error) {
	if l.deps.Archive == nil {
		return 0, nil
	}

	dates, err := l.deps.Archive.Sessions(ctx, sessionDate, l.deps.Cfg.Feature.LookbackDays)
	if err != nil {
		return 0, fmt.Errorf("failed to list warmup sessions: %w", err)
	}
	dates = append(dates, sessionDate)

	warmed := 0
	for _, date := range dates {
		cycles, err := l.deps.Archive.Session(ctx, date)
		if err != nil {
			return warmed, fmt.Errorf("failed to load warmup session %s: %w", date, err)
		}
		for _, cycle := range cycles {
			l.seedCycle(ctx, universes, cycle)
		}
		if len(cycles) == 0 {
			continue
		}
		warmed++
		if date == sessionDate {
			l.resumeSession = sessionDate
			l.resumeCycle = cycles[len(cycles)-1].CycleIndex
			l.cycleIndex = l.resumeCycle
		}
	}

	l.deps.Log.WithFields(map[string]interface{}{
		"sessions":     warmed,
		"session":      sessionDate,
		"resume_cycle": l.resumeCycle,
	}).Info("Feature buffers warmed from archive")
	return warmed, nil
}

// seedCycle feeds one archived cycle's covered samples through the feature
// engine, honoring the recorded provider selection so the warmed buffers
// match what the live run observed.
func (l *Loop) seedCycle(ctx context.Context, universes HistoricalUniverses, cycle contracts.ArchivedCycle) {
	universe, err := universes.ByDate(ctx, cycle.SessionDate)
	if err != nil {
		l.deps.Log.WithError(err).WithField("session", cycle.SessionDate).Warn("No stored universe for warmup cycle")
		return
	}

	covered := contracts.NewSampleSet(cycle.Samples.AsOf)
	for id, sample := range cycle.Samples.Samples {
		if cycle.Selection.TierFor(id) == contracts.TierUnavailable {
			continue
		}
		covered.Samples[id] = sample
	}
	l.deps.Engine.Compute(universe, covered)
}

// Run polls on the configured cadence until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.deps.Cfg.Monitor.Cadence)
	defer ticker.Stop()

	l.deps.Log.WithFields(map[string]interface{}{
		"cadence":  l.deps.Cfg.Monitor.Cadence.String(),
		"deadline": l.deps.Cfg.Monitor.CycleDeadline.String(),
	}).Info("Monitor loop started")

	for {
		select {
		case <-ctx.Done():
			if l.inSession {
				l.endSession()
			}
			l.deps.Log.Info("Monitor loop stopped")
			return nil
		case now := <-ticker.C:
			l.tick(ctx, now)
		}
	}
}

// tick handles one cadence beat: session transitions plus at most one cycle.
func (l *Loop) tick(ctx context.Context, now time.Time) {
	if !l.deps.Clock.InSession(now) {
		if l.inSession {
			l.endSession()
		}
		return
	}

	if !l.inSession {
		l.inSession = true
		l.cycleIndex = 0
		sessionDate := l.deps.Clock.SessionDate(now)
		if sessionDate == l.resumeSession {
			l.cycleIndex = l.resumeCycle
		}
		l.state.init()
		l.deps.Log.WithField("session", sessionDate).Info("Session opened, monitoring")
	}

	l.runCycle(ctx, now)
}

// RunOnce executes a single pipeline pass regardless of session hours.
func (l *Loop) RunOnce(ctx context.Context, asOf time.Time) (*contracts.CycleResult, error) {
	return l.runCycle(ctx, asOf)
}

// runCycle is one full provider → feature → risk → funnel → fingerprint
// pass. Every covered instrument is decided from the same as-of timestamp
// and the same feature snapshot. The cycle deadline cuts off at the
// provider-fetch boundary only; computation after the join is synchronous.
func (l *Loop) runCycle(ctx context.Context, asOf time.Time) (*contracts.CycleResult, error) {
	l.cycleIndex++
	sessionDate := l.deps.Clock.SessionDate(asOf)

	universe, err := l.deps.Universe.Current(ctx, sessionDate)
	if err != nil {
		l.deps.Log.WithError(err).Error("Failed to load universe, skipping cycle")
		return nil, err
	}

	instruments := make([]contracts.Instrument, 0, universe.Count())
	for _, inst := range universe.Instruments {
		instruments = append(instruments, inst)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, l.deps.Cfg.Monitor.CycleDeadline)
	samples, selection := l.deps.Fetcher.Fetch(fetchCtx, instruments, asOf)
	cancel()

	features := l.deps.Engine.Compute(universe, samples)
	risks := l.deps.Classifier.Classify(features)

	result := l.deps.Funnel.Evaluate(features, risks)
	result.Gaps = selection.Gaps
	result.Selection = selection

	l.state.set(result, l.cycleIndex)
	l.mirror(ctx)

	if _, err := l.deps.Store.Commit(ctx, result, sessionDate); err != nil {
		// The live view already carries this cycle; persistence retries on
		// the next distinct state.
		l.deps.Log.WithError(err).Error("Snapshot persistence failed")
	}

	if l.deps.Archive != nil {
		cycle := &contracts.ArchivedCycle{
			SessionDate: sessionDate,
			CycleIndex:  l.cycleIndex,
			Samples:     samples,
			Selection:   selection,
		}
		if err := l.deps.Archive.Append(ctx, cycle); err != nil {
			l.deps.Log.WithError(err).Error("Cycle archival failed")
		}
	}

	l.deps.Log.WithFields(map[string]interface{}{
		"cycle":   l.cycleIndex,
		"decided": result.Count(),
		"gaps":    len(result.Gaps),
	}).Debug("Cycle complete")

	return result, nil
}

// mirror publishes the latest view to the shared cache for out-of-process
// dashboards. Best effort; the in-memory state is authoritative.
func (l *Loop) mirror(ctx context.Context) {
	if l.deps.Cache == nil {
		return
	}
	view, ok := l.state.Latest()
	if !ok {
		return
	}
	ttl := 4 * l.deps.Cfg.Monitor.Cadence
	if err := l.deps.Cache.Set(ctx, latestCacheKey, view, ttl); err != nil {
		l.deps.Log.WithError(err).Warn("Failed to mirror latest state")
	}
}

func (l *Loop) endSession() {
	l.inSession = false
	l.state.teardown()
	l.deps.Log.Info("Session closed, idling")
}
