package replay

import (
	"context"
	"fmt"

	"github.com/jaekwon-dev/tapewatch/internal/archive"
	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/internal/feature"
	"github.com/jaekwon-dev/tapewatch/internal/funnel"
	"github.com/jaekwon-dev/tapewatch/internal/funnelconfig"
	"github.com/jaekwon-dev/tapewatch/internal/risk"
	"github.com/jaekwon-dev/tapewatch/internal/snapshot"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

// UniverseSource supplies the instrument set that was tradable on a session
// date. Replay needs the same float shares the live run saw.
type UniverseSource interface {
	ByDate(ctx context.Context, sessionDate string) (*contracts.Universe, error)
}

// Engine re-runs archived sessions through the identical feature, risk and
// funnel stages and verifies the result against the live snapshot log. The
// only legitimate difference between live and replay is data coverage,
// which the archived selection log pins down; any tag difference is a
// regression and is surfaced, never corrected.
type Engine struct {
	cfg        *funnelconfig.Config
	configHash string
	archive    archive.Repository
	snapshots  snapshot.Repository
	universes  UniverseSource
	log        *logger.Logger
}

// New creates a replay engine. configHash must be the hash of cfg, as
// recorded on live snapshots.
func New(cfg *funnelconfig.Config, configHash string, arch archive.Repository, snaps snapshot.Repository, universes UniverseSource, log *logger.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		configHash: configHash,
		archive:    arch,
		snapshots:  snaps,
		universes:  universes,
		log:        log,
	}
}

// Divergence is one instrument whose replayed tag differs from the live tag.
type Divergence struct {
	SnapshotSeq  int64                 `json:"snapshot_seq"`
	InstrumentID string                `json:"instrument_id"`
	Live         contracts.DecisionTag `json:"live"`
	Replayed     contracts.DecisionTag `json:"replayed"`
}

// Report summarizes one replayed session.
type Report struct {
	SessionDate       string       `json:"session_date"`
	CyclesReplayed    int          `json:"cycles_replayed"`
	WarmupSessions    int          `json:"warmup_sessions"`
	LiveSnapshots     int          `json:"live_snapshots"`
	ReplayedSnapshots int          `json:"replayed_snapshots"`
	Divergences       []Divergence `json:"divergences,omitempty"`
}

// Clean reports whether replay reproduced the live session exactly.
func (r *Report) Clean() bool {
	return len(r.Divergences) == 0 && r.LiveSnapshots == r.ReplayedSnapshots
}

// Replay re-runs one session and compares its distinct decision states
// against the persisted live snapshots. Returns ErrReplayDivergence (with a
// full report) when any tag differs.
func (e *Engine) Replay(ctx context.Context, sessionDate string) (*Report, error) {
	cycles, err := e.archive.Session(ctx, sessionDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load archived session: %w", err)
	}
	if len(cycles) == 0 {
		return nil, fmt.Errorf("no archived cycles for session %s", sessionDate)
	}

	live, err := e.snapshots.History(ctx, sessionDate, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load live snapshots: %w", err)
	}
	for _, snap := range live {
		if snap.ConfigHash != e.configHash {
			return nil, fmt.Errorf("snapshot seq %d was produced under config %s, current config is %s: replay would not be comparable",
				snap.Seq, snap.ConfigHash, e.configHash)
		}
	}

	// A fresh pipeline, warmed the same way the live run was.
	engine := feature.NewEngine(e.cfg)
	classifier := risk.NewClassifier(e.cfg, engine)
	gates := funnel.New(e.cfg)

	warmed, err := e.warmup(ctx, engine, classifier, gates, sessionDate)
	if err != nil {
		return nil, err
	}

	// Live persisted only on change from its running fingerprint, so the
	// replay baseline is the last snapshot before this session.
	baseline := ""
	if prior, err := e.snapshots.LastBefore(ctx, sessionDate); err != nil {
		return nil, fmt.Errorf("failed to load replay baseline: %w", err)
	} else if prior != nil {
		baseline = prior.Fingerprint
	}

	report := &Report{SessionDate: sessionDate, WarmupSessions: warmed, LiveSnapshots: len(live)}

	var replayed []*contracts.CycleResult
	last := baseline
	for _, cycle := range cycles {
		result := e.replayCycle(ctx, engine, classifier, gates, cycle)
		if result == nil {
			continue
		}
		report.CyclesReplayed++

		fp := snapshot.Fingerprint(result)
		if fp != last {
			replayed = append(replayed, result)
			last = fp
		}
	}
	report.ReplayedSnapshots = len(replayed)

	e.compare(report, live, replayed)

	if !report.Clean() {
		e.log.WithFields(map[string]interface{}{
			"session":     sessionDate,
			"divergences": len(report.Divergences),
			"live":        report.LiveSnapshots,
			"replayed":    report.ReplayedSnapshots,
		}).Error("Replay diverged from live run")
		return report, fmt.Errorf("session %s: %w", sessionDate, contracts.ErrReplayDivergence)
	}

	e.log.WithFields(map[string]interface{}{
		"session":   sessionDate,
		"cycles":    report.CyclesReplayed,
		"snapshots": report.ReplayedSnapshots,
	}).Info("Replay reproduced the live session")
	return report, nil
}

// warmup plays prior archived sessions through the feature engine so the
// rolling buffers match what the live run carried into the session.
func (e *Engine) warmup(ctx context.Context, engine *feature.Engine, classifier *risk.Classifier, gates *funnel.Funnel, sessionDate string) (int, error) {
	dates, err := e.archive.Sessions(ctx, sessionDate, e.cfg.Feature.LookbackDays)
	if err != nil {
		return 0, fmt.Errorf("failed to list warmup sessions: %w", err)
	}

	for _, date := range dates {
		cycles, err := e.archive.Session(ctx, date)
		if err != nil {
			return 0, fmt.Errorf("failed to load warmup session %s: %w", date, err)
		}
		for _, cycle := range cycles {
			e.replayCycle(ctx, engine, classifier, gates, cycle)
		}
	}
	return len(dates), nil
}

// replayCycle runs one archived cycle through the pipeline, honoring the
// recorded provider selection: instruments the live run could not cover are
// dropped even if the archive happens to hold a sample, so replay never
// upgrades data availability.
func (e *Engine) replayCycle(ctx context.Context, engine *feature.Engine, classifier *risk.Classifier, gates *funnel.Funnel, cycle contracts.ArchivedCycle) *contracts.CycleResult {
	universe, err := e.universes.ByDate(ctx, cycle.SessionDate)
	if err != nil {
		e.log.WithError(err).WithField("session", cycle.SessionDate).Error("Failed to load universe for replay cycle")
		return nil
	}

	covered := contracts.NewSampleSet(cycle.Samples.AsOf)
	for id, sample := range cycle.Samples.Samples {
		if cycle.Selection.TierFor(id) == contracts.TierUnavailable {
			continue
		}
		covered.Samples[id] = sample
	}

	features := engine.Compute(universe, covered)
	risks := classifier.Classify(features)

	result := gates.Evaluate(features, risks)
	result.Gaps = cycle.Selection.Gaps
	result.Selection = cycle.Selection
	return result
}

// compare checks the replayed distinct states against the live snapshot
// sequence, record by record.
func (e *Engine) compare(report *Report, live []contracts.Snapshot, replayed []*contracts.CycleResult) {
	n := len(live)
	if len(replayed) < n {
		n = len(replayed)
	}

	for i := 0; i < n; i++ {
		liveSnap := live[i]
		result := replayed[i]

		if snapshot.Fingerprint(result) == liveSnap.Fingerprint {
			continue
		}

		for _, rec := range result.Ordered() {
			liveTag, ok := liveSnap.TagFor(rec.InstrumentID)
			if !ok || liveTag != rec.Tag {
				report.Divergences = append(report.Divergences, Divergence{
					SnapshotSeq:  liveSnap.Seq,
					InstrumentID: rec.InstrumentID,
					Live:         liveTag,
					Replayed:     rec.Tag,
				})
			}
		}
		for _, liveRec := range liveSnap.Records {
			if _, ok := result.Records[liveRec.InstrumentID]; !ok {
				report.Divergences = append(report.Divergences, Divergence{
					SnapshotSeq:  liveSnap.Seq,
					InstrumentID: liveRec.InstrumentID,
					Live:         liveRec.Tag,
				})
			}
		}
	}
}
