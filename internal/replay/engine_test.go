package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jaekwon-dev/tapewatch/internal/archive"
	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/internal/feature"
	"github.com/jaekwon-dev/tapewatch/internal/funnel"
	"github.com/jaekwon-dev/tapewatch/internal/funnelconfig"
	"github.com/jaekwon-dev/tapewatch/internal/risk"
	"github.com/jaekwon-dev/tapewatch/internal/snapshot"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

const instID = "NASDAQ:AAPL"

type staticUniverse struct {
	universe *contracts.Universe
}

func (s *staticUniverse) ByDate(_ context.Context, _ string) (*contracts.Universe, error) {
	return s.universe, nil
}

func testUniverse() *contracts.Universe {
	inst := contracts.Instrument{Symbol: "AAPL", Exchange: "NASDAQ", FloatShares: 1e6}
	return &contracts.Universe{
		Instruments: map[string]contracts.Instrument{inst.ID(): inst},
	}
}

func flowSample(netFlow float64) contracts.Sample {
	return contracts.Sample{
		InstrumentID: instID,
		Last:         100, Open: 100, High: 101, Low: 99, PrevClose: 100,
		Volume: 1000, Value: 1e5, NetFlow: netFlow,
	}
}

// liveRun simulates the monitor pipeline over several sessions, archiving
// every cycle and persisting distinct decision states.
type liveRun struct {
	t          *testing.T
	cfg        *funnelconfig.Config
	engine     *feature.Engine
	classifier *risk.Classifier
	funnel     *funnel.Funnel
	store      *snapshot.Store
	archive    *archive.MemoryRepository
	snapshots  *snapshot.MemoryRepository

	cycleIndex map[string]int
}

func newLiveRun(t *testing.T) *liveRun {
	cfg := funnelconfig.NewTestConfig()
	engine := feature.NewEngine(cfg)
	snaps := snapshot.NewMemoryRepository()

	return &liveRun{
		t:          t,
		cfg:        cfg,
		engine:     engine,
		classifier: risk.NewClassifier(cfg, engine),
		funnel:     funnel.New(cfg),
		store:      snapshot.NewStore(snaps, "cfg-hash", logger.Nop()),
		archive:    archive.NewMemoryRepository(),
		snapshots:  snaps,
		cycleIndex: make(map[string]int),
	}
}

func (l *liveRun) cycle(day time.Time, netFlow float64) {
	l.t.Helper()
	ctx := context.Background()
	sessionDate := day.Format("2006-01-02")
	l.cycleIndex[sessionDate]++

	asOf := day.Add(time.Duration(l.cycleIndex[sessionDate]) * 15 * time.Second)
	samples := contracts.NewSampleSet(asOf)
	samples.Samples[instID] = flowSample(netFlow)
	selection := contracts.NewProviderSelectionLog(asOf)
	selection.Record(instID, contracts.Tier1)

	if err := l.archive.Append(ctx, &contracts.ArchivedCycle{
		SessionDate: sessionDate,
		CycleIndex:  l.cycleIndex[sessionDate],
		Samples:     samples,
		Selection:   selection,
	}); err != nil {
		l.t.Fatalf("archive.Append: %v", err)
	}

	features := l.engine.Compute(testUniverse(), samples)
	risks := l.classifier.Classify(features)
	result := l.funnel.Evaluate(features, risks)
	result.Selection = selection

	if _, err := l.store.Commit(ctx, result, sessionDate); err != nil {
		l.t.Fatalf("store.Commit: %v", err)
	}
}

// session days: a warmup week then the replayed Monday.
var (
	warmupDays = []time.Time{
		time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 4, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 5, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 6, 14, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 7, 14, 0, 0, 0, time.UTC),
	}
	targetDay  = time.Date(2026, 8, 10, 14, 0, 0, 0, time.UTC)
	targetDate = "2026-08-10"
)

func recordedSession(t *testing.T) *liveRun {
	t.Helper()
	live := newLiveRun(t)
	for _, day := range warmupDays {
		live.cycle(day, 1e5)
	}
	// Candidate flow, then a fade to a weak signal: two distinct states.
	live.cycle(targetDay, 1.8e6)
	live.cycle(targetDay, 3e5)
	return live
}

func TestReplay_ReproducesLiveSession(t *testing.T) {
	live := recordedSession(t)

	engine := New(live.cfg, "cfg-hash", live.archive, live.snapshots, &staticUniverse{universe: testUniverse()}, logger.Nop())
	report, err := engine.Replay(context.Background(), targetDate)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if !report.Clean() {
		t.Fatalf("report not clean: %+v", report)
	}
	if report.CyclesReplayed != 2 {
		t.Errorf("CyclesReplayed = %d, want 2", report.CyclesReplayed)
	}
	if report.WarmupSessions != 5 {
		t.Errorf("WarmupSessions = %d, want 5", report.WarmupSessions)
	}
	if report.LiveSnapshots != 2 || report.ReplayedSnapshots != 2 {
		t.Errorf("snapshots live=%d replayed=%d, want 2/2", report.LiveSnapshots, report.ReplayedSnapshots)
	}
}

func TestReplay_SurfacesDivergence(t *testing.T) {
	live := recordedSession(t)

	// A drifted gate config under the same recorded hash: the candidate
	// cycle now rejects as anomalous, which replay must surface.
	drifted := funnelconfig.NewTestConfig()
	drifted.Gates.FlowRatioMax = 0.01
	drifted.Gates.DivergenceRatioMax = 0.008

	engine := New(drifted, "cfg-hash", live.archive, live.snapshots, &staticUniverse{universe: testUniverse()}, logger.Nop())
	report, err := engine.Replay(context.Background(), targetDate)
	if !errors.Is(err, contracts.ErrReplayDivergence) {
		t.Fatalf("err = %v, want ErrReplayDivergence", err)
	}
	if report == nil || len(report.Divergences) == 0 {
		t.Fatal("divergence not reported")
	}

	d := report.Divergences[0]
	if d.InstrumentID != instID {
		t.Errorf("divergent instrument = %s, want %s", d.InstrumentID, instID)
	}
	if d.Live == d.Replayed {
		t.Error("divergence records identical tags")
	}
}

func TestReplay_RejectsConfigHashMismatch(t *testing.T) {
	live := recordedSession(t)

	engine := New(live.cfg, "other-hash", live.archive, live.snapshots, &staticUniverse{universe: testUniverse()}, logger.Nop())
	_, err := engine.Replay(context.Background(), targetDate)
	if err == nil {
		t.Fatal("expected config hash mismatch error")
	}
	if errors.Is(err, contracts.ErrReplayDivergence) {
		t.Error("config mismatch misreported as divergence")
	}
}

func TestReplayCycle_HonorsRecordedCoverage(t *testing.T) {
	cfg := funnelconfig.NewTestConfig()
	e := New(cfg, "cfg-hash", archive.NewMemoryRepository(), snapshot.NewMemoryRepository(), &staticUniverse{universe: testUniverse()}, logger.Nop())

	engine := feature.NewEngine(cfg)
	classifier := risk.NewClassifier(cfg, engine)
	gates := funnel.New(cfg)

	// The archive holds a sample, but the live run recorded a gap. Replay
	// must not upgrade coverage.
	asOf := targetDay
	samples := contracts.NewSampleSet(asOf)
	samples.Samples[instID] = flowSample(1e6)
	selection := contracts.NewProviderSelectionLog(asOf)
	selection.RecordGap(instID)

	result := e.replayCycle(context.Background(), engine, classifier, gates, contracts.ArchivedCycle{
		SessionDate: targetDate,
		CycleIndex:  1,
		Samples:     samples,
		Selection:   selection,
	})

	if result == nil {
		t.Fatal("replayCycle returned nil")
	}
	if _, ok := result.Records[instID]; ok {
		t.Error("gapped instrument was evaluated in replay")
	}
}

func TestReplay_NoArchivedCycles(t *testing.T) {
	cfg := funnelconfig.NewTestConfig()
	e := New(cfg, "cfg-hash", archive.NewMemoryRepository(), snapshot.NewMemoryRepository(), &staticUniverse{universe: testUniverse()}, logger.Nop())

	if _, err := e.Replay(context.Background(), "2026-01-05"); err == nil {
		t.Fatal("expected error for empty session")
	}
}
