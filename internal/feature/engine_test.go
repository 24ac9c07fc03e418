package feature

import (
	"math"
	"testing"
	"time"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/internal/funnelconfig"
)

func testInstrument(floatShares float64) contracts.Instrument {
	return contracts.Instrument{Symbol: "AAPL", Exchange: "NASDAQ", FloatShares: floatShares}
}

func testUniverse(inst contracts.Instrument) *contracts.Universe {
	return &contracts.Universe{
		Instruments: map[string]contracts.Instrument{inst.ID(): inst},
	}
}

func day(offset int) time.Time {
	return time.Date(2026, 8, 3+offset, 16, 0, 0, 0, time.UTC)
}

// seedFlat warms the instrument's buffer with n identical completed sessions.
func seedFlat(e *Engine, id string, n int, s contracts.Sample) {
	for i := 0; i < n; i++ {
		e.SeedSession(id, day(i), s)
	}
}

func cycleSet(asOf time.Time, id string, s contracts.Sample) *contracts.SampleSet {
	set := contracts.NewSampleSet(asOf)
	s.InstrumentID = id
	s.Timestamp = asOf
	set.Samples[id] = s
	return set
}

func assertApprox(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestCompute_InsufficientHistoryIsMarkedNotZeroed(t *testing.T) {
	cfg := funnelconfig.NewTestConfig()
	engine := NewEngine(cfg)
	inst := testInstrument(1e6)

	sample := contracts.Sample{Last: 100, Open: 100, High: 101, Low: 99, PrevClose: 100, NetFlow: 5e6}
	features := engine.Compute(testUniverse(inst), cycleSet(day(10), inst.ID(), sample))

	f, ok := features.Get(inst.ID())
	if !ok {
		t.Fatal("features missing for covered instrument")
	}
	if f.State != contracts.FeatureInsufficientHistory {
		t.Errorf("State = %v, want INSUFFICIENT_HISTORY", f.State)
	}
	if f.Usable() {
		t.Error("insufficient history must not be usable by the funnel")
	}
	if f.HistoryDays != 0 {
		t.Errorf("HistoryDays = %d, want 0", f.HistoryDays)
	}
	if f.FlowRatio != 0 {
		t.Errorf("FlowRatio = %v, want unset on insufficient history", f.FlowRatio)
	}
}

func TestCompute_MissingFloatIsMarkedNotEstimated(t *testing.T) {
	cfg := funnelconfig.NewTestConfig()
	engine := NewEngine(cfg)
	inst := testInstrument(0)

	base := contracts.Sample{Last: 100, Open: 100, High: 101, Low: 99, PrevClose: 100, Volume: 1000, Value: 1e5, NetFlow: 1e5}
	seedFlat(engine, inst.ID(), 5, base)

	features := engine.Compute(testUniverse(inst), cycleSet(day(10), inst.ID(), base))

	f, _ := features.Get(inst.ID())
	if f.State != contracts.FeatureNoFloat {
		t.Errorf("State = %v, want NO_FLOAT", f.State)
	}
}

func TestCompute_FlowRatioAndTrailingRatios(t *testing.T) {
	cfg := funnelconfig.NewTestConfig()
	engine := NewEngine(cfg)
	inst := testInstrument(1e6)

	base := contracts.Sample{Last: 100, Open: 100, High: 101, Low: 99, PrevClose: 100, Volume: 1000, Value: 1e5, NetFlow: 1e5}
	seedFlat(engine, inst.ID(), 5, base)

	today := base
	today.NetFlow = 2e6
	today.Volume = 3000
	today.Value = 2e5

	features := engine.Compute(testUniverse(inst), cycleSet(day(10), inst.ID(), today))

	f, _ := features.Get(inst.ID())
	if f.State != contracts.FeatureOK {
		t.Fatalf("State = %v, want OK", f.State)
	}
	// 2e6 net flow against 1e6 shares * 100 = 1e8 float value.
	assertApprox(t, "FlowRatio", f.FlowRatio, 0.02)
	// Two prior sessions at 1e5 plus today's 2e6.
	assertApprox(t, "NetFlow3D", f.NetFlow3D, 2.2e6)
	assertApprox(t, "NetFlow5D", f.NetFlow5D, 2.4e6)
	assertApprox(t, "VolumeRatio", f.VolumeRatio, 3.0)
	assertApprox(t, "TurnoverRatio", f.TurnoverRatio, 2.0)
	if f.HistoryDays != 5 {
		t.Errorf("HistoryDays = %d, want 5", f.HistoryDays)
	}
}

func TestCompute_PriceShape(t *testing.T) {
	cfg := funnelconfig.NewTestConfig()
	engine := NewEngine(cfg)
	inst := testInstrument(1e6)
	id := inst.ID()

	closes := []float64{100, 101, 102, 103, 104}
	for i, c := range closes {
		engine.SeedSession(id, day(i), contracts.Sample{
			Last: c, Open: c, High: c + 1, Low: c - 1, PrevClose: c, Volume: 1000, Value: 1e5, NetFlow: 1e5,
		})
	}

	today := contracts.Sample{Last: 110, Open: 105, High: 112, Low: 104, PrevClose: 104, Volume: 1000, Value: 1e5, NetFlow: 1e5}
	features := engine.Compute(testUniverse(inst), cycleSet(day(10), id, today))

	f, _ := features.Get(id)
	assertApprox(t, "Return1D", f.Return1D, 6.0/104.0)
	assertApprox(t, "Return5D", f.Return5D, 0.10)
	assertApprox(t, "IntradayDrawdown", f.IntradayDrawdown, 2.0/112.0)
	if f.UpStreak != 5 {
		t.Errorf("UpStreak = %d, want 5", f.UpStreak)
	}
}

func TestCompute_SameSessionReobservedIsNotDoubleCounted(t *testing.T) {
	cfg := funnelconfig.NewTestConfig()
	engine := NewEngine(cfg)
	inst := testInstrument(1e6)

	base := contracts.Sample{Last: 100, Open: 100, High: 101, Low: 99, PrevClose: 100, Volume: 1000, Value: 1e5, NetFlow: 1e5}
	seedFlat(engine, inst.ID(), 5, base)

	today := base
	today.NetFlow = 1e6
	asOf := day(10)

	first := engine.Compute(testUniverse(inst), cycleSet(asOf, inst.ID(), today))

	// Later intraday cycle on the same session, flow has grown.
	today.NetFlow = 1.5e6
	second := engine.Compute(testUniverse(inst), cycleSet(asOf.Add(15*time.Second), inst.ID(), today))

	f1, _ := first.Get(inst.ID())
	f2, _ := second.Get(inst.ID())

	assertApprox(t, "first NetFlow3D", f1.NetFlow3D, 2e5+1e6)
	// The session's record is replaced, never added twice.
	assertApprox(t, "second NetFlow3D", f2.NetFlow3D, 2e5+1.5e6)
	if f2.HistoryDays != 5 {
		t.Errorf("HistoryDays = %d, want 5 after intraday re-observation", f2.HistoryDays)
	}
}

func TestWindow_EvictsExactlyOnce(t *testing.T) {
	w := newDailyWindow(3)
	for i, flow := range []float64{1, 2, 3, 4} {
		w.observe(dayRecord{Date: day(i).Format(dateLayout), NetFlow: flow, Close: 100})
	}

	if len(w.days) != 3 {
		t.Fatalf("window holds %d days, want 3", len(w.days))
	}
	assertApprox(t, "sumFlow(3)", w.sumFlow(3), 9) // 2+3+4, day one evicted
	assertApprox(t, "sumFlow(20)", w.sumFlow(20), 9)
}

func TestFlowSeriesAndReset(t *testing.T) {
	cfg := funnelconfig.NewTestConfig()
	engine := NewEngine(cfg)
	inst := testInstrument(1e6)
	id := inst.ID()

	for i, flow := range []float64{1e5, -2e5, 3e5} {
		engine.SeedSession(id, day(i), contracts.Sample{Last: 100, NetFlow: flow})
	}

	series := engine.FlowSeries(id)
	if len(series) != 3 {
		t.Fatalf("FlowSeries length = %d, want 3", len(series))
	}
	assertApprox(t, "series[1]", series[1], -2e5)

	engine.Reset()
	if got := engine.FlowSeries(id); got != nil {
		t.Errorf("FlowSeries after Reset = %v, want nil", got)
	}
}
