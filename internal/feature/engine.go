package feature

import (
	"time"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/internal/funnelconfig"
)

const dateLayout = "2006-01-02"

// Engine turns raw provider samples into comparable, dimensionless signals.
// It owns the per-instrument rolling daily buffers; only the single active
// cycle mutates them, so no locking is needed.
// ⭐ SSOT: every derived metric the funnel and classifier consume is
// computed here only.
type Engine struct {
	minHistory int
	lookback   int

	windows map[string]*dailyWindow
}

// NewEngine creates an engine with the configured history windows.
func NewEngine(cfg *funnelconfig.Config) *Engine {
	return &Engine{
		minHistory: cfg.Feature.MinHistoryDays,
		lookback:   cfg.Feature.LookbackDays,
		windows:    make(map[string]*dailyWindow),
	}
}

// Compute derives features for every covered instrument in the cycle. The
// returned set shares the sample set's as-of timestamp and is never mutated
// after this call returns. Instruments missing from the universe are skipped;
// the provider selection log already carries them as gaps or strays.
func (e *Engine) Compute(universe *contracts.Universe, samples *contracts.SampleSet) *contracts.FeatureSet {
	set := contracts.NewFeatureSet(samples.AsOf)
	date := samples.AsOf.Format(dateLayout)

	for id, sample := range samples.Samples {
		inst, ok := universe.Instruments[id]
		if !ok {
			continue
		}

		w := e.window(id)
		w.observe(dayRecord{
			Date:    date,
			NetFlow: sample.NetFlow,
			Value:   sample.Value,
			Volume:  sample.Volume,
			Open:    sample.Open,
			High:    sample.High,
			Low:     sample.Low,
			Close:   sample.Last,
		})

		set.Features[id] = e.derive(inst, sample, w)
	}

	return set
}

// derive computes one instrument's features from its updated window.
// "Insufficient data" becomes a marked state, never a zero-filled pass.
func (e *Engine) derive(inst contracts.Instrument, sample contracts.Sample, w *dailyWindow) *contracts.InstrumentFeatures {
	f := &contracts.InstrumentFeatures{
		InstrumentID: inst.ID(),
		HistoryDays:  w.priorDays(),
	}

	if f.HistoryDays < e.minHistory {
		f.State = contracts.FeatureInsufficientHistory
		return f
	}

	floatValue := inst.FloatValue(sample.Last)
	if floatValue <= 0 {
		// Never substitute an estimated float. The funnel sees this as a
		// distinct non-decision state.
		f.State = contracts.FeatureNoFloat
		return f
	}

	f.State = contracts.FeatureOK
	f.FlowRatio = sample.NetFlow / floatValue

	f.NetFlow3D = w.sumFlow(3)
	f.NetFlow5D = w.sumFlow(5)
	f.NetFlow10D = w.sumFlow(10)
	f.NetFlow20D = w.sumFlow(20)

	// Each ratio is normalized against the instrument's own trailing
	// history so the signal stays comparable across market-cap regimes.
	f.TurnoverRatio = ratioToBase(sample.Value, w.avgPriorValue())
	f.VolatilityRatio = ratioToBase(sampleRangeFrac(sample), w.avgPriorRangeFrac())
	f.VolumeRatio = ratioToBase(float64(sample.Volume), w.avgPriorVolume())

	f.Return1D = simpleReturn(sample.Last, sample.PrevClose)
	f.Return5D = simpleReturn(sample.Last, w.closeNBack(5))
	f.UpStreak = w.upStreak()
	f.IntradayDrawdown = drawdown(sample.High, sample.Last)

	return f
}

// FlowSeries returns the instrument's daily net-flow series, oldest first.
// The capital-origin classifier reads the shape of this series.
func (e *Engine) FlowSeries(id string) []float64 {
	w, ok := e.windows[id]
	if !ok {
		return nil
	}
	return w.flows()
}

// SeedSession records one completed historical session for an instrument,
// warming the rolling buffer before live monitoring starts.
func (e *Engine) SeedSession(id string, date time.Time, s contracts.Sample) {
	e.window(id).observe(dayRecord{
		Date:    date.Format(dateLayout),
		NetFlow: s.NetFlow,
		Value:   s.Value,
		Volume:  s.Volume,
		Open:    s.Open,
		High:    s.High,
		Low:     s.Low,
		Close:   s.Last,
	})
}

// Reset drops every rolling buffer. Called on monitor teardown.
func (e *Engine) Reset() {
	e.windows = make(map[string]*dailyWindow)
}

func (e *Engine) window(id string) *dailyWindow {
	w, ok := e.windows[id]
	if !ok {
		w = newDailyWindow(e.lookback)
		e.windows[id] = w
	}
	return w
}

// ratioToBase divides today's value by its trailing base. An unusable base
// (halted or zero-activity history) yields 0, which no spike detector
// treats as elevated.
func ratioToBase(today, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return today / base
}

func sampleRangeFrac(s contracts.Sample) float64 {
	if s.Open <= 0 {
		return 0
	}
	return (s.High - s.Low) / s.Open
}

func simpleReturn(last, base float64) float64 {
	if base <= 0 {
		return 0
	}
	return (last - base) / base
}

func drawdown(high, last float64) float64 {
	if high <= 0 {
		return 0
	}
	return (high - last) / high
}
