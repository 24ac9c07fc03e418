package feature

// dayRecord is one session's aggregated observation for an instrument.
// Cumulative session values, so re-observing the same date replaces the
// record rather than adding to it.
type dayRecord struct {
	Date    string // session date, YYYY-MM-DD
	NetFlow float64
	Value   float64
	Volume  int64
	Open    float64
	High    float64
	Low     float64
	Close   float64
}

// rangeFrac returns the session's high-low range as a fraction of the open.
func (d dayRecord) rangeFrac() float64 {
	if d.Open <= 0 {
		return 0
	}
	return (d.High - d.Low) / d.Open
}

// dailyWindow is a bounded rolling buffer of daily records, oldest first.
// Each session enters once and leaves once: intraday updates overwrite the
// newest record in place, and the oldest record is evicted when the window
// exceeds its lookback. Owned exclusively by the engine's single active
// cycle.
type dailyWindow struct {
	lookback int
	days     []dayRecord
}

func newDailyWindow(lookback int) *dailyWindow {
	return &dailyWindow{lookback: lookback}
}

// observe records one session observation. Same date replaces the newest
// record; a new date appends and evicts past the lookback.
func (w *dailyWindow) observe(rec dayRecord) {
	if n := len(w.days); n > 0 && w.days[n-1].Date == rec.Date {
		w.days[n-1] = rec
		return
	}
	w.days = append(w.days, rec)
	if len(w.days) > w.lookback {
		w.days = w.days[len(w.days)-w.lookback:]
	}
}

// priorDays returns the number of complete sessions before the newest record.
func (w *dailyWindow) priorDays() int {
	if len(w.days) == 0 {
		return 0
	}
	return len(w.days) - 1
}

// sumFlow sums net flow over the most recent n sessions, newest included.
func (w *dailyWindow) sumFlow(n int) float64 {
	start := len(w.days) - n
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, d := range w.days[start:] {
		sum += d.NetFlow
	}
	return sum
}

// flows returns the daily net-flow series, oldest first.
func (w *dailyWindow) flows() []float64 {
	out := make([]float64, len(w.days))
	for i, d := range w.days {
		out[i] = d.NetFlow
	}
	return out
}

// avgPriorValue averages traded value over the sessions before the newest.
func (w *dailyWindow) avgPriorValue() float64 {
	return w.avgPrior(func(d dayRecord) float64 { return d.Value })
}

// avgPriorVolume averages volume over the sessions before the newest.
func (w *dailyWindow) avgPriorVolume() float64 {
	return w.avgPrior(func(d dayRecord) float64 { return float64(d.Volume) })
}

// avgPriorRangeFrac averages the range fraction over the sessions before the
// newest.
func (w *dailyWindow) avgPriorRangeFrac() float64 {
	return w.avgPrior(func(d dayRecord) float64 { return d.rangeFrac() })
}

func (w *dailyWindow) avgPrior(value func(dayRecord) float64) float64 {
	n := w.priorDays()
	if n == 0 {
		return 0
	}
	var sum float64
	for _, d := range w.days[:n] {
		sum += value(d)
	}
	return sum / float64(n)
}

// closeNBack returns the close n sessions before the newest record, or 0
// when the window is too short.
func (w *dailyWindow) closeNBack(n int) float64 {
	idx := len(w.days) - 1 - n
	if idx < 0 {
		return 0
	}
	return w.days[idx].Close
}

// upStreak counts consecutive up sessions ending at the newest record, each
// session's close compared against the one before it.
func (w *dailyWindow) upStreak() int {
	streak := 0
	for i := len(w.days) - 1; i > 0; i-- {
		if w.days[i].Close <= w.days[i-1].Close {
			break
		}
		streak++
	}
	return streak
}
