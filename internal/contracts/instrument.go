package contracts

import (
	"fmt"
	"time"
)

// Instrument identifies one listed equity plus the static attributes the
// feature engine needs. Immutable within a trading day; the universe
// refresher rebuilds the set daily.
// ⭐ SSOT: instrument identity lives here only.
type Instrument struct {
	Symbol      string  `json:"symbol"`
	Exchange    string  `json:"exchange"`
	Name        string  `json:"name"`
	FloatShares float64 `json:"float_shares"` // circulating shares
	Segment     string  `json:"segment"`      // market segment, e.g. "main", "smallcap"
}

// ID returns the exchange-qualified identifier, e.g. "NASDAQ:AAPL".
func (i Instrument) ID() string {
	return fmt.Sprintf("%s:%s", i.Exchange, i.Symbol)
}

// FloatValue returns the circulating market value at the given price.
// Returns 0 when float shares are unknown; callers must treat that as
// "cannot normalize", never substitute an estimate.
func (i Instrument) FloatValue(price float64) float64 {
	if i.FloatShares <= 0 || price <= 0 {
		return 0
	}
	return i.FloatShares * price
}

// Universe represents the tradable instrument set for one day.
type Universe struct {
	Date        time.Time             `json:"date"`
	Instruments map[string]Instrument `json:"instruments"` // key: Instrument.ID()
	Excluded    map[string]string     `json:"excluded"`    // id -> exclusion reason
}

// IDs returns instrument IDs in unspecified order.
func (u *Universe) IDs() []string {
	ids := make([]string, 0, len(u.Instruments))
	for id := range u.Instruments {
		ids = append(ids, id)
	}
	return ids
}

// Contains checks if an instrument is in the universe.
func (u *Universe) Contains(id string) bool {
	_, ok := u.Instruments[id]
	return ok
}

// Count returns the number of tradable instruments.
func (u *Universe) Count() int {
	return len(u.Instruments)
}
