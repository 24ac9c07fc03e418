package monitor

import (
	"fmt"
	"time"

	"github.com/jaekwon-dev/tapewatch/internal/funnelconfig"
)

// SessionClock answers "is the market open" in the exchange's local time.
type SessionClock struct {
	loc       *time.Location
	openMin   int // minutes after midnight
	closeMin  int
	openSpec  string
	closeSpec string
}

// NewSessionClock builds the clock from the strategy's session window.
func NewSessionClock(meta funnelconfig.Meta) (*SessionClock, error) {
	loc, err := time.LoadLocation(meta.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load session timezone %q: %w", meta.Timezone, err)
	}

	openMin, err := parseClock(meta.Session.Open)
	if err != nil {
		return nil, fmt.Errorf("invalid session open: %w", err)
	}
	closeMin, err := parseClock(meta.Session.Close)
	if err != nil {
		return nil, fmt.Errorf("invalid session close: %w", err)
	}
	if closeMin <= openMin {
		return nil, fmt.Errorf("session close %s is not after open %s", meta.Session.Close, meta.Session.Open)
	}

	return &SessionClock{
		loc:       loc,
		openMin:   openMin,
		closeMin:  closeMin,
		openSpec:  meta.Session.Open,
		closeSpec: meta.Session.Close,
	}, nil
}

// InSession reports whether t falls inside the trading session. Open is
// inclusive, close exclusive. Weekends are closed.
func (c *SessionClock) InSession(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	return minutes >= c.openMin && minutes < c.closeMin
}

// SessionDate returns the session date for t in exchange-local time.
func (c *SessionClock) SessionDate(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}

func parseClock(spec string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(spec, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q: %w", spec, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q out of range", spec)
	}
	return h*60 + m, nil
}
