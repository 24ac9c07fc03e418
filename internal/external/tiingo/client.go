package tiingo

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/pkg/config"
	"github.com/jaekwon-dev/tapewatch/pkg/httputil"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

// Client is the Tier-2 intraday REST feed. Flow direction is inferred from
// tick placement against the quoted mid, which is coarser than the Tier-1
// depth stream but available without a streaming session.
// ⭐ SSOT: Tiingo API calls happen in this client only.
type Client struct {
	cfg     config.TiingoConfig
	http    *httputil.Client
	logger  *logger.Logger
	limiter *rate.Limiter
}

// NewClient creates a Tier-2 client.
func NewClient(cfg config.TiingoConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		cfg:     cfg,
		http:    httpClient,
		logger:  log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
	}
}

// Tier identifies this provider in selection logs.
func (c *Client) Tier() contracts.Tier {
	return contracts.Tier2
}

// iexQuote is the intraday IEX endpoint payload.
type iexQuote struct {
	Ticker    string  `json:"ticker"`
	Last      float64 `json:"last"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	PrevClose float64 `json:"prevClose"`
	BidPrice  float64 `json:"bidPrice"`
	AskPrice  float64 `json:"askPrice"`
	Volume    int64   `json:"volume"`
	Timestamp string  `json:"timestamp"`
}

// Quote fetches the current intraday state for one instrument.
// Empty payloads and malformed rows report unavailable, same as a timeout.
func (c *Client) Quote(ctx context.Context, inst contracts.Instrument, asOf time.Time) (contracts.Sample, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return contracts.Sample{}, fmt.Errorf("tiingo rate wait: %w", err)
	}

	u := fmt.Sprintf("%s/iex/%s?token=%s",
		c.cfg.BaseURL, url.PathEscape(inst.Symbol), url.QueryEscape(c.cfg.Token))

	var payload []iexQuote
	if err := c.http.GetJSON(ctx, u, &payload); err != nil {
		return contracts.Sample{}, fmt.Errorf("tiingo quote %s: %v: %w", inst.Symbol, err, contracts.ErrUnavailable)
	}

	if len(payload) == 0 {
		return contracts.Sample{}, fmt.Errorf("tiingo: empty payload for %s: %w", inst.Symbol, contracts.ErrUnavailable)
	}

	q := payload[0]
	if q.Last <= 0 {
		return contracts.Sample{}, fmt.Errorf("tiingo: malformed quote for %s: %w", inst.Symbol, contracts.ErrUnavailable)
	}

	ts, err := time.Parse(time.RFC3339, q.Timestamp)
	if err != nil {
		ts = asOf
	}

	value := estimateValue(q)

	return contracts.Sample{
		InstrumentID: inst.ID(),
		Last:         q.Last,
		Open:         q.Open,
		High:         q.High,
		Low:          q.Low,
		PrevClose:    q.PrevClose,
		Bid:          q.BidPrice,
		Ask:          q.AskPrice,
		Volume:       q.Volume,
		Value:        value,
		NetFlow:      inferNetFlow(q, value),
		Timestamp:    ts,
	}, nil
}

// estimateValue approximates session traded value from volume and the
// session midpoint, since the endpoint does not report turnover directly.
func estimateValue(q iexQuote) float64 {
	ref := (q.High + q.Low) / 2
	if ref <= 0 {
		ref = q.Last
	}
	return ref * float64(q.Volume)
}

// inferNetFlow signs the session value by where last printed inside the
// spread, scaled to [-1, 1]. Without per-trade data this is the best
// available directional estimate for this tier.
func inferNetFlow(q iexQuote, value float64) float64 {
	spread := q.AskPrice - q.BidPrice
	if spread <= 0 {
		// No book: fall back to the daily-change sign
		switch {
		case q.PrevClose > 0 && q.Last > q.PrevClose:
			return value
		case q.PrevClose > 0 && q.Last < q.PrevClose:
			return -value
		default:
			return 0
		}
	}

	mid := (q.AskPrice + q.BidPrice) / 2
	lean := (q.Last - mid) / (spread / 2)
	if lean > 1 {
		lean = 1
	} else if lean < -1 {
		lean = -1
	}
	return value * lean
}
