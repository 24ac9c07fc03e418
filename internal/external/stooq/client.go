package stooq

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/pkg/config"
	"github.com/jaekwon-dev/tapewatch/pkg/httputil"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

// Client is the Tier-3 delayed aggregate feed: scraped quote pages, roughly
// 15 minutes behind. The last resort before a coverage gap.
// ⭐ SSOT: Stooq scraping happens in this client only.
type Client struct {
	cfg    config.StooqConfig
	http   *httputil.Client
	logger *logger.Logger
}

// NewClient creates a Tier-3 client.
func NewClient(cfg config.StooqConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: log,
	}
}

// Tier identifies this provider in selection logs.
func (c *Client) Tier() contracts.Tier {
	return contracts.Tier3
}

// Quote scrapes the delayed quote page for one instrument.
func (c *Client) Quote(ctx context.Context, inst contracts.Instrument, asOf time.Time) (contracts.Sample, error) {
	u := fmt.Sprintf("%s/q/?s=%s.us", c.cfg.BaseURL, url.QueryEscape(strings.ToLower(inst.Symbol)))

	resp, err := c.http.Get(ctx, u)
	if err != nil {
		return contracts.Sample{}, fmt.Errorf("stooq fetch %s: %v: %w", inst.Symbol, err, contracts.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return contracts.Sample{}, fmt.Errorf("stooq status %d for %s: %w", resp.StatusCode, inst.Symbol, contracts.ErrUnavailable)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return contracts.Sample{}, fmt.Errorf("stooq parse %s: %v: %w", inst.Symbol, err, contracts.ErrUnavailable)
	}

	sample, err := c.parseQuotePage(doc, inst, asOf)
	if err != nil {
		return contracts.Sample{}, err
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": inst.Symbol,
		"last":   sample.Last,
	}).Debug("Fetched delayed quote")

	return sample, nil
}

// parseQuotePage extracts quote fields from the page's summary table. Rows
// are labeled cells ("Last", "Open", ...) next to value cells.
func (c *Client) parseQuotePage(doc *goquery.Document, inst contracts.Instrument, asOf time.Time) (contracts.Sample, error) {
	fields := make(map[string]float64)

	doc.Find("table#t1 td, table.fth1 td").Each(func(i int, s *goquery.Selection) {
		label := normalizeLabel(s.Text())
		switch label {
		case "last", "open", "high", "low", "prevclose", "volume":
			value := s.Next().Text()
			if v, ok := parseNumber(value); ok {
				fields[label] = v
			}
		}
	})

	last, ok := fields["last"]
	if !ok || last <= 0 {
		return contracts.Sample{}, fmt.Errorf("stooq: no usable quote for %s: %w", inst.Symbol, contracts.ErrUnavailable)
	}

	prevClose := fields["prevclose"]
	volume := int64(fields["volume"])
	value := last * float64(volume)

	return contracts.Sample{
		InstrumentID: inst.ID(),
		Last:         last,
		Open:         fields["open"],
		High:         fields["high"],
		Low:          fields["low"],
		PrevClose:    prevClose,
		Volume:       volume,
		Value:        value,
		NetFlow:      dailyChangeFlow(last, prevClose, value),
		Timestamp:    asOf,
	}, nil
}

// dailyChangeFlow signs the session value by the daily change. A delayed
// aggregate feed has no book, so this is the only direction available.
func dailyChangeFlow(last, prevClose, value float64) float64 {
	switch {
	case prevClose > 0 && last > prevClose:
		return value
	case prevClose > 0 && last < prevClose:
		return -value
	default:
		return 0
	}
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ":")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ".", "")
	if s == "prevclose" || s == "previousclose" {
		return "prevclose"
	}
	return s
}

// parseNumber handles "1,234,567" and "189.50" cell formats.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" || s == "-" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
