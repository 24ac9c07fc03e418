package polygon

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
)

// referenceResponse is the reference tickers payload.
type referenceResponse struct {
	Results []struct {
		Ticker          string  `json:"ticker"`
		Name            string  `json:"name"`
		PrimaryExchange string  `json:"primary_exchange"`
		Market          string  `json:"market"`
		WeightedShares  float64 `json:"weighted_shares_outstanding"`
	} `json:"results"`
	NextURL string `json:"next_url"`
	Status  string `json:"status"`
}

// FetchReference pulls instrument reference data (identifier, float shares,
// segment) for the daily universe refresh. Pages through next_url until
// exhausted.
func (c *Client) FetchReference(ctx context.Context, exchange string) ([]contracts.Instrument, error) {
	base := fmt.Sprintf(
		"%s/v3/reference/tickers?market=stocks&exchange=%s&active=true&limit=1000&apiKey=%s",
		c.cfg.BaseURL, url.QueryEscape(exchange), url.QueryEscape(c.cfg.APIKey),
	)

	var instruments []contracts.Instrument
	next := base

	for next != "" {
		var payload referenceResponse
		if err := c.rest.GetJSON(ctx, next, &payload); err != nil {
			return nil, fmt.Errorf("polygon reference fetch: %w", err)
		}
		if payload.Status != "OK" {
			return nil, fmt.Errorf("polygon reference status %q: %w", payload.Status, contracts.ErrUnavailable)
		}

		for _, r := range payload.Results {
			instruments = append(instruments, contracts.Instrument{
				Symbol:      r.Ticker,
				Exchange:    r.PrimaryExchange,
				Name:        r.Name,
				FloatShares: r.WeightedShares,
				Segment:     r.Market,
			})
		}

		next = payload.NextURL
		if next != "" {
			next += "&apiKey=" + url.QueryEscape(c.cfg.APIKey)
		}
	}

	return instruments, nil
}
