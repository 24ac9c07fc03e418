package stooq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/pkg/config"
	"github.com/jaekwon-dev/tapewatch/pkg/httputil"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

const quotePage = `
<html><body>
<table id="t1">
<tr><td>Last:</td><td>42.50</td></tr>
<tr><td>Open:</td><td>41.80</td></tr>
<tr><td>High:</td><td>43.10</td></tr>
<tr><td>Low:</td><td>41.60</td></tr>
<tr><td>Prev. close:</td><td>41.00</td></tr>
<tr><td>Volume:</td><td>1,250,000</td></tr>
</table>
</body></html>`

func newTestClient(serverURL string) *Client {
	return NewClient(
		config.StooqConfig{BaseURL: serverURL},
		httputil.New(logger.Nop()).DisableRetry(),
		logger.Nop(),
	)
}

func TestQuote_ParsesQuotePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(quotePage))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	asOf := time.Date(2026, 3, 2, 15, 45, 0, 0, time.UTC)

	inst := contracts.Instrument{Symbol: "XYZ", Exchange: "NYSE"}
	sample, err := c.Quote(context.Background(), inst, asOf)
	if err != nil {
		t.Fatalf("Quote() failed: %v", err)
	}

	if sample.Last != 42.50 {
		t.Errorf("Last = %v, want 42.50", sample.Last)
	}
	if sample.PrevClose != 41.00 {
		t.Errorf("PrevClose = %v, want 41.00", sample.PrevClose)
	}
	if sample.Volume != 1250000 {
		t.Errorf("Volume = %d, want 1250000", sample.Volume)
	}
	// Up day: flow is positive session value
	if sample.NetFlow <= 0 {
		t.Errorf("NetFlow = %v, want positive on an up day", sample.NetFlow)
	}
	if !sample.Timestamp.Equal(asOf) {
		t.Errorf("Timestamp = %v, want asOf", sample.Timestamp)
	}
}

func TestQuote_EmptyPageUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>No data</body></html>`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Quote(context.Background(), contracts.Instrument{Symbol: "XYZ"}, time.Now())
	if !contracts.IsUnavailable(err) {
		t.Errorf("empty page should be unavailable, got %v", err)
	}
}

func TestQuote_ServerErrorUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Quote(context.Background(), contracts.Instrument{Symbol: "XYZ"}, time.Now())
	if !contracts.IsUnavailable(err) {
		t.Errorf("server error should be unavailable, got %v", err)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42.50", 42.50, true},
		{"1,250,000", 1250000, true},
		{" 7 ", 7, true},
		{"-", 0, false},
		{"", 0, false},
		{"n/a", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseNumber(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseNumber(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDailyChangeFlow(t *testing.T) {
	if got := dailyChangeFlow(42, 41, 1000); got != 1000 {
		t.Errorf("up day flow = %v, want 1000", got)
	}
	if got := dailyChangeFlow(40, 41, 1000); got != -1000 {
		t.Errorf("down day flow = %v, want -1000", got)
	}
	if got := dailyChangeFlow(41, 41, 1000); got != 0 {
		t.Errorf("flat day flow = %v, want 0", got)
	}
	if got := dailyChangeFlow(41, 0, 1000); got != 0 {
		t.Errorf("no prev close flow = %v, want 0", got)
	}
}
