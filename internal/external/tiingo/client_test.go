package tiingo

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

func newTestClient(serverURL string) *Client {
	return NewClient(config.TiingoConfig{
		Token:      "test-token",
		BaseURL:    serverURL,
		RatePerSec: 1000,
		Burst:      1000,
	}, httputil.New(logger.Nop()).DisableRetry(), logger.Nop())
}

func TestQuote_ParsesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{
			"ticker": "AAPL",
			"last": 189.5,
			"open": 187.0,
			"high": 190.0,
			"low": 186.5,
			"prevClose": 186.0,
			"bidPrice": 189.4,
			"askPrice": 189.6,
			"volume": 1000000,
			"timestamp": "2026-03-02T15:45:00Z"
		}]`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	inst := contracts.Instrument{Symbol: "AAPL", Exchange: "NASDAQ"}
	sample, err := c.Quote(context.Background(), inst, time.Now())
	if err != nil {
		t.Fatalf("Quote() failed: %v", err)
	}

	if sample.InstrumentID != "NASDAQ:AAPL" {
		t.Errorf("InstrumentID = %s", sample.InstrumentID)
	}
	if sample.Last != 189.5 {
		t.Errorf("Last = %v, want 189.5", sample.Last)
	}
	if sample.Volume != 1000000 {
		t.Errorf("Volume = %d, want 1000000", sample.Volume)
	}
	// Last printed exactly at mid: no directional lean
	if sample.NetFlow != 0 {
		t.Errorf("NetFlow = %v, want 0 for mid print", sample.NetFlow)
	}
	if !sample.Timestamp.Equal(time.Date(2026, 3, 2, 15, 45, 0, 0, time.UTC)) {
		t.Errorf("Timestamp = %v", sample.Timestamp)
	}
}

func TestQuote_EmptyPayloadUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Quote(context.Background(), contracts.Instrument{Symbol: "AAPL"}, time.Now())
	if !contracts.IsUnavailable(err) {
		t.Errorf("empty payload should be unavailable, got %v", err)
	}
}

func TestQuote_MalformedPayloadUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detail": "not found"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Quote(context.Background(), contracts.Instrument{Symbol: "AAPL"}, time.Now())
	if !contracts.IsUnavailable(err) {
		t.Errorf("malformed payload should be unavailable, got %v", err)
	}
}

func TestQuote_ServerErrorUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Quote(context.Background(), contracts.Instrument{Symbol: "AAPL"}, time.Now())
	if !contracts.IsUnavailable(err) {
		t.Errorf("server error should be unavailable, got %v", err)
	}
}

func TestInferNetFlow(t *testing.T) {
	tests := []struct {
		name string
		q    iexQuote
		want float64 // sign only: +1, -1, 0
	}{
		{"print at ask", iexQuote{Last: 100.1, BidPrice: 99.9, AskPrice: 100.1, PrevClose: 99}, 1},
		{"print at bid", iexQuote{Last: 99.9, BidPrice: 99.9, AskPrice: 100.1, PrevClose: 101}, -1},
		{"no book, up day", iexQuote{Last: 101, PrevClose: 100}, 1},
		{"no book, down day", iexQuote{Last: 99, PrevClose: 100}, -1},
		{"no book, flat", iexQuote{Last: 100, PrevClose: 100}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inferNetFlow(tt.q, 1000)
			switch {
			case tt.want > 0 && got <= 0:
				t.Errorf("inferNetFlow = %v, want positive", got)
			case tt.want < 0 && got >= 0:
				t.Errorf("inferNetFlow = %v, want negative", got)
			case tt.want == 0 && got != 0:
				t.Errorf("inferNetFlow = %v, want 0", got)
			}
		})
	}
}
