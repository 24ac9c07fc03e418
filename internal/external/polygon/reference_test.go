package polygon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jaekwon-dev/tapewatch/internal/contracts"
	"github.com/jaekwon-dev/tapewatch/pkg/config"
	"github.com/jaekwon-dev/tapewatch/pkg/httputil"
	"github.com/jaekwon-dev/tapewatch/pkg/logger"
)

func newReferenceClient(serverURL string) *Client {
	return NewClient(config.PolygonConfig{
		APIKey:       "test-key",
		BaseURL:      serverURL,
		MaxStaleness: 10 * time.Second,
	}, logger.Nop(), httputil.New(logger.Nop()).DisableRetry())
}

func TestFetchReference_PagesUntilExhausted(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("cursor") == "p2" {
			w.Write([]byte(`{
				"status": "OK",
				"results": [
					{"ticker": "MSFT", "name": "Microsoft", "primary_exchange": "XNAS", "market": "stocks", "weighted_shares_outstanding": 7.4e9}
				]
			}`))
			return
		}
		if got := r.URL.Query().Get("exchange"); got != "XNAS" {
			t.Errorf("exchange param = %q, want XNAS", got)
		}
		fmt.Fprintf(w, `{
			"status": "OK",
			"results": [
				{"ticker": "AAPL", "name": "Apple Inc.", "primary_exchange": "XNAS", "market": "stocks", "weighted_shares_outstanding": 1.5e10}
			],
			"next_url": %q
		}`, server.URL+"/v3/reference/tickers?cursor=p2")
	}))
	defer server.Close()

	c := newReferenceClient(server.URL)
	instruments, err := c.FetchReference(context.Background(), "XNAS")
	if err != nil {
		t.Fatalf("FetchReference: %v", err)
	}

	if len(instruments) != 2 {
		t.Fatalf("got %d instruments across pages, want 2", len(instruments))
	}
	if instruments[0].ID() != "XNAS:AAPL" || instruments[1].ID() != "XNAS:MSFT" {
		t.Errorf("IDs = %s, %s", instruments[0].ID(), instruments[1].ID())
	}
	if instruments[0].FloatShares != 1.5e10 {
		t.Errorf("FloatShares = %v, want 1.5e10", instruments[0].FloatShares)
	}
	if instruments[0].Segment != "stocks" {
		t.Errorf("Segment = %q, want stocks", instruments[0].Segment)
	}
}

func TestFetchReference_NonOKStatusUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ERROR", "results": []}`))
	}))
	defer server.Close()

	c := newReferenceClient(server.URL)
	_, err := c.FetchReference(context.Background(), "XNAS")
	if !errors.Is(err, contracts.ErrUnavailable) {
		t.Errorf("err = %v, want wrapped ErrUnavailable", err)
	}
}
