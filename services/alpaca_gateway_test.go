package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"stocktimus/interfaces"
	"testing"
	"time"
)

func newAlpacaTestServer(t *testing.T, handler http.HandlerFunc) *AlpacaGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewAlpacaGateway(AlpacaConfig{
		APIKey:      "key",
		SecretKey:   "secret",
		DataURL:     srv.URL,
		OptionsFeed: "indicative",
		Timeout:     5 * time.Second,
	}, testLogger())
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode: %v", err)
	}
}

func TestAlpacaCurrentPrice(t *testing.T) {
	trade := map[string]interface{}{
		"t": "2025-01-02T15:04:05Z",
		"p": 155.25,
		"s": 100,
		"x": "V",
		"i": 1,
		"z": "C",
	}
	gw := newAlpacaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/stocks/trades/latest":
			writeJSON(t, w, map[string]interface{}{"trades": map[string]interface{}{"AAPL": trade}})
		case "/v2/stocks/AAPL/trades/latest":
			writeJSON(t, w, map[string]interface{}{"symbol": "AAPL", "trade": trade})
		default:
			http.NotFound(w, r)
		}
	})

	price, err := gw.CurrentPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("CurrentPrice: %v", err)
	}
	if price != 155.25 {
		t.Errorf("got %v, want 155.25", price)
	}
}

func TestAlpacaCurrentPriceUpstreamError(t *testing.T) {
	gw := newAlpacaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"forbidden"}`, http.StatusForbidden)
	})

	_, err := gw.CurrentPrice(context.Background(), "AAPL")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestAlpacaFindContractsPaginates(t *testing.T) {
	pages := 0
	gw := newAlpacaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta1/options/snapshots/AAPL" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("APCA-API-KEY-ID") != "key" || r.Header.Get("APCA-API-SECRET-KEY") != "secret" {
			t.Errorf("missing auth headers")
		}
		q := r.URL.Query()
		if q.Get("type") != "call" || q.Get("feed") != "indicative" {
			t.Errorf("unexpected filters %s", r.URL.RawQuery)
		}
		if q.Get("strike_price_gte") != "140" || q.Get("strike_price_lte") != "160" {
			t.Errorf("unexpected strike filters %s", r.URL.RawQuery)
		}
		if q.Get("expiration_date_gte") != "2025-01-17" || q.Get("expiration_date_lte") != "2025-02-21" {
			t.Errorf("unexpected expiration filters %s", r.URL.RawQuery)
		}
		pages++

		switch q.Get("page_token") {
		case "":
			writeJSON(t, w, map[string]interface{}{
				"snapshots": map[string]interface{}{
					"AAPL250221C00150000": map[string]interface{}{
						"latestTrade":       map[string]interface{}{"t": "2025-01-02T15:00:00Z", "p": 6.4, "s": 1},
						"latestQuote":       map[string]interface{}{"t": "2025-01-02T15:00:00Z", "bp": 6.3, "ap": 6.5},
						"dailyBar":          map[string]interface{}{"v": 321},
						"greeks":            map[string]interface{}{"delta": 0.55, "gamma": 0.02},
						"impliedVolatility": 0.27,
					},
					"garbage": map[string]interface{}{},
				},
				"next_page_token": "p2",
			})
		case "p2":
			writeJSON(t, w, map[string]interface{}{
				"snapshots": map[string]interface{}{
					"AAPL250117C00145000": map[string]interface{}{
						"latestQuote": map[string]interface{}{"bp": 0, "ap": 11.2},
					},
					"AAPL250117C00140000": map[string]interface{}{},
				},
				"next_page_token": nil,
			})
		default:
			t.Errorf("unexpected page token %q", q.Get("page_token"))
		}
	})

	quotes, err := gw.FindContracts(context.Background(), interfaces.ContractQuery{
		Ticker:         "aapl",
		Type:           interfaces.OptionTypeCall,
		StrikeFrom:     140,
		StrikeTo:       160,
		ExpirationFrom: date("2025-01-17"),
		ExpirationTo:   date("2025-02-21"),
	})
	if err != nil {
		t.Fatalf("FindContracts: %v", err)
	}
	if pages != 2 {
		t.Errorf("fetched %d pages, want 2", pages)
	}

	wantSymbols := []string{"AAPL250117C00140000", "AAPL250117C00145000", "AAPL250221C00150000"}
	if len(quotes) != len(wantSymbols) {
		t.Fatalf("got %d quotes, want %d", len(quotes), len(wantSymbols))
	}
	for i, s := range wantSymbols {
		if quotes[i].Symbol != s {
			t.Errorf("position %d: got %s, want %s", i, quotes[i].Symbol, s)
		}
	}

	q := quotes[2]
	if q.Underlying != "AAPL" || q.Strike != 150 || q.Type != interfaces.OptionTypeCall {
		t.Errorf("decoded identity: %+v", q)
	}
	if q.Last == nil || *q.Last != 6.4 || q.Bid == nil || *q.Bid != 6.3 || q.Ask == nil || *q.Ask != 6.5 {
		t.Errorf("decoded prices: last=%v bid=%v ask=%v", q.Last, q.Bid, q.Ask)
	}
	if q.Volume == nil || *q.Volume != 321 {
		t.Errorf("volume: got %v, want 321", q.Volume)
	}
	if q.ImpliedVolatility == nil || *q.ImpliedVolatility != 0.27 {
		t.Errorf("implied volatility: got %v", q.ImpliedVolatility)
	}
	if q.Greeks.Delta == nil || *q.Greeks.Delta != 0.55 || q.Greeks.Vega != nil {
		t.Errorf("greeks: %+v", q.Greeks)
	}

	if quotes[1].Bid != nil || quotes[1].Ask == nil {
		t.Errorf("zero bid should be dropped: bid=%v ask=%v", quotes[1].Bid, quotes[1].Ask)
	}
	if quotes[0].Last != nil || quotes[0].Volume != nil {
		t.Errorf("empty snapshot should have no prices: %+v", quotes[0])
	}
}

func TestAlpacaFindContractsLimit(t *testing.T) {
	gw := newAlpacaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]interface{}{
			"snapshots": map[string]interface{}{
				"SPY250321P00480000": map[string]interface{}{},
				"SPY250321P00470000": map[string]interface{}{},
				"SPY250321C00480000": map[string]interface{}{},
			},
		})
	})

	quotes, err := gw.FindContracts(context.Background(), interfaces.ContractQuery{
		Ticker: "SPY",
		Type:   interfaces.OptionTypePut,
		Limit:  1,
	})
	if err != nil {
		t.Fatalf("FindContracts: %v", err)
	}
	if len(quotes) != 1 || quotes[0].Strike != 470 {
		t.Errorf("got %+v, want the 470 put only", quotes)
	}
}

func TestAlpacaFindContractsUpstreamError(t *testing.T) {
	gw := newAlpacaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := gw.FindContracts(context.Background(), interfaces.ContractQuery{Ticker: "AAPL"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if !IsNotFound(err) {
		t.Errorf("upstream failures should count as not found")
	}
}

func TestParseOCCSymbol(t *testing.T) {
	tests := []struct {
		symbol     string
		root       string
		expiration string
		kind       interfaces.OptionType
		strike     float64
	}{
		{"AAPL250117C00150000", "AAPL", "2025-01-17", interfaces.OptionTypeCall, 150},
		{"SPY250620P00412500", "SPY", "2025-06-20", interfaces.OptionTypePut, 412.5},
		{"F250321C00012000", "F", "2025-03-21", interfaces.OptionTypeCall, 12},
		{"BRKB261218P00000500", "BRKB", "2026-12-18", interfaces.OptionTypePut, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			root, exp, kind, strike, err := ParseOCCSymbol(tt.symbol)
			if err != nil {
				t.Fatalf("ParseOCCSymbol: %v", err)
			}
			if root != tt.root || exp.Format(dateLayout) != tt.expiration || kind != tt.kind || strike != tt.strike {
				t.Errorf("got %s %s %s %v", root, exp.Format(dateLayout), kind, strike)
			}
		})
	}

	for _, bad := range []string{"", "AAPL", "AAPL251317C00150000", "AAPL250117X00150000", "AAPL250117C0015000x"} {
		if _, _, _, _, err := ParseOCCSymbol(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}
