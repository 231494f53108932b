package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

func TestGetQuote_ParsesResponse(t *testing.T) {
	ts := int64(1711670340)
	mockResp := map[string]map[string]float64{
		"bitcoin": {
			"usd":             67250.0,
			"usd_24h_change":  2.5,
			"last_updated_at": float64(ts),
		},
	}

	var capturedIDs string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedIDs = r.URL.Query().Get("ids")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	quote, err := client.GetQuote(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}

	if capturedIDs != "bitcoin" {
		t.Errorf("expected ids=bitcoin, got %s", capturedIDs)
	}
	if quote.Last != 67250.0 {
		t.Errorf("expected last 67250, got %.2f", quote.Last)
	}
	if quote.ChangePct != 2.5 {
		t.Errorf("expected change_pct 2.5, got %.2f", quote.ChangePct)
	}
	if quote.Source != "coingecko" {
		t.Errorf("expected source coingecko, got %s", quote.Source)
	}
	expected := time.Unix(ts, 0).UTC()
	if !quote.AsOf.Equal(expected) {
		t.Errorf("expected as_of %v, got %v", expected, quote.AsOf)
	}
}

func TestGetQuote_UnknownCoin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.GetQuote(context.Background(), "NOTACOIN")
	if err == nil {
		t.Fatal("expected error for unknown coin")
	}
	if !errors.Is(err, models.ErrNoDataAvailable) {
		t.Errorf("expected ErrNoDataAvailable, got %v", err)
	}
}

func TestGetQuote_RateLimitIsProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("throttled"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.GetQuote(context.Background(), "BTC")
	if !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestGetBars_CollapsesToDailyBars(t *testing.T) {
	day1 := time.Date(2024, 3, 26, 8, 0, 0, 0, time.UTC).UnixMilli()
	day1Later := time.Date(2024, 3, 26, 20, 0, 0, 0, time.UTC).UnixMilli()
	day2 := time.Date(2024, 3, 27, 8, 0, 0, 0, time.UTC).UnixMilli()

	mockResp := map[string]interface{}{
		"prices": [][2]float64{
			{float64(day1), 67000.0},
			{float64(day1Later), 67500.0},
			{float64(day2), 68000.0},
		},
		"total_volumes": [][2]float64{
			{float64(day1), 1.2e10},
			{float64(day2), 1.5e10},
		},
	}

	var capturedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	from := time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC)
	bars, err := client.GetBars(context.Background(), "BTC", from, to)
	if err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}

	if capturedPath != "/coins/bitcoin/market_chart/range" {
		t.Errorf("expected path /coins/bitcoin/market_chart/range, got %s", capturedPath)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 daily bars, got %d", len(bars))
	}
	// last intra-day point wins for the day's close
	if bars[0].Close != 67500.0 {
		t.Errorf("expected day1 close 67500, got %.2f", bars[0].Close)
	}
	if bars[1].Close != 68000.0 {
		t.Errorf("expected day2 close 68000, got %.2f", bars[1].Close)
	}
}

func TestGetFxRate_Unsupported(t *testing.T) {
	client := NewClient()
	_, err := client.GetFxRate(context.Background(), "EUR", "USD")
	if !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestCoinID_Mapping(t *testing.T) {
	tests := []struct {
		symbol   string
		expected string
	}{
		{"BTC", "bitcoin"},
		{"btc", "bitcoin"},
		{"ETH", "ethereum"},
		{"SOMECOIN", "somecoin"},
	}
	for _, tt := range tests {
		if got := coinID(tt.symbol); got != tt.expected {
			t.Errorf("coinID(%s) = %s, want %s", tt.symbol, got, tt.expected)
		}
	}
}
