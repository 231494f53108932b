package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

func TestGetQuote_ParsesResponse(t *testing.T) {
	ts := int64(1711670340) // 2024-03-28 23:59:00 UTC
	mockResp := map[string]interface{}{
		"code":      "AAPL.US",
		"timestamp": ts,
		"open":      182.10,
		"high":      184.50,
		"low":       181.80,
		"close":     183.25,
		"change":    1.15,
		"change_p":  0.63,
		"volume":    float64(5000000),
	}

	var capturedPath string
	var capturedToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedToken = r.URL.Query().Get("api_token")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	quote, err := client.GetQuote(context.Background(), "AAPL.US")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}

	if capturedPath != "/real-time/AAPL.US" {
		t.Errorf("expected path /real-time/AAPL.US, got %s", capturedPath)
	}
	if capturedToken != "test-key" {
		t.Errorf("expected api_token test-key, got %s", capturedToken)
	}
	if quote.Symbol != "AAPL.US" {
		t.Errorf("expected symbol AAPL.US, got %s", quote.Symbol)
	}
	if quote.Last != 183.25 {
		t.Errorf("expected last 183.25, got %.2f", quote.Last)
	}
	if quote.Change != 1.15 {
		t.Errorf("expected change 1.15, got %.2f", quote.Change)
	}
	if quote.ChangePct != 0.63 {
		t.Errorf("expected change_p 0.63, got %.2f", quote.ChangePct)
	}
	if quote.Source != "eodhd" {
		t.Errorf("expected source eodhd, got %s", quote.Source)
	}
	expectedTime := time.Unix(ts, 0).UTC()
	if !quote.AsOf.Equal(expectedTime) {
		t.Errorf("expected as_of %v, got %v", expectedTime, quote.AsOf)
	}
}

func TestGetQuote_StringFields(t *testing.T) {
	// EODHD sometimes returns numeric fields as strings
	mockResp := map[string]interface{}{
		"code":      "CBOE.AU",
		"timestamp": int64(1711670340),
		"close":     "43.25",
		"change":    "0.75",
		"change_p":  "1.76",
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	quote, err := client.GetQuote(context.Background(), "CBOE.AU")
	if err != nil {
		t.Fatalf("GetQuote failed with string fields: %v", err)
	}

	if quote.Last != 43.25 {
		t.Errorf("expected last 43.25, got %.2f", quote.Last)
	}
	if quote.Change != 0.75 {
		t.Errorf("expected change 0.75, got %.2f", quote.Change)
	}
}

func TestGetQuote_APIErrorIsProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte("quota exceeded"))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.GetQuote(context.Background(), "AAPL.US")
	if err == nil {
		t.Fatal("expected error on quota exhaustion")
	}
	if !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusPaymentRequired {
		t.Errorf("expected status 402, got %d", apiErr.StatusCode)
	}
}

func TestGetQuote_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithTimeout(100*time.Millisecond))
	_, err := client.GetQuote(context.Background(), "AAPL.US")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable on transport failure, got %v", err)
	}
}

func TestGetBars_ParsesResponse(t *testing.T) {
	mockResp := []map[string]interface{}{
		{"date": "2024-03-26", "open": 41.0, "high": 42.0, "low": 40.5, "close": 41.8, "adjusted_close": 41.8, "volume": int64(100000)},
		{"date": "2024-03-27", "open": 41.8, "high": 43.0, "low": 41.5, "close": 42.9, "adjusted_close": 42.9, "volume": int64(120000)},
	}

	var capturedQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC)
	bars, err := client.GetBars(context.Background(), "BHP.AU", from, to)
	if err != nil {
		t.Fatalf("GetBars failed: %v", err)
	}

	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Close != 41.8 {
		t.Errorf("expected first close 41.8, got %.2f", bars[0].Close)
	}
	if bars[1].Date.Format("2006-01-02") != "2024-03-27" {
		t.Errorf("expected second date 2024-03-27, got %s", bars[1].Date.Format("2006-01-02"))
	}
	for _, param := range []string{"from=2024-03-01", "to=2024-03-28", "period=d"} {
		if !containsParam(capturedQuery, param) {
			t.Errorf("expected query to contain %s, got %s", param, capturedQuery)
		}
	}
}

func TestGetFxRate_UsesForexSymbol(t *testing.T) {
	mockResp := map[string]interface{}{
		"code":      "EURUSD.FOREX",
		"timestamp": int64(1711670000),
		"close":     1.0825,
	}

	var capturedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	rate, err := client.GetFxRate(context.Background(), "eur", "usd")
	if err != nil {
		t.Fatalf("GetFxRate failed: %v", err)
	}

	if capturedPath != "/real-time/EURUSD.FOREX" {
		t.Errorf("expected path /real-time/EURUSD.FOREX, got %s", capturedPath)
	}
	if rate != 1.0825 {
		t.Errorf("expected rate 1.0825, got %.4f", rate)
	}
}

func TestGetFxRate_ZeroRateIsError(t *testing.T) {
	mockResp := map[string]interface{}{
		"code":  "EURUSD.FOREX",
		"close": 0.0,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.GetFxRate(context.Background(), "EUR", "USD")
	if err == nil {
		t.Fatal("expected error on zero rate")
	}
	if !errors.Is(err, models.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestGetFundamentals_ParsesResponse(t *testing.T) {
	mockResp := map[string]interface{}{
		"General": map[string]interface{}{
			"Code":     "AAPL.US",
			"Name":     "Apple Inc",
			"Sector":   "Technology",
			"Industry": "Consumer Electronics",
		},
		"Highlights": map[string]interface{}{
			"MarketCapitalization": 2.9e12,
			"PERatio":              "28.5",
			"DividendYield":        0.0052,
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	f, err := client.GetFundamentals(context.Background(), "AAPL.US")
	if err != nil {
		t.Fatalf("GetFundamentals failed: %v", err)
	}

	if f.Name != "Apple Inc" {
		t.Errorf("expected name Apple Inc, got %s", f.Name)
	}
	if f.Sector != "Technology" {
		t.Errorf("expected sector Technology, got %s", f.Sector)
	}
	if f.PE != 28.5 {
		t.Errorf("expected PE 28.5, got %.2f", f.PE)
	}
}

func TestFlexFloat64_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{"number", "43.25", 43.25},
		{"string", `"43.25"`, 43.25},
		{"zero", "0", 0},
		{"string_zero", `"0"`, 0},
		{"empty_string", `""`, 0},
		{"na_string", `"N/A"`, 0},
		{"negative", "-1.5", -1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f flexFloat64
			if err := json.Unmarshal([]byte(tt.input), &f); err != nil {
				t.Fatalf("UnmarshalJSON(%s) error: %v", tt.input, err)
			}
			if float64(f) != tt.expected {
				t.Errorf("UnmarshalJSON(%s) = %v, want %v", tt.input, float64(f), tt.expected)
			}
		})
	}
}

func containsParam(query, param string) bool {
	for _, part := range strings.Split(query, "&") {
		if part == param {
			return true
		}
	}
	return false
}
