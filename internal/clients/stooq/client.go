// Package stooq provides a client for the free Stooq CSV endpoints
package stooq

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

const (
	DefaultBaseURL   = "https://stooq.com/q"
	DefaultTimeout   = 20 * time.Second
	DefaultRateLimit = 5 // requests per second, stooq is unauthenticated
)

// Client implements the MarketDataProvider interface against Stooq's
// CSV endpoints. Unauthenticated, so it sits behind the paid provider
// in the default chain.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Stooq client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies this provider in config and logs.
func (c *Client) Name() string {
	return "stooq"
}

// getCSV performs a rate-limited GET and parses the body as CSV records.
func (c *Client) getCSV(ctx context.Context, path string, params url.Values) ([][]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("Stooq request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: stooq status %d: %s", models.ErrProviderUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return records, nil
}

// stooqSymbol lowercases and passes the symbol through. Stooq uses
// suffixed tickers ("aapl.us") which callers supply directly.
func stooqSymbol(symbol string) string {
	return strings.ToLower(symbol)
}

// GetQuote retrieves the latest quote via the CSV snapshot endpoint.
// Columns requested: symbol, date, time, open, high, low, close, volume.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	params := url.Values{}
	params.Set("s", stooqSymbol(symbol))
	params.Set("f", "sd2t2ohlcv")
	params.Set("h", "")
	params.Set("e", "csv")

	records, err := c.getCSV(ctx, "/l/", params)
	if err != nil {
		return nil, err
	}

	// header row plus one data row
	if len(records) < 2 || len(records[1]) < 8 {
		return nil, fmt.Errorf("%w: stooq returned no quote for %s", models.ErrNoDataAvailable, symbol)
	}

	row := records[1]
	closePrice, err := strconv.ParseFloat(row[6], 64)
	if err != nil {
		// "N/D" marks unknown symbols
		return nil, fmt.Errorf("%w: stooq has no data for %s", models.ErrNoDataAvailable, symbol)
	}
	openPrice, _ := strconv.ParseFloat(row[3], 64)

	asOf := time.Now()
	if t, err := time.Parse("2006-01-02 15:04:05", row[1]+" "+row[2]); err == nil {
		asOf = t.UTC()
	}

	change := 0.0
	changePct := 0.0
	if openPrice > 0 {
		change = closePrice - openPrice
		changePct = change / openPrice * 100
	}

	return &models.Quote{
		Symbol:    symbol,
		Last:      closePrice,
		Change:    change,
		ChangePct: changePct,
		AsOf:      asOf,
		Source:    c.Name(),
	}, nil
}

// GetBars retrieves daily history via the CSV download endpoint.
func (c *Client) GetBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	params := url.Values{}
	params.Set("s", stooqSymbol(symbol))
	params.Set("i", "d")
	if !from.IsZero() {
		params.Set("d1", from.Format("20060102"))
	}
	if !to.IsZero() {
		params.Set("d2", to.Format("20060102"))
	}

	records, err := c.getCSV(ctx, "/d/l/", params)
	if err != nil {
		return nil, err
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("%w: stooq returned no bars for %s", models.ErrNoDataAvailable, symbol)
	}

	bars := make([]models.Bar, 0, len(records)-1)
	for _, row := range records[1:] {
		if len(row) < 5 {
			continue
		}
		date, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		closePrice, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			continue
		}
		var volume int64
		if len(row) > 5 {
			volume, _ = strconv.ParseInt(row[5], 10, 64)
		}
		bars = append(bars, models.Bar{
			Date:     date,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    closePrice,
			AdjClose: closePrice,
			Volume:   volume,
		})
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: stooq returned no usable bars for %s", models.ErrNoDataAvailable, symbol)
	}
	return bars, nil
}

// GetFxRate retrieves a direct cross-rate. Stooq quotes FX pairs as
// lowercase concatenated symbols ("eurusd").
func (c *Client) GetFxRate(ctx context.Context, from, to string) (float64, error) {
	pair := strings.ToLower(from) + strings.ToLower(to)

	quote, err := c.GetQuote(ctx, pair)
	if err != nil {
		return 0, err
	}
	if quote.Last <= 0 {
		return 0, fmt.Errorf("%w: zero rate for %s", models.ErrProviderUnavailable, pair)
	}
	return quote.Last, nil
}

// Ensure Client implements the provider contract
var _ interfaces.MarketDataProvider = (*Client)(nil)
