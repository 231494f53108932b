// Package coingecko provides a client for the CoinGecko API
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

const (
	DefaultBaseURL   = "https://api.coingecko.com/api/v3"
	DefaultTimeout   = 20 * time.Second
	DefaultRateLimit = 2 // requests per second, free tier throttles hard
)

// coinIDs maps common ticker symbols to CoinGecko coin IDs. Unknown
// symbols are passed through lowercase and left to the API to reject.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"ADA":   "cardano",
	"XRP":   "ripple",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"LTC":   "litecoin",
	"AVAX":  "avalanche-2",
	"MATIC": "matic-network",
	"LINK":  "chainlink",
	"USDT":  "tether",
	"USDC":  "usd-coin",
}

// Client implements the MarketDataProvider interface for crypto symbols
// via CoinGecko. Equity symbols and FX pairs are not supported, so the
// chain falls through to the next provider for those.
type Client struct {
	baseURL    string
	quoteCcy   string
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

// WithQuoteCurrency sets the fiat currency prices are quoted in.
// Defaults to USD.
func WithQuoteCurrency(ccy string) ClientOption {
	return func(c *Client) {
		c.quoteCcy = strings.ToLower(ccy)
	}
}

// NewClient creates a new CoinGecko client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		quoteCcy: "usd",
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
	return "coingecko"
}

// coinID resolves a ticker symbol to a CoinGecko coin ID.
func coinID(symbol string) string {
	if id, ok := coinIDs[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.baseURL+path).Msg("CoinGecko API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: coingecko has no coin for endpoint %s", models.ErrNoDataAvailable, path)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: coingecko status %d: %s", models.ErrProviderUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetQuote retrieves the current price via /simple/price.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	id := coinID(symbol)

	params := url.Values{}
	params.Set("ids", id)
	params.Set("vs_currencies", c.quoteCcy)
	params.Set("include_24hr_change", "true")
	params.Set("include_last_updated_at", "true")

	var resp map[string]map[string]float64
	if err := c.get(ctx, "/simple/price", params, &resp); err != nil {
		return nil, err
	}

	prices, ok := resp[id]
	if !ok || prices[c.quoteCcy] == 0 {
		return nil, fmt.Errorf("%w: coingecko has no price for %s", models.ErrNoDataAvailable, symbol)
	}

	last := prices[c.quoteCcy]
	changePct := prices[c.quoteCcy+"_24h_change"]

	asOf := time.Now()
	if ts := prices["last_updated_at"]; ts > 0 {
		asOf = time.Unix(int64(ts), 0).UTC()
	}

	return &models.Quote{
		Symbol:    symbol,
		Last:      last,
		Change:    last * changePct / 100,
		ChangePct: changePct,
		AsOf:      asOf,
		Source:    c.Name(),
	}, nil
}

// marketChartResponse represents the /market_chart/range payload.
// Each entry is a [timestamp_ms, value] pair.
type marketChartResponse struct {
	Prices       [][2]float64 `json:"prices"`
	TotalVolumes [][2]float64 `json:"total_volumes"`
}

// GetBars retrieves daily price history via /market_chart/range.
// CoinGecko returns point-in-time prices, so open/high/low collapse to
// the close for each day.
func (c *Client) GetBars(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	id := coinID(symbol)

	params := url.Values{}
	params.Set("vs_currency", c.quoteCcy)
	params.Set("from", fmt.Sprintf("%d", from.Unix()))
	params.Set("to", fmt.Sprintf("%d", to.Unix()))

	path := fmt.Sprintf("/coins/%s/market_chart/range", id)

	var resp marketChartResponse
	if err := c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}

	if len(resp.Prices) == 0 {
		return nil, fmt.Errorf("%w: coingecko returned no history for %s", models.ErrNoDataAvailable, symbol)
	}

	volumes := make(map[string]float64, len(resp.TotalVolumes))
	for _, v := range resp.TotalVolumes {
		day := time.UnixMilli(int64(v[0])).UTC().Format("2006-01-02")
		volumes[day] = v[1]
	}

	// collapse intra-day points to one bar per calendar day, last wins
	byDay := make(map[string]models.Bar)
	order := make([]string, 0, len(resp.Prices))
	for _, p := range resp.Prices {
		ts := time.UnixMilli(int64(p[0])).UTC()
		day := ts.Format("2006-01-02")
		if _, seen := byDay[day]; !seen {
			order = append(order, day)
		}
		date, _ := time.Parse("2006-01-02", day)
		byDay[day] = models.Bar{
			Date:     date,
			Open:     p[1],
			High:     p[1],
			Low:      p[1],
			Close:    p[1],
			AdjClose: p[1],
			Volume:   int64(volumes[day]),
		}
	}

	bars := make([]models.Bar, 0, len(order))
	for _, day := range order {
		bars = append(bars, byDay[day])
	}
	return bars, nil
}

// GetFxRate is unsupported. CoinGecko quotes coins, not fiat crosses,
// so the chain moves to the next provider.
func (c *Client) GetFxRate(ctx context.Context, from, to string) (float64, error) {
	return 0, fmt.Errorf("%w: coingecko does not quote fx pairs", models.ErrProviderUnavailable)
}

// Ensure Client implements the provider contract
var _ interfaces.MarketDataProvider = (*Client)(nil)
