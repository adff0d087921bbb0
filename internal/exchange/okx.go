// OKX public REST v5 adapter. Market metadata and daily candles only; the
// endpoints used here are unauthenticated.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	okxBaseURL = "https://www.okx.com"

	instrumentsEndpoint = "/api/v5/public/instruments"
	candlesEndpoint     = "/api/v5/market/candles"

	// Rate limiting configuration for the public endpoints.
	okxRequestsPerSecond = 10
	okxRateLimitBurst    = 2

	// Request configuration. OKX caps the candles endpoint at 300 rows.
	maxCandlesPerRequest = 300
	requestTimeout       = 30 * time.Second

	// Retry configuration.
	initialRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
	maxRetryElapsed   = 2 * time.Minute

	marketCacheTTL = 5 * time.Minute
)

// OKXAdapter implements the Adapter interface against the OKX v5 API.
type OKXAdapter struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	logger      *slog.Logger

	// Market metadata cache, keyed by instrument class.
	marketCache     map[InstType][]Market
	marketCacheTime map[InstType]time.Time
	marketCacheMu   sync.RWMutex
}

// NewOKXAdapter creates an OKX adapter with pooled transport and rate
// limiting suited to the public endpoints.
func NewOKXAdapter(logger *slog.Logger) *OKXAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OKXAdapter{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter:     rate.NewLimiter(rate.Limit(okxRequestsPerSecond), okxRateLimitBurst),
		baseURL:         okxBaseURL,
		logger:          logger,
		marketCache:     make(map[InstType][]Market),
		marketCacheTime: make(map[InstType]time.Time),
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (o *OKXAdapter) SetBaseURL(u string) {
	o.baseURL = u
}

// SetTimeout overrides the HTTP request timeout.
func (o *OKXAdapter) SetTimeout(d time.Duration) {
	if d > 0 {
		o.httpClient.Timeout = d
	}
}

// okxEnvelope is the response wrapper every OKX v5 endpoint uses.
type okxEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type okxInstrument struct {
	InstID    string `json:"instId"`
	InstType  string `json:"instType"`
	BaseCcy   string `json:"baseCcy"`
	QuoteCcy  string `json:"quoteCcy"`
	SettleCcy string `json:"settleCcy"`
	CtType    string `json:"ctType"`
	State     string `json:"state"`
}

// LoadMarkets implements the MarketProvider interface.
func (o *OKXAdapter) LoadMarkets(ctx context.Context, instType InstType) ([]Market, error) {
	o.marketCacheMu.RLock()
	if markets, ok := o.marketCache[instType]; ok && time.Since(o.marketCacheTime[instType]) < marketCacheTTL {
		o.marketCacheMu.RUnlock()
		return markets, nil
	}
	o.marketCacheMu.RUnlock()

	if err := o.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	params := url.Values{}
	params.Set("instType", string(instType))
	body, err := o.getWithRetry(ctx, instrumentsEndpoint+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instruments: %w", err)
	}

	var raw []okxInstrument
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse instruments response: %w", err)
	}

	markets := make([]Market, 0, len(raw))
	for _, inst := range raw {
		m, ok := o.convertInstrument(inst)
		if !ok {
			o.logger.Debug("skipping unrecognized instrument", "inst_id", inst.InstID, "inst_type", inst.InstType)
			continue
		}
		markets = append(markets, m)
	}

	o.marketCacheMu.Lock()
	o.marketCache[instType] = markets
	o.marketCacheTime[instType] = time.Now()
	o.marketCacheMu.Unlock()

	o.logger.Debug("loaded markets", "inst_type", instType, "count", len(markets))
	return markets, nil
}

// convertInstrument maps an OKX instrument record to a unified Market.
func (o *OKXAdapter) convertInstrument(inst okxInstrument) (Market, bool) {
	switch strings.ToUpper(inst.InstType) {
	case "SPOT":
		if inst.BaseCcy == "" || inst.QuoteCcy == "" {
			return Market{}, false
		}
		return Market{
			Symbol: inst.BaseCcy + "/" + inst.QuoteCcy,
			InstID: inst.InstID,
			Base:   inst.BaseCcy,
			Quote:  inst.QuoteCcy,
			Spot:   true,
			Type:   "spot",
			Active: inst.State == "live",
		}, true
	case "SWAP":
		// Swap metadata carries no base/quote currencies; the instId is
		// BASE-QUOTE-SWAP.
		parts := strings.Split(inst.InstID, "-")
		if len(parts) != 3 || inst.SettleCcy == "" {
			return Market{}, false
		}
		return Market{
			Symbol:   parts[0] + "/" + parts[1] + ":" + inst.SettleCcy,
			InstID:   inst.InstID,
			Base:     parts[0],
			Quote:    parts[1],
			Settle:   inst.SettleCcy,
			Contract: true,
			Type:     "swap",
			Active:   inst.State == "live",
		}, true
	default:
		return Market{}, false
	}
}

// FetchDailyCandles implements the CandleFetcher interface.
func (o *OKXAdapter) FetchDailyCandles(ctx context.Context, instID string, sinceMillis int64, limit int) ([]RawCandle, error) {
	if instID == "" {
		return nil, fmt.Errorf("instrument id cannot be empty")
	}
	if limit <= 0 || limit > maxCandlesPerRequest {
		limit = maxCandlesPerRequest
	}

	if err := o.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	params := url.Values{}
	params.Set("instId", instID)
	params.Set("bar", "1D")
	params.Set("limit", strconv.Itoa(limit))
	if sinceMillis > 0 {
		// OKX pagination: "before" returns rows newer than the given
		// timestamp. Subtract one millisecond so the boundary day itself
		// is included.
		params.Set("before", strconv.FormatInt(sinceMillis-1, 10))
	}

	body, err := o.getWithRetry(ctx, candlesEndpoint+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s: %w", instID, err)
	}

	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse candles response for %s: %w", instID, err)
	}

	// Rows arrive newest first: [ts, open, high, low, close, vol, ...].
	candles := make([]RawCandle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 6 {
			o.logger.Warn("skipping short candle row", "inst_id", instID, "fields", len(row))
			continue
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			o.logger.Warn("skipping candle row with bad timestamp", "inst_id", instID, "timestamp", row[0])
			continue
		}
		candles = append(candles, RawCandle{
			Timestamp: time.UnixMilli(ms).UTC(),
			Open:      row[1],
			High:      row[2],
			Low:       row[3],
			Close:     row[4],
			Volume:    row[5],
		})
	}

	return candles, nil
}

// HealthCheck verifies the exchange is reachable using the lightweight
// system time endpoint.
func (o *OKXAdapter) HealthCheck(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(healthCtx, http.MethodGet, o.baseURL+"/api/v5/public/time", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	return nil
}

// getWithRetry performs a GET against the API with exponential backoff on
// transient failures. Server errors and 429s retry; other client errors and
// API-level error codes are permanent. Returns the unwrapped data payload.
func (o *OKXAdapter) getWithRetry(ctx context.Context, pathAndQuery string) (json.RawMessage, error) {
	fullURL := o.baseURL + pathAndQuery

	var payload json.RawMessage

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "candlescan/1.0")

		resp, err := o.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			if retryAfter > 0 {
				o.logger.Warn("rate limited by exchange, waiting", "retry_after", retryAfter)
				select {
				case <-time.After(retryAfter):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return fmt.Errorf("rate limited")
		case resp.StatusCode >= 500:
			return fmt.Errorf("server error %d: %s", resp.StatusCode, truncateBody(body))
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("client error %d: %s", resp.StatusCode, truncateBody(body)))
		}

		var envelope okxEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to parse response envelope: %w", err))
		}
		if envelope.Code != "0" {
			return backoff.Permanent(fmt.Errorf("exchange error %s: %s", envelope.Code, envelope.Msg))
		}

		payload = envelope.Data
		return nil
	}

	backoffConfig := backoff.NewExponentialBackOff()
	backoffConfig.InitialInterval = initialRetryDelay
	backoffConfig.MaxInterval = maxRetryDelay
	backoffConfig.MaxElapsedTime = maxRetryElapsed

	if err := backoff.Retry(operation, backoff.WithContext(backoffConfig, ctx)); err != nil {
		return nil, err
	}
	return payload, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

func truncateBody(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
