// Package binance fetches OHLCV history and spot quotes from the Binance
// public REST API and streams live quotes over its WebSocket feed.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/Allwin048935/trend/internal/model"
)

const defaultBaseURL = "https://api.binance.com"

// Client is a rate-limited REST client for klines and ticker prices.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a REST client. baseURL may be empty to use the
// public endpoint. The limiter stays well under Binance's weight
// budget for /api/v3 endpoints.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// GetBars fetches up to limit closed klines for symbol at the given
// interval (e.g. "1h"), oldest first.
func (c *Client) GetBars(ctx context.Context, symbol, interval string, limit int) ([]model.Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))

	var rows [][]interface{}
	if err := c.getJSON(ctx, "/api/v3/klines?"+q.Encode(), &rows); err != nil {
		return nil, fmt.Errorf("binance: klines %s: %w", symbol, err)
	}

	bars := make([]model.Bar, 0, len(rows))
	for _, row := range rows {
		// Kline rows: [openTime, open, high, low, close, volume, closeTime, ...]
		if len(row) < 6 {
			return nil, fmt.Errorf("binance: klines %s: short row (%d fields)", symbol, len(row))
		}
		openMs, ok := row[0].(float64)
		if !ok {
			return nil, fmt.Errorf("binance: klines %s: bad open time %v", symbol, row[0])
		}
		bar := model.Bar{
			Symbol:   symbol,
			OpenTime: time.UnixMilli(int64(openMs)).UTC(),
		}
		var err error
		if bar.Open, err = toF64(row[1]); err == nil {
			if bar.High, err = toF64(row[2]); err == nil {
				if bar.Low, err = toF64(row[3]); err == nil {
					if bar.Close, err = toF64(row[4]); err == nil {
						bar.Volume, err = toF64(row[5])
					}
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("binance: klines %s: %w", symbol, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// LastPrice fetches the current spot price for symbol.
func (c *Client) LastPrice(ctx context.Context, symbol string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	path := "/api/v3/ticker/price?symbol=" + url.QueryEscape(symbol)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return 0, fmt.Errorf("binance: ticker %s: %w", symbol, err)
	}

	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("binance: ticker %s: parse price %q: %w", symbol, resp.Price, err)
	}
	return price, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == http.StatusTooManyRequests {
			log.Printf("[binance] rate limited: %s", body)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// toF64 parses Binance's stringly-typed numeric fields.
func toF64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseFloat(x, 64)
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("unexpected numeric field %T", v)
	}
}
