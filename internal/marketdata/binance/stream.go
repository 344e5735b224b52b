package binance

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultWSURL = "wss://stream.binance.com:9443"

// quote is a streamed price with its arrival time.
type quote struct {
	price float64
	at    time.Time
}

// Stream maintains a combined miniTicker WebSocket subscription and
// caches the latest price per symbol. Reads never block on the socket:
// a stale or missing cache entry tells the caller to fall back to REST.
type Stream struct {
	wsURL   string
	symbols []string
	maxAge  time.Duration
	dialer  *websocket.Dialer

	mu     sync.RWMutex
	quotes map[string]quote

	// Optional metrics hook, called on every reconnect attempt.
	OnReconnect func()
}

// NewStream creates a quote streamer for the given symbols. wsURL may be
// empty to use the public endpoint. maxAge bounds how old a cached quote
// may be before FreshPrice refuses it.
func NewStream(wsURL string, symbols []string, maxAge time.Duration) *Stream {
	if wsURL == "" {
		wsURL = defaultWSURL
	}
	return &Stream{
		wsURL:   wsURL,
		symbols: symbols,
		maxAge:  maxAge,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		quotes:  make(map[string]quote),
	}
}

const (
	initialRetryDelay = time.Second
	maxRetryDelay     = 30 * time.Second

	// healthySession is how long a connection must stay up for the next
	// reconnect to start from the initial delay again.
	healthySession = time.Minute
)

// reconnectDelay escalates the delay before the next dial attempt. A session
// that stayed up past healthySession starts the schedule over.
func reconnectDelay(prev, session time.Duration) time.Duration {
	if prev == 0 || session >= healthySession {
		return initialRetryDelay
	}
	next := 2 * prev
	if next > maxRetryDelay {
		next = maxRetryDelay
	}
	return next
}

// Run connects and consumes miniTicker events until ctx is cancelled,
// reconnecting with capped exponential delay on any failure.
func (s *Stream) Run(ctx context.Context) {
	var delay time.Duration

	for {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		delay = reconnectDelay(delay, time.Since(start))
		log.Printf("[stream] disconnected: %v, reconnecting in %s", err, delay)
		if s.OnReconnect != nil {
			s.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *Stream) consume(ctx context.Context) error {
	streams := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		streams[i] = strings.ToLower(sym) + "@miniTicker"
	}
	url := s.wsURL + "/stream?streams=" + strings.Join(streams, "/")

	conn, _, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[stream] connected, %d symbols", len(s.symbols))

	// Unblock ReadMessage when the context is cancelled. The watchdog
	// must not outlive this connection or reconnects pile up goroutines.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env struct {
			Data struct {
				Symbol string `json:"s"`
				Close  string `json:"c"`
			} `json:"data"`
		}
		if err := json.Unmarshal(payload, &env); err != nil {
			log.Printf("[stream] bad message: %v", err)
			continue
		}
		if env.Data.Symbol == "" {
			continue
		}

		price, err := strconv.ParseFloat(env.Data.Close, 64)
		if err != nil {
			log.Printf("[stream] bad price %q for %s", env.Data.Close, env.Data.Symbol)
			continue
		}

		s.mu.Lock()
		s.quotes[env.Data.Symbol] = quote{price: price, at: time.Now()}
		s.mu.Unlock()
	}
}

// FreshPrice returns the cached streamed price for symbol if one exists
// and is younger than maxAge.
func (s *Stream) FreshPrice(symbol string) (float64, bool) {
	s.mu.RLock()
	q, ok := s.quotes[symbol]
	s.mu.RUnlock()
	if !ok || time.Since(q.at) > s.maxAge {
		return 0, false
	}
	return q.price, true
}

// QuoteSource prefers a fresh streamed price and falls back to a REST
// lookup when the stream has nothing recent for the symbol.
type QuoteSource struct {
	stream *Stream
	rest   *Client

	// Optional metrics hook, called on every REST fallback.
	OnStale func()
}

// NewQuoteSource combines a stream cache with a REST fallback.
func NewQuoteSource(stream *Stream, rest *Client) *QuoteSource {
	return &QuoteSource{stream: stream, rest: rest}
}

// LastPrice returns the freshest available price for symbol.
func (q *QuoteSource) LastPrice(ctx context.Context, symbol string) (float64, error) {
	if q.stream != nil {
		if price, ok := q.stream.FreshPrice(symbol); ok {
			return price, nil
		}
		if q.OnStale != nil {
			q.OnStale()
		}
	}
	return q.rest.LastPrice(ctx, symbol)
}
