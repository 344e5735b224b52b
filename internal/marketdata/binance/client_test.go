package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_GetBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("unexpected symbol %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("unexpected limit %q", got)
		}
		w.Write([]byte(`[
			[1717200000000, "100.0", "105.0", "99.0", "104.0", "12.5", 1717203599999, "0", 0, "0", "0", "0"],
			[1717203600000, "104.0", "106.0", "103.0", "105.5", "8.0", 1717207199999, "0", 0, "0", "0", "0"]
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	bars, err := c.GetBars(context.Background(), "BTCUSDT", "1h", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}

	first := bars[0]
	wantOpen := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !first.OpenTime.Equal(wantOpen) {
		t.Errorf("open time = %v, want %v", first.OpenTime, wantOpen)
	}
	if first.Open != 100 || first.High != 105 || first.Low != 99 || first.Close != 104 || first.Volume != 12.5 {
		t.Errorf("unexpected bar values: %+v", first)
	}
	if bars[1].Close != 105.5 {
		t.Errorf("second close = %v, want 105.5", bars[1].Close)
	}
}

func TestClient_GetBars_ShortRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1717200000000, "100.0"]]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.GetBars(context.Background(), "BTCUSDT", "1h", 1); err == nil {
		t.Error("expected error on short kline row")
	}
}

func TestClient_LastPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"symbol":"ETHUSDT","price":"2500.42"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	price, err := c.LastPrice(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if price != 2500.42 {
		t.Errorf("price = %v, want 2500.42", price)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.LastPrice(context.Background(), "NOPE"); err == nil {
		t.Error("expected error on 400 response")
	}
}

func TestQuoteSource_PrefersFreshStream(t *testing.T) {
	restCalled := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		restCalled = true
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"99.0"}`))
	}))
	defer srv.Close()

	stream := NewStream("", []string{"BTCUSDT"}, time.Minute)
	stream.mu.Lock()
	stream.quotes["BTCUSDT"] = quote{price: 101.5, at: time.Now()}
	stream.mu.Unlock()

	qs := NewQuoteSource(stream, NewClient(srv.URL))
	price, err := qs.LastPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if price != 101.5 {
		t.Errorf("price = %v, want streamed 101.5", price)
	}
	if restCalled {
		t.Error("REST should not be hit when the stream is fresh")
	}
}

func TestQuoteSource_FallsBackWhenStale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"99.0"}`))
	}))
	defer srv.Close()

	stream := NewStream("", []string{"BTCUSDT"}, time.Minute)
	stream.mu.Lock()
	stream.quotes["BTCUSDT"] = quote{price: 101.5, at: time.Now().Add(-2 * time.Minute)}
	stream.mu.Unlock()

	staleSeen := false
	qs := NewQuoteSource(stream, NewClient(srv.URL))
	qs.OnStale = func() { staleSeen = true }

	price, err := qs.LastPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if price != 99.0 {
		t.Errorf("price = %v, want REST 99.0", price)
	}
	if !staleSeen {
		t.Error("expected the stale hook to fire")
	}
}
