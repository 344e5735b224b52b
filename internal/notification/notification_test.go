package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Allwin048935/trend/internal/model"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Send(context.Background(), Alert{
		Level: AlertInfo, Symbol: "BTCUSDT", Title: "OPEN LONG BTCUSDT", Message: "hi",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got["symbol"] != "BTCUSDT" || got["level"] != "INFO" {
		t.Errorf("unexpected payload: %v", got)
	}
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), Alert{}); err == nil {
		t.Error("expected error on non-2xx status")
	}
}

func TestCloseAlert_LossIsWarning(t *testing.T) {
	trade := model.ClosedTrade{
		Symbol:    "BTCUSDT",
		Side:      model.Long,
		NetProfit: decimal.RequireFromString("-1.5"),
		ClosedAt:  time.Now(),
	}
	alert := CloseAlert(trade)
	if alert.Level != AlertWarning {
		t.Errorf("losing trade should be a warning, got %s", alert.Level)
	}
	if !strings.Contains(alert.Message, "net profit") {
		t.Errorf("expected net profit in message, got %q", alert.Message)
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := escapeMarkdown("a.b-c")
	if got != `a\.b\-c` {
		t.Errorf("unexpected escape: %q", got)
	}
}
