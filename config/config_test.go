package config

import (
	"testing"
	"time"
)

func TestParseSymbols(t *testing.T) {
	c := &Config{Symbols: " btcusdt, ETHUSDT ,,btcusdt , solusdt"}
	got := c.ParseSymbols()
	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	if len(got) != len(want) {
		t.Fatalf("expected %d symbols, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("symbol[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "7")
	t.Setenv("TEST_INT_BAD", "seven")
	t.Setenv("TEST_FLOAT", "0.25")
	t.Setenv("TEST_DUR", "90s")

	if got := getEnvInt("TEST_INT", 1); got != 7 {
		t.Errorf("getEnvInt = %d, want 7", got)
	}
	if got := getEnvInt("TEST_INT_BAD", 3); got != 3 {
		t.Errorf("getEnvInt fallback = %d, want 3", got)
	}
	if got := getEnvInt("TEST_INT_MISSING", 5); got != 5 {
		t.Errorf("getEnvInt missing = %d, want 5", got)
	}
	if got := getEnvFloat("TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("getEnvFloat = %v, want 0.25", got)
	}
	if got := getEnvDur("TEST_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("getEnvDur = %v, want 90s", got)
	}
	if got := getEnvDur("TEST_DUR_MISSING", time.Minute); got != time.Minute {
		t.Errorf("getEnvDur missing = %v, want 1m", got)
	}
}
