package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Allwin048935/trend/config"
	"github.com/Allwin048935/trend/internal/detector"
	"github.com/Allwin048935/trend/internal/health"
	"github.com/Allwin048935/trend/internal/indicator"
	"github.com/Allwin048935/trend/internal/ledger"
	"github.com/Allwin048935/trend/internal/logger"
	"github.com/Allwin048935/trend/internal/marketdata/binance"
	"github.com/Allwin048935/trend/internal/metrics"
	"github.com/Allwin048935/trend/internal/notification"
	"github.com/Allwin048935/trend/internal/scheduler"
	redisstore "github.com/Allwin048935/trend/internal/store/redis"
	sqlitestore "github.com/Allwin048935/trend/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[trendbot] starting...")

	cfg := config.Load()
	logger.Init("trendbot", logger.ParseLevel(cfg.LogLevel))

	symbols := cfg.ParseSymbols()
	if len(symbols) == 0 {
		log.Fatal("[trendbot] SYMBOLS resolved to an empty set")
	}
	log.Printf("[trendbot] watching %d instruments at %s bars: %v", len(symbols), cfg.BarInterval, symbols)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	healthStatus := metrics.NewHealthStatus()
	healthStatus.SetActiveSymbols(len(symbols))
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, healthStatus)
	metricsSrv.Start()

	// ---- Graceful shutdown ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Trade journal (SQLite) ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	journal, err := sqlitestore.NewJournal(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[trendbot] journal init failed: %v", err)
	}
	defer journal.Close()

	// ---- Checkpoint store (Redis, optional) ----
	var checkpoints *redisstore.CheckpointStore
	if cfg.RedisAddr != "" {
		checkpoints, err = redisstore.NewCheckpointStore(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Printf("[trendbot] WARNING: redis init failed: %v (continuing without checkpoints)", err)
		} else {
			defer checkpoints.Close()
		}
	}
	if checkpoints != nil {
		healthStatus.StartLivenessChecker(ctx, checkpoints.Client(), journal.DB(), 10*time.Second)
	} else {
		healthStatus.StartLivenessChecker(ctx, nil, journal.DB(), 10*time.Second)
	}

	// ---- Ledger ----
	led := ledger.New(ledger.Config{
		FeeRate:       decimal.NewFromFloat(cfg.FeeRatePct / 100),
		TakeProfitPct: decimal.NewFromFloat(cfg.TakeProfitPct),
		StopLossPct:   decimal.NewFromFloat(cfg.StopLossPct),
		MaxHistory:    cfg.MaxTradeHistory,
		ExportEvery:   cfg.ExportEveryN,
	}, decimal.NewFromFloat(cfg.InitialBalance))
	led.SetExporter(journal)
	led.OnExportError = func(error) { prom.ExportFailures.Inc() }
	led.OnCheckpointError = func(error) { prom.CheckpointFailures.Inc() }
	if checkpoints != nil {
		led.SetCheckpointStore(checkpoints)
		restoreCheckpoint(ctx, led, checkpoints)
	}

	// ---- Notifications ----
	notifier := buildNotifier(cfg)

	// ---- Market data ----
	rest := binance.NewClient(cfg.BinanceBaseURL)
	stream := binance.NewStream(cfg.BinanceWSURL, symbols, 2*cfg.CheckInterval)
	stream.OnReconnect = func() {
		prom.WSReconnects.Inc()
		healthStatus.SetStreamConnected(false)
	}
	go stream.Run(ctx)
	healthStatus.SetStreamConnected(true)

	quotes := binance.NewQuoteSource(stream, rest)
	quotes.OnStale = func() { prom.QuotesStale.Inc() }

	// ---- Detector ----
	detCfg := detector.Config{
		RSIPeriod:          cfg.RSIPeriod,
		RSIEMAPeriod:       cfg.RSIEMAPeriod,
		ShortEMAPeriod:     cfg.ShortEMAPeriod,
		LongEMAPeriod:      cfg.LongEMAPeriod,
		MACDFast:           cfg.ShortEMAPeriod,
		MACDSlow:           cfg.LongEMAPeriod,
		MACDSignal:         9,
		TrendlineLength:    cfg.TrendlineLength,
		PivotField:         indicator.FieldClose,
		SlopeMethod:        parseSlopeMethod(cfg.SlopeMethod),
		TrendlineExtension: 72 * time.Hour,
		MaxTrendlines:      cfg.MaxTrendlines,
		Cooldown:           cfg.SignalCooldown,
		RSIBuyLevel:        30,
		RSISellLevel:       70,
	}
	if detCfg.Cooldown == 0 {
		detCfg.Cooldown = barDuration(cfg.BarInterval)
	}
	cond := buildCondition(cfg.Strategy, detCfg)
	log.Printf("[trendbot] strategy %q, min bars %d", cond.Name(), detCfg.MinBars())

	// ---- Scheduler ----
	engine := scheduler.New(scheduler.Config{
		Symbols:     symbols,
		Interval:    cfg.CheckInterval,
		BarInterval: cfg.BarInterval,
		BarLimit:    detCfg.MinBars() + 20,
		Notional:    decimal.NewFromFloat(cfg.PositionNotional),
	}, rest, quotes, detector.New(detCfg, cond), led, health.NewTracker(cfg.MaxRetries, cfg.Cooldown), notifier, prom)
	engine.OnCycleDone = func(t time.Time) {
		healthStatus.SetLastCycleTime(t)
		healthStatus.SetActiveSymbols(len(engine.ActiveSymbols()))
	}

	engine.Run(ctx)

	// ---- Shutdown: flush state ----
	log.Println("[trendbot] shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if history := led.History(); len(history) > 0 {
		if err := journal.ExportTrades(history); err != nil {
			log.Printf("[trendbot] final trade export failed: %v", err)
		}
	}
	metricsSrv.Stop(shutdownCtx)
	log.Println("[trendbot] bye")
}

// restoreCheckpoint resumes balance and open positions from the latest
// checkpoint, if one exists. A corrupt or missing checkpoint only logs.
func restoreCheckpoint(ctx context.Context, led *ledger.Ledger, checkpoints *redisstore.CheckpointStore) {
	data, err := checkpoints.ReadLatestCheckpoint(ctx)
	if err != nil {
		log.Printf("[trendbot] checkpoint read failed: %v", err)
		return
	}
	if data == nil {
		log.Println("[trendbot] no checkpoint found, starting fresh")
		return
	}
	if err := led.RestoreSnapshot(data); err != nil {
		log.Printf("[trendbot] checkpoint restore failed: %v (starting fresh)", err)
	}
}

// buildNotifier wires every configured backend behind a fan-out. With no
// backends configured, alerts go to the log.
func buildNotifier(cfg *config.Config) notification.Notifier {
	var backends []notification.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
		log.Println("[trendbot] telegram notifications enabled")
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
		log.Println("[trendbot] webhook notifications enabled")
	}
	if len(backends) == 0 {
		return notification.NewLogNotifier()
	}
	return &notification.Multi{Backends: backends}
}

// buildCondition maps the STRATEGY setting to a condition set.
func buildCondition(strategy string, cfg detector.Config) detector.Condition {
	trendline := &detector.TrendlineBreak{
		SlopeMethod: cfg.SlopeMethod,
		Extension:   cfg.TrendlineExtension,
	}
	switch strategy {
	case "rsi":
		return &detector.RSILevel{BuyLevel: cfg.RSIBuyLevel, SellLevel: cfg.RSISellLevel}
	case "rsi_cross":
		return &detector.RSICross{}
	case "ema_cross":
		return &detector.EMACross{}
	case "macd":
		return &detector.MACDFlip{}
	case "trendline":
		return trendline
	case "combined":
		return &detector.Combined{Conditions: []detector.Condition{
			&detector.RSILevel{BuyLevel: cfg.RSIBuyLevel, SellLevel: cfg.RSISellLevel},
			&detector.EMACross{},
			trendline,
		}}
	default:
		slog.Warn("unknown strategy, using rsi", slog.String("strategy", strategy))
		return &detector.RSILevel{BuyLevel: cfg.RSIBuyLevel, SellLevel: cfg.RSISellLevel}
	}
}

func parseSlopeMethod(s string) indicator.SlopeMethod {
	switch s {
	case "linreg":
		return indicator.SlopeLinReg
	case "atr":
		return indicator.SlopeATR
	default:
		return indicator.SlopePivot
	}
}

// barDuration converts an exchange interval string to a duration, used as
// the default signal cooldown. Unknown intervals default to one hour.
func barDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
