package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"volscreener/config"
	"volscreener/internal/batch"
	"volscreener/internal/breaker"
	"volscreener/internal/bus"
	"volscreener/internal/cache"
	"volscreener/internal/fx"
	"volscreener/internal/gateway"
	"volscreener/internal/logger"
	"volscreener/internal/marketdata"
	"volscreener/internal/marketdata/angel"
	"volscreener/internal/marketdata/fetcher"
	"volscreener/internal/marketdata/yahoo"
	"volscreener/internal/markethours"
	"volscreener/internal/metrics"
	"volscreener/internal/model"
	"volscreener/internal/notification"
	"volscreener/internal/refresher"
	"volscreener/internal/screener"
	redisstore "volscreener/internal/store/redis"
	"volscreener/internal/universe"
	"volscreener/pkg/smartconnect"
)

func main() {
	once := flag.Bool("once", false, "Run a single screening cycle, print the result as JSON and exit")
	flag.Parse()

	cfg, cfgErr := config.Load()
	level, logFile := "info", ""
	if cfg != nil {
		level, logFile = cfg.LogLevel, cfg.LogFile
	}
	log := logger.Init("screener", logger.Options{Level: level, File: logFile, Stderr: *once})
	defer log.Sync()
	if cfgErr != nil {
		log.Fatal("invalid configuration", zap.Error(cfgErr))
	}
	log.Info("starting", zap.String("provider", cfg.Provider), zap.Int("refresh_min", cfg.RefreshIntervalMin))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Metrics ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// ---- Upstream ----
	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		log.Fatal("upstream setup failed", zap.Error(err))
	}
	historyCB := breaker.New("history", cfg.BreakerThreshold, cfg.BreakerCooldown)
	quoteCB := breaker.New("quote", cfg.BreakerThreshold, cfg.BreakerCooldown)
	historyCB.OnStateChange, quoteCB.OnStateChange = m.BreakerChanged, m.BreakerChanged
	upstream := marketdata.WithObserver(
		marketdata.WithBreakers(
			marketdata.WithRateLimit(provider, cfg.UpstreamRPS, cfg.UpstreamBurst),
			historyCB, quoteCB),
		m)

	var rates fx.RateProvider = fx.NewFixed(cfg.USDINRRate)
	if cfg.FXProvider == "yahoo" {
		rates = fx.NewYahoo(rates, time.Hour, log)
	}

	// ---- Screening pipeline ----
	caches := cache.NewService(cfg.SymbolCacheTTL, cfg.MarketCapCacheTTL)
	dirOpts := universe.Options{Symbols: cfg.UniverseSymbols, MaxSymbols: cfg.UniverseMaxSymbols}
	if cfg.UniverseListingURL != "" {
		dirOpts.Listing = universe.NewNSEListing(cfg.UniverseListingURL)
	}
	dir := universe.NewDirectory(caches, dirOpts, log)

	evalCfg, err := evalConfig(cfg.Policy)
	if err != nil {
		log.Fatal("invalid baseline window", zap.Error(err))
	}
	eval := screener.NewEvaluator(fetcher.New(upstream, cfg.FetchAttempts, cfg.FetchRetryDelay, log), evalCfg)
	enrich := screener.NewEnricher(upstream, rates, caches, screener.EnricherConfig{
		Attempts:   cfg.FetchAttempts,
		RetryDelay: cfg.FetchRetryDelay,
		Batch: batch.Options{
			BatchSize: cfg.Batching.CapBatchSize,
			Workers:   cfg.Batching.CapWorkers,
			Delay:     cfg.Batching.InterBatchDelay,
		},
		MinLive:       cfg.Policy.MinLiveSuccesses,
		BackfillAbove: cfg.Policy.BackfillAbove,
	}, log)
	pipe := screener.NewPipeline(eval, enrich, screener.Policy{
		MinSpikeRatio:    cfg.Policy.MinSpikeRatio,
		MinMarketCapCr:   cfg.Policy.MinMarketCapCr,
		TopN:             cfg.Policy.TopN,
		MinLiveSuccesses: cfg.Policy.MinLiveSuccesses,
	}, batch.Options{
		BatchSize: cfg.Batching.VolumeBatchSize,
		Workers:   cfg.Batching.VolumeWorkers,
		Delay:     cfg.Batching.InterBatchDelay,
	}, log)

	if *once {
		runOnce(ctx, dir, pipe, log)
		return
	}

	// ---- Distribution ----
	health := metrics.NewHealthStatus(3 * time.Duration(cfg.RefreshIntervalMin) * time.Minute)
	results := make(chan model.ScreenResult, 4)
	fan := bus.New(4, log)
	hub := gateway.NewHub(log)
	hub.OnClients = func(n int) { m.WSClients.Set(float64(n)) }
	go bus.Drain(ctx, fan.Subscribe("ws"), "ws", hub, m.PublishFailed, log)

	if cfg.RedisAddr != "" {
		redisCB := breaker.New("redis", 5, cfg.BreakerCooldown)
		redisCB.OnStateChange = m.BreakerChanged
		pub, err := redisstore.New(redisstore.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			LatestTTL: cfg.RedisResultTTL,
		}, redisCB, log)
		if err != nil {
			log.Warn("redis unavailable, results stay in-process", zap.Error(err))
		} else {
			defer pub.Close()
			health.SetRedisEnabled(true)
			health.CheckRedis(ctx, pub.Client())
			health.StartLivenessChecker(ctx, pub.Client(), 15*time.Second)
			go bus.Drain(ctx, fan.Subscribe("redis"), "redis", pub, m.PublishFailed, log)
		}
	}
	go fan.Run(ctx, results)

	// ---- Alerts ----
	notifiers := notification.Multi{notification.NewLogNotifier(log)}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, log))
	}
	if cfg.AlertWebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.AlertWebhookURL, log))
	}

	// ---- Refresher ----
	ref := refresher.New(dir, pipe, refresher.Options{
		Interval:        time.Duration(cfg.RefreshIntervalMin) * time.Minute,
		MarketHoursOnly: cfg.RefreshMarketHoursOnly,
		Out:             results,
		Notifier:        notifiers,
		Observers:       []refresher.CycleObserver{m, health},
	}, log)
	go ref.Run(ctx)
	go trackMarketState(ctx, m)

	// ---- HTTP ----
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, reg, log)
	metricsSrv.Start()

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, ref, time.Now, log)
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server error", zap.Error(err))
		}
	}()

	// ---- Wait for shutdown signal ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received, cleaning up...")

	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = srv.Shutdown(shutdownCtx)
	hub.Close()
	metricsSrv.Stop(shutdownCtx)
	log.Info("stopped")
}

func buildProvider(ctx context.Context, cfg *config.Config) (model.MarketDataProvider, error) {
	yh := yahoo.New()
	if cfg.Provider != "angel" {
		return yh, nil
	}
	client := smartconnect.New(smartconnect.Config{APIKey: cfg.AngelAPIKey})
	loginCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := client.Login(loginCtx, cfg.AngelClientCode, cfg.AngelPassword, cfg.AngelTOTPSecret); err != nil {
		return nil, fmt.Errorf("angel login: %w", err)
	}
	// SmartAPI has no market cap; quotes still come from Yahoo.
	return marketdata.Compose(angel.New(client), yh), nil
}

func evalConfig(p config.Policy) (screener.EvalConfig, error) {
	from, err := markethours.ParseClock(p.BaselineStart)
	if err != nil {
		return screener.EvalConfig{}, err
	}
	to, err := markethours.ParseClock(p.BaselineEnd)
	if err != nil {
		return screener.EvalConfig{}, err
	}
	return screener.EvalConfig{
		Interval:           p.Interval,
		WindowStart:        from,
		WindowEnd:          to,
		BaselineCandles:    p.BaselineCandles,
		MinBaselineCandles: p.MinBaselineCandles,
		MinSeriesVolume:    p.MinSeriesVolume,
	}, nil
}

// runOnce screens the universe once and prints the result to stdout.
func runOnce(ctx context.Context, dir *universe.Directory, pipe *screener.Pipeline, log *zap.Logger) {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := pipe.Produce(sigCtx, dir.Resolve(sigCtx), nil)
	data, err := json.Marshal(gateway.NewScreenOut(res))
	if err != nil {
		log.Fatal("encode result", zap.Error(err))
	}
	os.Stdout.Write(pretty.Pretty(data))
}

// trackMarketState refreshes the market-open gauge every minute.
func trackMarketState(ctx context.Context, m *metrics.Metrics) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		m.SetMarketOpen(markethours.IsMarketOpen(time.Now()))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
