package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"strategy-lab/internal/api"
	"strategy-lab/internal/backtest"
	"strategy-lab/internal/data"
	"strategy-lab/internal/engine"
	"strategy-lab/internal/events"
	"strategy-lab/internal/live"
	"strategy-lab/internal/monitor"
	"strategy-lab/internal/optimizer"
	"strategy-lab/internal/order"
	"strategy-lab/internal/persistence"
	"strategy-lab/internal/record"
	"strategy-lab/internal/risk"
	"strategy-lab/internal/strategy"
	"strategy-lab/pkg/config"
	"strategy-lab/pkg/db"
	"strategy-lab/pkg/i18n"
	"strategy-lab/pkg/logger"
	"strategy-lab/pkg/market/binance"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", i18n.Get("ConfigLoadFailed"), err)
		os.Exit(1)
	}
	i18n.SetLanguage(i18n.ParseLanguage(cfg.Language))

	log, err := logger.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", i18n.Get("LoggerInitFailed"), err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "token":
			err = issueToken(cfg, log, os.Args[2:])
		case "fetch":
			err = fetchBars(cfg, log, os.Args[2:])
		default:
			err = fmt.Errorf("unknown command %q", os.Args[1])
		}
		if err != nil {
			log.Fatal(i18n.Get("APIServerError"), zap.Error(err))
		}
		return
	}

	if err := run(cfg, log); err != nil {
		log.Fatal(i18n.Get("APIServerError"), zap.Error(err))
	}
}

// issueToken prints a bearer token for the mutating API routes.
func issueToken(cfg *config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "operator", "token subject")
	ttl := fs.Duration("ttl", 72*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	token, expiresAt, err := api.IssueToken(*subject, cfg.JWTSecret, *ttl)
	if err != nil {
		return err
	}
	log.Info(i18n.Get("TokenIssued"), zap.String("subject", *subject), zap.Time("expires_at", expiresAt))
	fmt.Println(token)
	return nil
}

// fetchBars downloads bars from the configured source into a CSV file
// laid out the way the csv source reads it.
func fetchBars(cfg *config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	symbol := fs.String("symbol", "", "instrument symbol")
	interval := fs.String("interval", "1h", "bar interval")
	days := fs.Int("days", 30, "history depth in days")
	out := fs.String("out", "", "output file, stdout when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*symbol) == "" || *days <= 0 {
		return errors.New("fetch needs -symbol and a positive -days")
	}
	iv, err := data.NormalizeInterval(*interval)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	provider, _ := newProvider(cfg)
	to := time.Now().UTC()
	bars, err := provider.Bars(ctx, data.Request{
		Symbol:   strings.ToUpper(*symbol),
		Interval: iv,
		From:     to.AddDate(0, 0, -*days),
		To:       to,
	})
	if err != nil {
		return err
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := data.WriteCSV(w, bars); err != nil {
		return err
	}
	log.Info(i18n.Get("BarsExported"),
		zap.String("symbol", strings.ToUpper(*symbol)),
		zap.String("interval", iv),
		zap.Int("bars", len(bars)),
		zap.String("out", *out),
	)
	return nil
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info(i18n.Get("Starting"))
	log.Info(i18n.Get("ConfigLoaded"),
		zap.String("port", cfg.Port),
		zap.String("data_source", cfg.DataSource),
		zap.String("language", string(i18n.GetLanguage())),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info(i18n.Get("UsingDBPath"), zap.String("path", cfg.DBPath))
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("%s: %w", i18n.Get("DBInitFailed"), err)
	}
	defer database.Close()

	presets, err := strategy.LoadPresets(cfg.PresetsPath)
	if err != nil {
		log.Warn(i18n.Get("PresetsLoadFailed"), zap.String("path", cfg.PresetsPath), zap.Error(err))
		presets = strategy.DefaultPresets()
	} else {
		log.Info(i18n.Get("PresetsLoaded"), zap.String("path", cfg.PresetsPath))
	}

	provider, client := newProvider(cfg)
	if client != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Ping(pingCtx); err != nil {
			log.Warn(i18n.Get("DataSourceDown"), zap.String("url", client.BaseURL), zap.Error(err))
		}
		cancel()
	}
	cached, _ := provider.(*data.CachedProvider)
	if cached != nil {
		go evictLoop(ctx, cached, cfg.DataCacheTTL, log)
	}
	log.Info(i18n.Get("DataSourceReady"),
		zap.String("source", cfg.DataSource),
		zap.Duration("cache_ttl", cfg.DataCacheTTL),
	)

	bus := events.NewBus()
	metrics := monitor.NewMetrics()
	mon := &monitor.Monitor{Bus: bus, Metrics: metrics, Logger: log}
	go mon.Start(ctx)
	log.Info(i18n.Get("MonitorStarted"))

	paper := order.NewPaperExecutor(order.PaperConfig{
		InitialCash:  cfg.PaperBalance,
		EquityPct:    cfg.EquityPct,
		LotSize:      cfg.PaperLotSize,
		FallbackLots: cfg.ZeroSizeFallbackUnits,
		FeePct:       cfg.CommissionPct,
	}, bus, log.Named("paper"))

	guard := risk.NewGuard(paper, risk.Config{
		EnableRisk:     cfg.RiskEnabled,
		MaxDailyTrades: cfg.RiskMaxDailyTrades,
		MaxDailyLoss:   cfg.RiskMaxDailyLoss,
	}, bus, log.Named("risk"))

	signals := persistence.NewSignalWriter(database, cfg.SignalBatchSize, cfg.SignalFlush, log.Named("signals"))
	defer signals.Close()

	traders := live.NewManager(live.Deps{
		Provider:     provider,
		Sink:         guard,
		Bus:          bus,
		Recorder:     signals,
		Logger:       log.Named("live"),
		PollInterval: cfg.LivePollInterval,
		Window:       cfg.LiveWindow,
	})
	defer traders.Close()

	opts := backtest.DefaultOptions()
	opts.InitialBalance = cfg.InitialBalance
	opts.CommissionPct = cfg.CommissionPct
	opts.Sizing.EquityPct = cfg.EquityPct
	opts.Sizing.FallbackUnits = cfg.ZeroSizeFallbackUnits

	optCfg := optimizer.DefaultConfig()
	optCfg.Options = opts
	optCfg.Base = presets.Defaults
	if cfg.OptimizerWorkers > 0 {
		optCfg.Workers = cfg.OptimizerWorkers
	}
	if cfg.OptimizerSeed != 0 {
		optCfg.Seed = cfg.OptimizerSeed
	}
	optCfg.Logger = log.Named("optimizer")
	optCfg.Observer = metrics

	engineCfg := engine.Config{
		Provider:    provider,
		Store:       record.NewStore(database),
		Traders:     traders,
		Signals:     database,
		Presets:     presets,
		Optimizer:   optCfg,
		Options:     opts,
		Bus:         bus,
		Observer:    metrics,
		Logger:      log.Named("engine"),
		DataSource:  cfg.DataSource,
		WriterStats: signals.Metrics,
	}
	if cached != nil {
		engineCfg.CacheStats = cached.Stats
	}
	svc := engine.NewImpl(engineCfg)

	server := api.NewServer(svc, bus, metrics, log.Named("api"), api.Options{
		JWTSecret:      cfg.JWTSecret,
		RateLimit:      cfg.RateLimit,
		RequestTimeout: cfg.RequestTimeout,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(i18n.Get("ServerListening"), zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info(i18n.Get("ShuttingDown"))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn(i18n.Get("APIServerError"), zap.Error(err))
	}
	log.Info(i18n.Get("ShutdownComplete"))
	return nil
}

// newProvider builds the configured bar source behind a TTL cache. The
// binance client is returned for connectivity checks, nil for other sources.
func newProvider(cfg *config.Config) (data.Provider, *binance.Client) {
	var (
		inner  data.Provider
		client *binance.Client
	)
	switch cfg.DataSource {
	case "csv":
		inner = data.NewCSVProvider(cfg.DataDir)
	case "mock":
		seed := cfg.OptimizerSeed
		if seed == 0 {
			seed = 1
		}
		inner = data.NewSyntheticProvider(seed)
	default:
		client = binance.NewClient(cfg.BinanceTestnet, cfg.BinanceRateLimit)
		inner = data.NewBinanceProvider(client)
	}
	if cfg.DataCacheTTL <= 0 {
		return inner, client
	}
	return data.NewCachedProvider(inner, cfg.DataCacheTTL), client
}

// evictLoop drops expired cache entries once per TTL until ctx ends.
func evictLoop(ctx context.Context, p *data.CachedProvider, every time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.Evict(); n > 0 {
				log.Debug(i18n.Get("CacheEvicted"), zap.Int("entries", n))
			}
		}
	}
}
