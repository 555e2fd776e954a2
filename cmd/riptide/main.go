package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"riptide/internal/config"
	"riptide/internal/confluence"
	"riptide/internal/gateway/binance"
	"riptide/internal/logger"
	"riptide/internal/orderflow"
	"riptide/internal/screener"
	"riptide/internal/store"
	httpapi "riptide/internal/transport/http"
)

// defaultWatchlist 在未配置 watchlist 也未启用成交额排名时兜底。
var defaultWatchlist = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT"}

func main() {
	cfgPath := flag.String("config", "config.toml", "TOML 配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Errorf("加载配置失败: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)
	logger.Infof("riptide 启动, 配置=%s", *cfgPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, err := binance.New(binance.Config{
		RESTBaseURL:     cfg.Binance.RESTBaseURL,
		WSBaseURL:       cfg.Binance.WSBaseURL,
		APIKey:          cfg.Binance.APIKey,
		SecretKey:       cfg.Binance.SecretKey,
		RateLimitPerMin: cfg.Binance.RateLimitPerMin,
		HTTPTimeout:     cfg.Binance.HTTPTimeout(),
	})
	if err != nil {
		logger.Errorf("初始化行情源失败: %v", err)
		os.Exit(1)
	}
	defer func() { _ = gw.Close() }()

	src, err := store.NewCachedSource(store.CachedSourceParams{
		Inner: gw,
		Cache: store.NewCandleCache(cfg.Analysis.MaxCachedCandles),
	})
	if err != nil {
		logger.Errorf("初始化缓存行情源失败: %v", err)
		os.Exit(1)
	}

	var history *store.HistoryStore
	if cfg.Store.SQLitePath != "" {
		history, err = store.OpenHistory(cfg.Store.SQLitePath)
		if err != nil {
			logger.Warnf("打开 sqlite 失败, 历史落库与查询停用: %v", err)
			history = nil
		} else {
			defer func() { _ = history.Close() }()
		}
	}

	analyzer := orderflow.NewAnalyzer(orderflow.AnalyzerParams{})
	svc := confluence.NewService(confluence.ServiceParams{
		Analyzer:          analyzer,
		Source:            src,
		Derivatives:       gw,
		FetchTimeout:      cfg.Analysis.FetchTimeout(),
		CandleLimit:       cfg.Analysis.CandleLimit,
		TradeLimit:        cfg.Analysis.TradeLimit,
		ScreenParallelism: cfg.Screener.Parallelism,
	})

	provider := buildProvider(cfg.Screener, gw)
	logger.Infof("扫描列表来源: %s", provider.Name())

	sc, err := screener.New(screener.Params{
		Service:    svc,
		Provider:   provider,
		Analyzer:   analyzer,
		History:    history,
		Cron:       cfg.Screener.Cron,
		Timeframe:  cfg.Screener.Timeframe,
		RunOnStart: cfg.Screener.RunOnStart,
	})
	if err != nil {
		logger.Errorf("初始化扫描器失败: %v", err)
		os.Exit(1)
	}
	if err := sc.Start(ctx); err != nil {
		logger.Errorf("启动扫描器失败: %v", err)
		os.Exit(1)
	}
	defer sc.Stop()

	warmCache(ctx, src, provider, cfg.Screener.Timeframe)

	router, err := httpapi.NewRouter(httpapi.RouterParams{
		Confluence:   svc,
		Analyzer:     analyzer,
		Source:       src,
		History:      history,
		Screener:     sc,
		CandleLimit:  cfg.Analysis.CandleLimit,
		TradeLimit:   cfg.Analysis.TradeLimit,
		FetchTimeout: cfg.Analysis.FetchTimeout(),
	})
	if err != nil {
		logger.Errorf("初始化路由失败: %v", err)
		os.Exit(1)
	}
	server, err := httpapi.NewServer(httpapi.ServerConfig{Addr: cfg.HTTP.Addr, Router: router})
	if err != nil {
		logger.Errorf("初始化 HTTP 服务失败: %v", err)
		os.Exit(1)
	}

	logger.Infof("HTTP 服务监听 %s", cfg.HTTP.Addr)
	if err := server.Start(ctx); err != nil {
		logger.Errorf("HTTP 服务异常退出: %v", err)
		os.Exit(1)
	}
	logger.Infof("riptide 已退出")
}

// buildProvider 按配置优先级选扫描列表来源：watchlist 文件 > 成交额
// 排名 > 内置静态列表。
func buildProvider(cfg config.ScreenerConfig, ranker screener.VolumeRanker) screener.SymbolProvider {
	switch {
	case cfg.WatchlistPath != "":
		return screener.NewFileProvider(cfg.WatchlistPath, cfg.Quote)
	case cfg.TopVolume > 0:
		p, err := screener.NewTopVolumeProvider(ranker, cfg.Quote, cfg.TopVolume)
		if err == nil {
			return p
		}
		logger.Warnf("构建成交额排名 provider 失败, 回落静态列表: %v", err)
	}
	return screener.NewStaticProvider(defaultWatchlist, cfg.Quote)
}

// warmCache 订阅扫描目标的实时 K 线，让重复扫描命中缓存。
// 失败只降级为每次回源，不影响启动。
func warmCache(ctx context.Context, src *store.CachedSource, provider screener.SymbolProvider, timeframe string) {
	symbols, err := provider.List(ctx)
	if err != nil {
		logger.Warnf("获取预热列表失败: %v", err)
		return
	}
	if err := src.Warm(ctx, symbols, []string{timeframe}); err != nil {
		logger.Warnf("实时 K 线预热失败: %v", err)
	}
}
