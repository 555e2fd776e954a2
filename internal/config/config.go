// Package config 加载 TOML 主配置与 YAML 观察列表文件。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config 是进程级配置。缺省值通过 withDefaults 补齐，配置文件缺失时直接使用缺省值。
type Config struct {
	LogLevel string `toml:"log_level"`

	Binance  BinanceConfig  `toml:"binance"`
	HTTP     HTTPConfig     `toml:"http"`
	Screener ScreenerConfig `toml:"screener"`
	Analysis AnalysisConfig `toml:"analysis"`
	Store    StoreConfig    `toml:"store"`
}

// BinanceConfig 对应 Binance 合约行情源的接入参数。
// 公共行情无需密钥；填入 APIKey/SecretKey 仅为提升限频额度。
type BinanceConfig struct {
	RESTBaseURL        string `toml:"rest_base_url"`
	WSBaseURL          string `toml:"ws_base_url"`
	APIKey             string `toml:"api_key"`
	SecretKey          string `toml:"secret_key"`
	RateLimitPerMin    int    `toml:"rate_limit_per_min"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
}

// HTTPTimeout 返回 REST 请求超时。
func (c BinanceConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// HTTPConfig 对应对外 HTTP 服务。
type HTTPConfig struct {
	Addr string `toml:"addr"`
}

// ScreenerConfig 对应定时批量筛选。
// Cron 为空字符串时不注册定时任务，仅保留手动触发。
type ScreenerConfig struct {
	Cron          string `toml:"cron"`
	Timeframe     string `toml:"timeframe"`
	WatchlistPath string `toml:"watchlist"`
	TopVolume     int    `toml:"top_volume"`
	Quote         string `toml:"quote"`
	RunOnStart    bool   `toml:"run_on_start"`
	Parallelism   int    `toml:"parallelism"`
}

// AnalysisConfig 对应单次分析的数据窗口与外部层拉取超时。
type AnalysisConfig struct {
	CandleLimit         int `toml:"candle_limit"`
	TradeLimit          int `toml:"trade_limit"`
	FetchTimeoutSeconds int `toml:"fetch_timeout_seconds"`
	MaxCachedCandles    int `toml:"max_cached_candles"`
}

// FetchTimeout 返回单个外部拉取的超时。
func (c AnalysisConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// StoreConfig 对应持久化。
type StoreConfig struct {
	SQLitePath string `toml:"sqlite_path"`
}

func (c Config) withDefaults() Config {
	out := c
	if strings.TrimSpace(out.LogLevel) == "" {
		out.LogLevel = "info"
	}
	if out.Binance.RESTBaseURL == "" {
		out.Binance.RESTBaseURL = "https://fapi.binance.com"
	}
	if out.Binance.WSBaseURL == "" {
		out.Binance.WSBaseURL = "wss://fstream.binance.com/stream"
	}
	if out.Binance.RateLimitPerMin <= 0 {
		out.Binance.RateLimitPerMin = 1200
	}
	if out.Binance.HTTPTimeoutSeconds <= 0 {
		out.Binance.HTTPTimeoutSeconds = 15
	}
	if out.HTTP.Addr == "" {
		out.HTTP.Addr = ":9980"
	}
	if strings.TrimSpace(out.Screener.Timeframe) == "" {
		out.Screener.Timeframe = "1h"
	}
	if strings.TrimSpace(out.Screener.Quote) == "" {
		out.Screener.Quote = "USDT"
	}
	if out.Screener.Parallelism <= 0 {
		out.Screener.Parallelism = 4
	}
	if out.Analysis.CandleLimit <= 0 {
		out.Analysis.CandleLimit = 200
	}
	if out.Analysis.TradeLimit <= 0 {
		out.Analysis.TradeLimit = 1000
	}
	if out.Analysis.FetchTimeoutSeconds <= 0 {
		out.Analysis.FetchTimeoutSeconds = 10
	}
	if out.Analysis.MaxCachedCandles <= 0 {
		out.Analysis.MaxCachedCandles = 500
	}
	if strings.TrimSpace(out.Store.SQLitePath) == "" {
		out.Store.SQLitePath = "riptide.db"
	}
	return out
}

// Default 返回全部取缺省值的配置。
func Default() Config {
	return Config{}.withDefaults()
}

// Load 读取 TOML 配置文件并补齐缺省值；文件不存在时返回缺省配置。
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return cfg.withDefaults(), nil
}

// watchlistYAML 对应 watchlist.yaml 的结构。
type watchlistYAML struct {
	Symbols []string `yaml:"symbols"`
}

// LoadWatchlist 读取 YAML 观察列表，返回原始 symbol 列表（不做归一化）。
func LoadWatchlist(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 watchlist 失败: %w", err)
	}
	var wl watchlistYAML
	if err := yaml.Unmarshal(data, &wl); err != nil {
		return nil, fmt.Errorf("解析 watchlist 失败: %w", err)
	}
	return wl.Symbols, nil
}
