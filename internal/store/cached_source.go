package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"riptide/internal/logger"
	"riptide/internal/market"
)

// CachedSource 在行情源前加一层 K 线缓存：序列够长且末根仍是当前
// 未收盘的 bar 时直接切片返回，否则回源并整段替换。逐笔成交与
// 订阅原样透传。重复扫描同一时间框时不再反复回源。
type CachedSource struct {
	inner market.Source
	cache *CandleCache
	now   func() time.Time
}

type CachedSourceParams struct {
	Inner market.Source
	Cache *CandleCache
}

func NewCachedSource(p CachedSourceParams) (*CachedSource, error) {
	if p.Inner == nil {
		return nil, errors.New("行情源不能为空")
	}
	if p.Cache == nil {
		p.Cache = NewCandleCache(0)
	}
	return &CachedSource{inner: p.Inner, cache: p.Cache, now: time.Now}, nil
}

// Cache 暴露底层缓存，供导出接口复用。
func (s *CachedSource) Cache() *CandleCache {
	return s.cache
}

func (s *CachedSource) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if cached, ok := s.fromCache(ctx, symbol, interval, limit); ok {
		return cached, nil
	}
	candles, err := s.inner.FetchHistory(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Replace(symbol, interval, candles); err != nil {
		logger.Warnf("[store] 缓存替换失败 %s@%s: %v", symbol, interval, err)
	}
	return candles, nil
}

// fromCache 要求缓存长度达标且末根 bar 的区间还没走完。
func (s *CachedSource) fromCache(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, bool) {
	latest, ok := s.cache.Latest(symbol, interval)
	if !ok {
		return nil, false
	}
	if s.now().UnixMilli() >= latest.OpenTime+market.IntervalMillis(interval) {
		return nil, false
	}
	series, err := s.cache.Export(ctx, symbol, interval, limit)
	if err != nil || len(series) < limit {
		return nil, false
	}
	return series, true
}

// Warm 订阅实时 K 线并持续写入缓存，直到 ctx 取消或通道关闭。
func (s *CachedSource) Warm(ctx context.Context, symbols, intervals []string) error {
	events, err := s.inner.Subscribe(ctx, symbols, intervals, market.SubscribeOptions{})
	if err != nil {
		return fmt.Errorf("订阅实时 K 线失败: %w", err)
	}
	go func() {
		for ev := range events {
			if err := s.cache.Append(ev.Symbol, ev.Interval, []market.Candle{ev.Candle}); err != nil {
				logger.Warnf("[store] 缓存写入失败 %s@%s: %v", ev.Symbol, ev.Interval, err)
			}
		}
		logger.Infof("[store] 实时 K 线订阅已结束")
	}()
	return nil
}

func (s *CachedSource) FetchRecentTrades(ctx context.Context, symbol string, limit int) ([]market.Trade, error) {
	return s.inner.FetchRecentTrades(ctx, symbol, limit)
}

func (s *CachedSource) Subscribe(ctx context.Context, symbols, intervals []string, opts market.SubscribeOptions) (<-chan market.CandleEvent, error) {
	return s.inner.Subscribe(ctx, symbols, intervals, opts)
}

func (s *CachedSource) SubscribeTrades(ctx context.Context, symbols []string, opts market.SubscribeOptions) (<-chan market.TradeEvent, error) {
	return s.inner.SubscribeTrades(ctx, symbols, opts)
}

func (s *CachedSource) Stats() market.SourceStats {
	return s.inner.Stats()
}

func (s *CachedSource) Close() error {
	return s.inner.Close()
}
