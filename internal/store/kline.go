// Package store 提供 K 线缓存与分析结果持久化。
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"riptide/internal/market"
)

var errEmptyKey = errors.New("symbol/interval 不能为空")

// SnapshotExporter 导出固定窗口 K 线的抽象。
type SnapshotExporter interface {
	Export(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)
}

// CandleCache 是按 symbol@interval 归键的内存有界 K 线缓存。
// 写入对齐实时流语义：同一 OpenTime 覆盖末根，更旧的跳过，新的追加并裁剪到上界。
type CandleCache struct {
	mu   sync.RWMutex
	max  int
	data map[string][]market.Candle
}

// NewCandleCache 创建缓存，maxPerSeries <= 0 时回落到 500。
func NewCandleCache(maxPerSeries int) *CandleCache {
	if maxPerSeries <= 0 {
		maxPerSeries = 500
	}
	return &CandleCache{max: maxPerSeries, data: make(map[string][]market.Candle)}
}

func cacheKey(symbol, interval string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" || strings.TrimSpace(interval) == "" {
		return "", errEmptyKey
	}
	return sym + "@" + market.NormalizeInterval(interval), nil
}

// Append 合并一批按时间升序的 K 线。末根同 OpenTime 的增量更新就地覆盖，
// 早于末根的跳过（流重放），其余追加。
func (c *CandleCache) Append(symbol, interval string, candles []market.Candle) error {
	k, err := cacheKey(symbol, interval)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.data[k]
	for _, candle := range candles {
		n := len(cur)
		if n > 0 {
			last := cur[n-1].OpenTime
			if candle.OpenTime == last {
				cur[n-1] = candle
				continue
			}
			if candle.OpenTime < last {
				continue
			}
		}
		cur = append(cur, candle)
	}
	if len(cur) > c.max {
		cur = append(cur[:0], cur[len(cur)-c.max:]...)
	}
	c.data[k] = cur
	return nil
}

// Replace 全量替换指定序列（拷贝存储）。
func (c *CandleCache) Replace(symbol, interval string, candles []market.Candle) error {
	k, err := cacheKey(symbol, interval)
	if err != nil {
		return err
	}
	dst := make([]market.Candle, len(candles))
	copy(dst, candles)
	if len(dst) > c.max {
		dst = dst[len(dst)-c.max:]
	}
	c.mu.Lock()
	c.data[k] = dst
	c.mu.Unlock()
	return nil
}

// Series 返回整段序列的拷贝；未知键返回空切片。
func (c *CandleCache) Series(symbol, interval string) []market.Candle {
	k, err := cacheKey(symbol, interval)
	if err != nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur := c.data[k]
	out := make([]market.Candle, len(cur))
	copy(out, cur)
	return out
}

// Latest 返回最新一根 K 线。
func (c *CandleCache) Latest(symbol, interval string) (market.Candle, bool) {
	k, err := cacheKey(symbol, interval)
	if err != nil {
		return market.Candle{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur := c.data[k]
	if len(cur) == 0 {
		return market.Candle{}, false
	}
	return cur[len(cur)-1], true
}

// Export 返回最近 limit 根 K 线（时间升序），实现 SnapshotExporter。
func (c *CandleCache) Export(_ context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	k, err := cacheKey(symbol, interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur := c.data[k]
	if len(cur) == 0 {
		return nil, nil
	}
	if limit > len(cur) {
		limit = len(cur)
	}
	out := make([]market.Candle, limit)
	copy(out, cur[len(cur)-limit:])
	return out, nil
}

// Keys 列出当前缓存的 symbol@interval 键（字典序）。
func (c *CandleCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.data))
	for k := range c.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
