package market

import (
	"strings"
	"time"
)

// Candle 表示一根闭合 K 线，时间戳为毫秒。
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades,omitempty"`
}

// Green 表示收盘价高于开盘价。
func (c Candle) Green() bool { return c.Close > c.Open }

// ChangePercent 返回相对开盘价的涨跌幅（百分比），开盘价为 0 时返回 0。
func (c Candle) ChangePercent() float64 {
	if c.Open == 0 {
		return 0
	}
	return (c.Close - c.Open) / c.Open * 100
}

// TradeSide 标记成交的主动方向。
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// Trade 表示一笔逐笔成交，时间戳为毫秒。
type Trade struct {
	Timestamp int64     `json:"timestamp"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Side      TradeSide `json:"side"`
}

// FundingRate 表示某合约最近一期资金费率。
type FundingRate struct {
	Symbol    string  `json:"symbol"`
	Rate      float64 `json:"rate"`
	MarkPrice float64 `json:"mark_price"`
	NextTime  int64   `json:"next_time"`
}

// OpenInterestPoint 表示一条持仓量历史记录。
type OpenInterestPoint struct {
	Symbol               string  `json:"symbol"`
	SumOpenInterest      float64 `json:"sum_open_interest"`
	SumOpenInterestValue float64 `json:"sum_open_interest_value"`
	Timestamp            int64   `json:"timestamp"`
}

const (
	intervalMinuteMs = int64(time.Minute / time.Millisecond)
	intervalHourMs   = 60 * intervalMinuteMs
	intervalDayMs    = 24 * intervalHourMs
)

var intervalMillis = map[string]int64{
	"5m":  5 * intervalMinuteMs,
	"15m": 15 * intervalMinuteMs,
	"30m": 30 * intervalMinuteMs,
	"1h":  intervalHourMs,
	"4h":  4 * intervalHourMs,
	"1d":  intervalDayMs,
}

// NormalizeInterval 统一时间框标识（大小写不敏感），未知值原样小写返回。
func NormalizeInterval(interval string) string {
	return strings.ToLower(strings.TrimSpace(interval))
}

// IntervalMillis 返回时间框对应的毫秒跨度，未知时间框回落到 1h。
func IntervalMillis(interval string) int64 {
	if ms, ok := intervalMillis[NormalizeInterval(interval)]; ok {
		return ms
	}
	return intervalHourMs
}

// IntervalDuration 返回时间框对应的 time.Duration，未知时间框回落到 1h。
func IntervalDuration(interval string) time.Duration {
	return time.Duration(IntervalMillis(interval)) * time.Millisecond
}
