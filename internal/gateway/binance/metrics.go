package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"riptide/internal/market"
)

// GetFundingRate 获取最新资金费率快照（Rate 0.0001 即 0.01%）。
func (s *Source) GetFundingRate(ctx context.Context, symbol string) (market.FundingRate, error) {
	if s == nil || s.client == nil {
		return market.FundingRate{}, fmt.Errorf("binance source not initialized")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return market.FundingRate{}, fmt.Errorf("symbol is required")
	}
	if err := s.throttle(ctx); err != nil {
		return market.FundingRate{}, err
	}
	res, err := s.client.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	if err != nil {
		return market.FundingRate{}, err
	}
	for _, entry := range res {
		if entry == nil {
			continue
		}
		if strings.EqualFold(entry.Symbol, symbol) {
			return market.FundingRate{
				Symbol:    symbol,
				Rate:      parseFloat(entry.LastFundingRate),
				MarkPrice: parseFloat(entry.MarkPrice),
				NextTime:  entry.NextFundingTime,
			}, nil
		}
	}
	return market.FundingRate{}, fmt.Errorf("funding rate not available for %s", symbol)
}

// GetOpenInterestHistory 获取 OI 历史数据，period 如 "5m"/"1h"。
func (s *Source) GetOpenInterestHistory(ctx context.Context, symbol, period string, limit int) ([]market.OpenInterestPoint, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("binance source not initialized")
	}
	if limit <= 0 {
		limit = 30
	}
	if limit > 500 {
		limit = 500
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	period = strings.ToLower(strings.TrimSpace(period))
	if symbol == "" || period == "" {
		return nil, fmt.Errorf("symbol and period are required")
	}
	if err := s.throttle(ctx); err != nil {
		return nil, err
	}
	stats, err := s.client.NewOpenInterestStatisticsService().Symbol(symbol).Period(period).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	points := make([]market.OpenInterestPoint, 0, len(stats))
	for _, item := range stats {
		if item == nil {
			continue
		}
		points = append(points, market.OpenInterestPoint{
			Symbol:               item.Symbol,
			SumOpenInterest:      parseFloat(item.SumOpenInterest),
			SumOpenInterestValue: parseFloat(item.SumOpenInterestValue),
			Timestamp:            item.Timestamp,
		})
	}
	return points, nil
}

type ticker24h struct {
	Symbol      string   `json:"symbol"`
	QuoteVolume strOrNum `json:"quoteVolume"`
}

// TopVolumeSymbols 按 24h 计价量降序返回前 n 个以 quote 结尾的合约。
// 供筛选器自动选币；24hr ticker 是单次全量接口，结果在调用方侧排序截取。
func (s *Source) TopVolumeSymbols(ctx context.Context, quote string, n int) ([]string, error) {
	if s == nil || s.httpClient == nil {
		return nil, fmt.Errorf("binance source not initialized")
	}
	if n <= 0 {
		return nil, nil
	}
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if quote == "" {
		quote = "USDT"
	}
	if err := s.throttle(ctx); err != nil {
		return nil, err
	}
	url := s.cfg.RESTBaseURL + "/fapi/v1/ticker/24hr"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("binance ticker error: %s", resp.Status)
	}
	var rows []ticker24h
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	filtered := rows[:0]
	for _, row := range rows {
		row.Symbol = strings.ToUpper(strings.TrimSpace(row.Symbol))
		if strings.HasSuffix(row.Symbol, quote) {
			filtered = append(filtered, row)
		}
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].QuoteVolume.Float() > filtered[j].QuoteVolume.Float()
	})
	if n > len(filtered) {
		n = len(filtered)
	}
	out := make([]string, 0, n)
	for _, row := range filtered[:n] {
		out = append(out, row.Symbol)
	}
	return out, nil
}
