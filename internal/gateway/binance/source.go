package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	"riptide/internal/logger"
	"riptide/internal/market"
)

const (
	maxHistoryLimit = 1500
	maxTradesLimit  = 1000
)

// Source 实现 market.Source 与 market.DerivativesProvider，负责 Binance 合约 REST/WS 接入。
type Source struct {
	cfg        Config
	httpClient *http.Client
	client     *futures.Client
	limiter    *rate.Limiter

	mu          sync.Mutex
	klineWS     *combinedStreamsClient
	klineCancel context.CancelFunc
	tradeWS     *combinedStreamsClient
	tradeCancel context.CancelFunc
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	client := futures.NewClient(final.APIKey, final.SecretKey)
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = httpClient
	perSec := float64(final.RateLimitPerMin) / 60.0
	return &Source{
		cfg:        final,
		httpClient: httpClient,
		client:     client,
		limiter:    rate.NewLimiter(rate.Limit(perSec), final.RateLimitPerMin/60+1),
	}, nil
}

// throttle 在每次 REST 调用前消耗一个限频令牌。
func (s *Source) throttle(ctx context.Context) error {
	if s == nil || s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	if err := s.throttle(ctx); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/fapi/v1/klines?symbol=%s&interval=%s&limit=%d", s.cfg.RESTBaseURL, symbol, interval, limit)
	logger.Debugf("[binance] REST %s", url)
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
		return nil, fmt.Errorf("binance history error: %s", resp.Status)
	}
	var raw [][]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 7 {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  toInt64(k[0]),
			CloseTime: toInt64(k[6]),
			Open:      toFloat(k[1]),
			High:      toFloat(k[2]),
			Low:       toFloat(k[3]),
			Close:     toFloat(k[4]),
			Volume:    toFloat(k[5]),
			Trades:    toInt64At(k, 8),
		})
	}
	return out, nil
}

// FetchRecentTrades 拉取最近 limit 笔聚合成交，按时间升序返回。
// buyer-maker=true 表示买方挂单被动成交，即卖方主动，记为 sell。
func (s *Source) FetchRecentTrades(ctx context.Context, symbol string, limit int) ([]market.Trade, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("binance source not initialized")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if limit <= 0 {
		limit = 500
	}
	if limit > maxTradesLimit {
		limit = maxTradesLimit
	}
	if err := s.throttle(ctx); err != nil {
		return nil, err
	}
	rows, err := s.client.NewAggTradesService().Symbol(symbol).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Trade, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		side := market.TradeBuy
		if row.IsBuyerMaker {
			side = market.TradeSell
		}
		out = append(out, market.Trade{
			Timestamp: row.Timestamp,
			Price:     parseFloat(row.Price),
			Size:      parseFloat(row.Quantity),
			Side:      side,
		})
	}
	return out, nil
}

func (s *Source) Subscribe(ctx context.Context, symbols, intervals []string, opts market.SubscribeOptions) (<-chan market.CandleEvent, error) {
	if len(symbols) == 0 || len(intervals) == 0 {
		return nil, fmt.Errorf("symbols and intervals are required for subscription")
	}
	ws, err := s.connectStream(opts)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.klineCancel != nil {
		s.klineCancel()
	}
	if s.klineWS != nil {
		s.klineWS.Close()
	}
	s.klineWS = ws
	s.klineCancel = cancel
	s.mu.Unlock()

	out := make(chan market.CandleEvent, eventBuffer(opts))
	var wg sync.WaitGroup

	nSymbols := normalizeSymbols(symbols)
	nIntervals := normalizeIntervals(intervals)
	streams := make([]string, 0, len(nSymbols)*len(nIntervals))
	for _, sym := range nSymbols {
		for _, iv := range nIntervals {
			stream := strings.ToLower(sym) + "@kline_" + iv
			streams = append(streams, stream)
			sub := ws.AddSubscriber(stream, 200)
			wg.Add(1)
			go func(symbol, interval string, ch <-chan []byte) {
				defer wg.Done()
				s.forwardKlines(subCtx, symbol, interval, ch, out)
			}(sym, iv, sub)
		}
	}
	if err := ws.BatchSubscribe(streams); err != nil {
		ws.Close()
		cancel()
		return nil, err
	}

	go func() {
		<-subCtx.Done()
		ws.Close()
		wg.Wait()
		close(out)
	}()
	return out, nil
}

// SubscribeTrades 订阅 aggTrade 流。与 K 线订阅互不影响，各持一条组合流连接。
func (s *Source) SubscribeTrades(ctx context.Context, symbols []string, opts market.SubscribeOptions) (<-chan market.TradeEvent, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbols are required for subscription")
	}
	ws, err := s.connectStream(opts)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.tradeCancel != nil {
		s.tradeCancel()
	}
	if s.tradeWS != nil {
		s.tradeWS.Close()
	}
	s.tradeWS = ws
	s.tradeCancel = cancel
	s.mu.Unlock()

	out := make(chan market.TradeEvent, eventBuffer(opts))
	var wg sync.WaitGroup

	streams := make([]string, 0, len(symbols))
	for _, sym := range normalizeSymbols(symbols) {
		stream := strings.ToLower(sym) + "@aggTrade"
		streams = append(streams, stream)
		sub := ws.AddSubscriber(stream, 200)
		wg.Add(1)
		go func(symbol string, ch <-chan []byte) {
			defer wg.Done()
			s.forwardTrades(subCtx, symbol, ch, out)
		}(sym, sub)
	}
	if err := ws.BatchSubscribe(streams); err != nil {
		ws.Close()
		cancel()
		return nil, err
	}

	go func() {
		<-subCtx.Done()
		ws.Close()
		wg.Wait()
		close(out)
	}()
	return out, nil
}

func (s *Source) connectStream(opts market.SubscribeOptions) (*combinedStreamsClient, error) {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = s.cfg.WSBatchSize
	}
	ws := newCombinedStreamsClient(s.cfg.WSBaseURL, batch)
	ws.SetCallbacks(opts.OnConnect, opts.OnDisconnect)
	if err := ws.Connect(); err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *Source) forwardKlines(ctx context.Context, symbol, interval string, stream <-chan []byte, out chan<- market.CandleEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-stream:
			if !ok {
				return
			}
			var ev klineEvent
			if err := json.Unmarshal(msg, &ev); err != nil {
				logger.Warnf("[binance] 解码 WS K 线帧失败: %v", err)
				continue
			}
			event := market.CandleEvent{
				Symbol:   symbol,
				Interval: interval,
				Final:    ev.Kline.IsFinal,
				Candle:   ev.candle(),
			}
			select {
			case out <- event:
			default:
				logger.Warnf("[binance] K 线事件通道已满，丢弃 %s %s", symbol, interval)
			}
		}
	}
}

func (s *Source) forwardTrades(ctx context.Context, symbol string, stream <-chan []byte, out chan<- market.TradeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-stream:
			if !ok {
				return
			}
			var ev aggTradeEvent
			if err := json.Unmarshal(msg, &ev); err != nil {
				logger.Warnf("[binance] 解码 WS 成交帧失败: %v", err)
				continue
			}
			event := ev.tradeEvent()
			if event.Symbol == "" {
				event.Symbol = symbol
			}
			select {
			case out <- event:
			default:
				logger.Warnf("[binance] 成交事件通道已满，丢弃 %s", symbol)
			}
		}
	}
}

func (s *Source) Stats() market.SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out market.SourceStats
	for _, ws := range []*combinedStreamsClient{s.klineWS, s.tradeWS} {
		if ws == nil {
			continue
		}
		st := ws.Stats()
		out.Reconnects += st.Reconnects
		out.SubscribeErrors += st.SubscribeErrors
		if st.LastError != "" {
			out.LastError = st.LastError
		}
	}
	return out
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.klineCancel != nil {
		s.klineCancel()
		s.klineCancel = nil
	}
	if s.klineWS != nil {
		s.klineWS.Close()
		s.klineWS = nil
	}
	if s.tradeCancel != nil {
		s.tradeCancel()
		s.tradeCancel = nil
	}
	if s.tradeWS != nil {
		s.tradeWS.Close()
		s.tradeWS = nil
	}
	return nil
}

func eventBuffer(opts market.SubscribeOptions) int {
	if opts.Buffer > 0 {
		return opts.Buffer
	}
	return 512
}

func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		trimmed := strings.ToUpper(strings.TrimSpace(sym))
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeIntervals(intervals []string) []string {
	out := make([]string, 0, len(intervals))
	for _, iv := range intervals {
		trimmed := strings.ToLower(strings.TrimSpace(iv))
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case float64:
		return t
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return int64(f)
	default:
		return 0
	}
}

func toInt64At(row []any, idx int) int64 {
	if idx < 0 || idx >= len(row) {
		return 0
	}
	return toInt64(row[idx])
}

type klineEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		StartTime      int64    `json:"t"`
		CloseTime      int64    `json:"T"`
		Symbol         string   `json:"s"`
		Interval       string   `json:"i"`
		OpenPrice      strOrNum `json:"o"`
		ClosePrice     strOrNum `json:"c"`
		HighPrice      strOrNum `json:"h"`
		LowPrice       strOrNum `json:"l"`
		Volume         strOrNum `json:"v"`
		NumberOfTrades int      `json:"n"`
		IsFinal        bool     `json:"x"`
		QuoteVolume    strOrNum `json:"q"`
		TakerBuyBase   strOrNum `json:"V"`
		TakerBuyQuote  strOrNum `json:"Q"`
	} `json:"k"`
}

func (ev klineEvent) candle() market.Candle {
	return market.Candle{
		OpenTime:  ev.Kline.StartTime,
		CloseTime: ev.Kline.CloseTime,
		Open:      ev.Kline.OpenPrice.Float(),
		High:      ev.Kline.HighPrice.Float(),
		Low:       ev.Kline.LowPrice.Float(),
		Close:     ev.Kline.ClosePrice.Float(),
		Volume:    ev.Kline.Volume.Float(),
		Trades:    int64(ev.Kline.NumberOfTrades),
	}
}

type aggTradeEvent struct {
	EventType    string   `json:"e"`
	EventTime    int64    `json:"E"`
	Symbol       string   `json:"s"`
	Price        strOrNum `json:"p"`
	Quantity     strOrNum `json:"q"`
	TradeTime    int64    `json:"T"`
	BuyerIsMaker bool     `json:"m"`
}

func (ev aggTradeEvent) tradeEvent() market.TradeEvent {
	side := market.TradeBuy
	if ev.BuyerIsMaker {
		side = market.TradeSell
	}
	return market.TradeEvent{
		Symbol:    strings.ToUpper(strings.TrimSpace(ev.Symbol)),
		Price:     ev.Price.Float(),
		Quantity:  ev.Quantity.Float(),
		Side:      side,
		EventTime: ev.EventTime,
		TradeTime: ev.TradeTime,
	}
}

type strOrNum string

func (s *strOrNum) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = strOrNum(v)
		return nil
	}
	*s = strOrNum(string(b))
	return nil
}

func (s strOrNum) Float() float64 {
	f, _ := strconv.ParseFloat(string(s), 64)
	return f
}
