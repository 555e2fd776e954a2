package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"riptide/internal/confluence"
	"riptide/internal/logger"
	"riptide/internal/market"
	"riptide/internal/orderflow"
	"riptide/internal/screener"
	"riptide/internal/store"
)

const (
	defaultRouterCandleLimit  = 200
	defaultRouterTradeLimit   = 1000
	defaultRouterFetchTimeout = 10 * time.Second
)

// RouterParams 汇集各接口依赖。Confluence 必填；Analyzer/Source/History/
// Screener 任一缺失时对应的路由组不挂载，而不是在请求期报错。
type RouterParams struct {
	Confluence   *confluence.Service
	Analyzer     *orderflow.Analyzer
	Source       market.Source
	History      *store.HistoryStore
	Screener     *screener.Screener
	CandleLimit  int
	TradeLimit   int
	FetchTimeout time.Duration
}

// Router 绑定合流分析、订单流、扫描任务与历史查询的路由。
type Router struct {
	confluence   *confluence.Service
	analyzer     *orderflow.Analyzer
	source       market.Source
	history      *store.HistoryStore
	screener     *screener.Screener
	candleLimit  int
	tradeLimit   int
	fetchTimeout time.Duration
}

func NewRouter(p RouterParams) (*Router, error) {
	if p.Confluence == nil {
		return nil, errors.New("confluence service 不能为空")
	}
	if p.CandleLimit <= 0 {
		p.CandleLimit = defaultRouterCandleLimit
	}
	if p.TradeLimit <= 0 {
		p.TradeLimit = defaultRouterTradeLimit
	}
	if p.FetchTimeout <= 0 {
		p.FetchTimeout = defaultRouterFetchTimeout
	}
	return &Router{
		confluence:   p.Confluence,
		analyzer:     p.Analyzer,
		source:       p.Source,
		history:      p.History,
		screener:     p.Screener,
		candleLimit:  p.CandleLimit,
		tradeLimit:   p.TradeLimit,
		fetchTimeout: p.FetchTimeout,
	}, nil
}

// Register 挂载全部可用路由。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/confluence/:symbol", r.handleConfluence)
	group.POST("/screen", r.handleScreen)
	if r.analyzer != nil {
		group.GET("/pressure/:symbol", r.handlePressure)
		if r.source != nil {
			group.GET("/cvd/:symbol", r.handleCVD)
			group.GET("/cvd/:symbol/export", r.handleCVDExport)
		}
	}
	if r.history != nil {
		group.GET("/history/:symbol", r.handleAnalysisHistory)
		group.GET("/history/:symbol/pressure", r.handlePressureHistory)
	}
	if r.screener != nil {
		group.POST("/sweep", r.handleSweep)
		group.GET("/sweep/jobs", r.handleSweepJobs)
		group.GET("/sweep/jobs/:id", r.handleSweepStatus)
	}
}

func (r *Router) handleConfluence(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 symbol"})
		return
	}
	timeframe := c.DefaultQuery("timeframe", "1h")
	details, _ := strconv.ParseBool(c.DefaultQuery("details", "false"))

	analysis, err := r.confluence.AnalyzeMarket(c.Request.Context(), symbol, timeframe, details)
	if err != nil {
		logger.Warnf("[api] %s 合流分析失败: %v", symbol, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (r *Router) handleScreen(c *gin.Context) {
	var req struct {
		Symbols   []string `json:"symbols" binding:"required"`
		Timeframe string   `json:"timeframe"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Timeframe == "" {
		req.Timeframe = "1h"
	}

	results := r.confluence.ScreenMultipleSymbols(c.Request.Context(), req.Symbols, req.Timeframe)
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"summary": confluence.Summarize(results),
	})
}

// handleSweep 异步触发一轮全量扫描，返回任务快照供轮询。
func (r *Router) handleSweep(c *gin.Context) {
	job := r.screener.SubmitSweep("api")
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

func (r *Router) handleSweepStatus(c *gin.Context) {
	id := c.Param("id")
	job, ok := r.screener.JobSnapshot(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (r *Router) handleSweepJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": r.screener.JobsSnapshot()})
}

func (r *Router) handleCVD(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 symbol"})
		return
	}
	timeframe := c.DefaultQuery("timeframe", "1h")

	candles, trades, err := r.fetchMarket(c.Request.Context(), symbol, timeframe)
	if err != nil {
		logger.Warnf("[api] %s 行情拉取失败: %v", symbol, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := r.analyzer.AnalyzeCVD(symbol, candles, trades, timeframe)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": res})
}

func (r *Router) handleCVDExport(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 symbol"})
		return
	}
	timeframe := market.NormalizeInterval(c.DefaultQuery("timeframe", "1h"))
	dateOnly, _ := strconv.ParseBool(c.DefaultQuery("date_only", "false"))

	candles, trades, err := r.fetchMarket(c.Request.Context(), symbol, timeframe)
	if err != nil {
		logger.Warnf("[api] %s 行情拉取失败: %v", symbol, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// 导出走只读聚合，不推进累计状态。
	bars, err := r.analyzer.PreviewBars(symbol, candles, trades, timeframe)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data := orderflow.BuildDeltaCSV(bars, orderflow.DeltaCSVOptions{
		DateOnly:       dateOnly,
		PricePrecision: orderflow.PrecisionAuto,
	})
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s_%s_delta.csv", symbol, timeframe))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(data))
}

func (r *Router) handlePressure(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 symbol"})
		return
	}
	timeframe := market.NormalizeInterval(c.DefaultQuery("timeframe", "1h"))

	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"timeframe": timeframe,
		"trend":     r.analyzer.PressureTrend(symbol, timeframe),
		"history":   r.analyzer.PressureHistory(symbol, timeframe),
	})
}

func (r *Router) handleAnalysisHistory(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 symbol"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit 非法"})
		return
	}

	recs, err := r.history.RecentAnalyses(c.Request.Context(), symbol, limit)
	if err != nil {
		logger.Errorf("[api] %s 查询分析历史失败: %v", symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": recs})
}

func (r *Router) handlePressureHistory(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 symbol"})
		return
	}
	timeframe := c.DefaultQuery("timeframe", "1h")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit 非法"})
		return
	}

	recs, err := r.history.RecentPressure(c.Request.Context(), symbol, timeframe, limit)
	if err != nil {
		logger.Errorf("[api] %s 查询压力历史失败: %v", symbol, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": recs})
}

// fetchMarket 为订单流接口拉取 K 线与逐笔成交，各自带独立超时。
func (r *Router) fetchMarket(ctx context.Context, symbol, timeframe string) ([]market.Candle, []market.Trade, error) {
	fctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()
	candles, err := r.source.FetchHistory(fctx, symbol, timeframe, r.candleLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("拉取 K 线失败: %w", err)
	}

	tctx, cancel2 := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel2()
	trades, err := r.source.FetchRecentTrades(tctx, symbol, r.tradeLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("拉取逐笔成交失败: %w", err)
	}
	return candles, trades, nil
}
