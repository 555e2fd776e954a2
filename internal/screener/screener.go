package screener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"riptide/internal/confluence"
	"riptide/internal/logger"
	"riptide/internal/orderflow"
	"riptide/internal/store"
)

const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"

	// 内存里最多保留的历史任务数，超出后淘汰最旧的。
	maxJobHistory = 50
)

// SweepJob 在内存中跟踪一轮扫描的进度与结果摘要。
type SweepJob struct {
	ID        string                   `json:"id"`
	Status    string                   `json:"status"`
	Trigger   string                   `json:"trigger"`
	Timeframe string                   `json:"timeframe"`
	Symbols   int                      `json:"symbols"`
	StartedAt time.Time                `json:"started_at"`
	UpdatedAt time.Time                `json:"updated_at"`
	Message   string                   `json:"message"`
	Summary   confluence.ScreenSummary `json:"summary"`
}

func (j *SweepJob) copy() SweepJob {
	if j == nil {
		return SweepJob{}
	}
	return *j
}

// Params 汇集扫描器依赖。Service 与 Provider 必填；Analyzer/History
// 缺失时跳过对应的落库步骤。
type Params struct {
	Service    *confluence.Service
	Provider   SymbolProvider
	Analyzer   *orderflow.Analyzer
	History    *store.HistoryStore
	Cron       string
	Timeframe  string
	RunOnStart bool
}

// Screener 按 cron 表达式周期性扫描观察列表。
type Screener struct {
	svc        *confluence.Service
	provider   SymbolProvider
	analyzer   *orderflow.Analyzer
	history    *store.HistoryStore
	spec       string
	timeframe  string
	runOnStart bool

	cron *cron.Cron

	mu      sync.Mutex
	baseCtx context.Context
	jobs    map[string]*SweepJob
	order   []string
}

func New(p Params) (*Screener, error) {
	if p.Service == nil {
		return nil, errors.New("confluence service 不能为空")
	}
	if p.Provider == nil {
		return nil, errors.New("symbol provider 不能为空")
	}
	if p.Timeframe == "" {
		p.Timeframe = "1h"
	}
	return &Screener{
		svc:        p.Service,
		provider:   p.Provider,
		analyzer:   p.Analyzer,
		history:    p.History,
		spec:       p.Cron,
		timeframe:  p.Timeframe,
		runOnStart: p.RunOnStart,
		jobs:       make(map[string]*SweepJob),
	}, nil
}

// Start 注册定时任务并启动调度；spec 为空时只支持手动触发。
// ctx 取消后后台扫描随之终止，但需调用 Stop 停掉调度器。
func (s *Screener) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	if s.spec != "" {
		c := cron.New(cron.WithSeconds())
		if _, err := c.AddFunc(s.spec, func() {
			if _, err := s.Sweep(ctx, "cron"); err != nil {
				logger.Errorf("[screener] 定时扫描失败: %v", err)
			}
		}); err != nil {
			return fmt.Errorf("注册定时扫描失败: %w", err)
		}
		s.cron = c
		c.Start()
		logger.Infof("[screener] 定时扫描已启动: %q provider=%s timeframe=%s",
			s.spec, s.provider.Name(), s.timeframe)
	}

	if s.runOnStart {
		go func() {
			if _, err := s.Sweep(ctx, "startup"); err != nil {
				logger.Errorf("[screener] 启动扫描失败: %v", err)
			}
		}()
	}
	return nil
}

// Stop 停止调度器；正在跑的扫描由其 ctx 决定去留。
func (s *Screener) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logger.Infof("[screener] 调度器已停止")
	}
}

// Sweep 立即执行一轮扫描并返回完结后的任务快照。
func (s *Screener) Sweep(ctx context.Context, trigger string) (SweepJob, error) {
	job := s.newJob(trigger)
	return s.run(ctx, job.ID, trigger)
}

// SubmitSweep 异步触发一轮扫描，立刻返回 pending 任务；进度用
// JobSnapshot 轮询。扫描挂在 Start 传入的 ctx 上，随进程退出终止。
func (s *Screener) SubmitSweep(trigger string) SweepJob {
	job := s.newJob(trigger)
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		if _, err := s.run(ctx, job.ID, trigger); err != nil {
			logger.Errorf("[screener] 异步扫描失败: %v", err)
		}
	}()
	return job
}

func (s *Screener) run(ctx context.Context, jobID, trigger string) (SweepJob, error) {
	symbols, err := s.provider.List(ctx)
	if err != nil {
		s.failJob(jobID, fmt.Sprintf("获取扫描列表失败: %v", err))
		return s.snapshot(jobID), fmt.Errorf("获取扫描列表失败: %w", err)
	}
	s.markRunning(jobID, len(symbols))
	logger.Infof("[screener] 开始扫描 %d 个交易对 (%s, %s)", len(symbols), s.timeframe, trigger)

	results := s.svc.ScreenMultipleSymbols(ctx, symbols, s.timeframe)
	summary := confluence.Summarize(results)
	s.persist(ctx, results)

	logger.Infof("[screener] 扫描完成: %d 个, 失败 %d 个\n%s",
		summary.Total, summary.Failed, RenderReport(results, summary))
	s.finishJob(jobID, summary)
	return s.snapshot(jobID), nil
}

// persist 把每个成功结果落库：分析摘要一条，最近压力快照一条。
// 落库失败只记日志，不影响扫描结果。
func (s *Screener) persist(ctx context.Context, results []confluence.ScreenResult) {
	if s.history == nil {
		return
	}
	for _, r := range results {
		if r.Error != "" {
			continue
		}
		a := r.Analysis
		if _, err := s.history.SaveAnalysis(ctx, store.AnalysisRecord{
			Symbol:         a.Symbol,
			Timeframe:      a.Timeframe,
			OverallScore:   a.OverallScore,
			Signal:         string(a.Signal),
			Confluence:     string(a.Confluence),
			LayersPassed:   a.LayersPassed,
			RiskLevel:      string(a.RiskLevel),
			Recommendation: a.Recommendation,
			Timestamp:      a.Timestamp,
		}); err != nil {
			logger.Warnf("[screener] %s 分析摘要落库失败: %v", r.Symbol, err)
		}
		s.persistPressure(ctx, a.Symbol, a.Timeframe)
	}
}

func (s *Screener) persistPressure(ctx context.Context, symbol, timeframe string) {
	if s.analyzer == nil {
		return
	}
	hist := s.analyzer.PressureHistory(symbol, timeframe)
	if len(hist) == 0 {
		return
	}
	p := hist[len(hist)-1]
	if err := s.history.SavePressurePoint(ctx, store.PressureRecord{
		Symbol:            symbol,
		Timeframe:         timeframe,
		BuyPressure:       p.BuyPressure,
		SellPressure:      p.SellPressure,
		Price:             p.Price,
		Volume:            p.Volume,
		ManipulationLevel: p.ManipulationLevel,
		AbsorptionPrice:   p.AbsorptionPrice,
		Timestamp:         p.Timestamp,
	}); err != nil {
		logger.Warnf("[screener] %s 压力快照落库失败: %v", symbol, err)
	}
}

// JobSnapshot 返回单个任务的副本。
func (s *Screener) JobSnapshot(id string) (SweepJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return SweepJob{}, false
	}
	return j.copy(), true
}

// JobsSnapshot 返回全部在存任务的副本，新任务在前。
func (s *Screener) JobsSnapshot() []SweepJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SweepJob, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if j, ok := s.jobs[s.order[i]]; ok {
			out = append(out, j.copy())
		}
	}
	return out
}

func (s *Screener) newJob(trigger string) SweepJob {
	now := time.Now()
	j := &SweepJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Trigger:   trigger,
		Timeframe: s.timeframe,
		StartedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
	if len(s.order) > maxJobHistory {
		delete(s.jobs, s.order[0])
		s.order = s.order[1:]
	}
	return j.copy()
}

func (s *Screener) markRunning(id string, symbols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = JobStatusRunning
		j.Symbols = symbols
		j.UpdatedAt = time.Now()
	}
}

func (s *Screener) finishJob(id string, summary confluence.ScreenSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = JobStatusDone
		j.Summary = summary
		j.UpdatedAt = time.Now()
	}
}

func (s *Screener) failJob(id, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = JobStatusFailed
		j.Message = msg
		j.UpdatedAt = time.Now()
	}
}

func (s *Screener) snapshot(id string) SweepJob {
	j, _ := s.JobSnapshot(id)
	return j
}
