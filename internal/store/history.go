package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"riptide/internal/market"
)

// AnalysisRecord 是一次合流分析的落库摘要，层内细节不落库。
type AnalysisRecord struct {
	ID             int64   `json:"id"`
	Symbol         string  `json:"symbol"`
	Timeframe      string  `json:"timeframe"`
	OverallScore   float64 `json:"overall_score"`
	Signal         string  `json:"signal"`
	Confluence     string  `json:"confluence"`
	LayersPassed   int     `json:"layers_passed"`
	RiskLevel      string  `json:"risk_level"`
	Recommendation string  `json:"recommendation"`
	Timestamp      int64   `json:"timestamp"`
	CreatedAt      int64   `json:"created_at"`
}

// PressureRecord 是一条落库的压力快照；操纵与吸收字段可空。
type PressureRecord struct {
	ID                int64    `json:"id"`
	Symbol            string   `json:"symbol"`
	Timeframe         string   `json:"timeframe"`
	BuyPressure       float64  `json:"buy_pressure"`
	SellPressure      float64  `json:"sell_pressure"`
	Price             float64  `json:"price"`
	Volume            float64  `json:"volume"`
	ManipulationLevel *float64 `json:"manipulation_level,omitempty"`
	AbsorptionPrice   *float64 `json:"absorption_price,omitempty"`
	Timestamp         int64    `json:"timestamp"`
}

// HistoryStore 以 sqlite 持久化分析摘要与压力快照。
type HistoryStore struct {
	db *sql.DB
}

// OpenHistory 打开（必要时创建）sqlite 库，启用 WAL 并执行幂等迁移。
func OpenHistory(path string) (*HistoryStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite 路径不能为空")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开 sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("启用 WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 busy_timeout: %w", err)
	}
	s := &HistoryStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("迁移: %w", err)
	}
	return s, nil
}

// SaveAnalysis 追加一条分析摘要，返回记录 ID。
func (s *HistoryStore) SaveAnalysis(ctx context.Context, rec AnalysisRecord) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("history store 未初始化")
	}
	sym := strings.ToUpper(strings.TrimSpace(rec.Symbol))
	if sym == "" {
		return 0, fmt.Errorf("symbol 不能为空")
	}
	created := rec.CreatedAt
	if created == 0 {
		created = time.Now().UnixMilli()
	}
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO analyses
            (symbol, timeframe, overall_score, signal, confluence, layers_passed,
             risk_level, recommendation, timestamp, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym, market.NormalizeInterval(rec.Timeframe), rec.OverallScore, rec.Signal,
		rec.Confluence, rec.LayersPassed, rec.RiskLevel, rec.Recommendation,
		rec.Timestamp, created)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentAnalyses 返回某 symbol 最近 limit 条分析摘要（新在前）。
func (s *HistoryStore) RecentAnalyses(ctx context.Context, symbol string, limit int) ([]AnalysisRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history store 未初始化")
	}
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return nil, fmt.Errorf("symbol 不能为空")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, symbol, timeframe, overall_score, signal, confluence, layers_passed,
               risk_level, recommendation, timestamp, created_at
        FROM analyses
        WHERE symbol=?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?`, sym, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Timeframe, &rec.OverallScore,
			&rec.Signal, &rec.Confluence, &rec.LayersPassed, &rec.RiskLevel,
			&rec.Recommendation, &rec.Timestamp, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SavePressurePoint 追加一条压力快照。
func (s *HistoryStore) SavePressurePoint(ctx context.Context, rec PressureRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history store 未初始化")
	}
	sym := strings.ToUpper(strings.TrimSpace(rec.Symbol))
	if sym == "" {
		return fmt.Errorf("symbol 不能为空")
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO pressure_points
            (symbol, timeframe, buy_pressure, sell_pressure, price, volume,
             manipulation_level, absorption_price, timestamp)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym, market.NormalizeInterval(rec.Timeframe), rec.BuyPressure, rec.SellPressure,
		rec.Price, rec.Volume, nullableFloat(rec.ManipulationLevel),
		nullableFloat(rec.AbsorptionPrice), rec.Timestamp)
	return err
}

// RecentPressure 返回某 symbol+timeframe 最近 limit 条压力快照（时间升序）。
func (s *HistoryStore) RecentPressure(ctx context.Context, symbol, timeframe string, limit int) ([]PressureRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history store 未初始化")
	}
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return nil, fmt.Errorf("symbol 不能为空")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, symbol, timeframe, buy_pressure, sell_pressure, price, volume,
               manipulation_level, absorption_price, timestamp
        FROM pressure_points
        WHERE symbol=? AND timeframe=?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?`, sym, market.NormalizeInterval(timeframe), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PressureRecord
	for rows.Next() {
		var (
			rec   PressureRecord
			manip sql.NullFloat64
			absrb sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Timeframe, &rec.BuyPressure,
			&rec.SellPressure, &rec.Price, &rec.Volume, &manip, &absrb, &rec.Timestamp); err != nil {
			return nil, err
		}
		if manip.Valid {
			rec.ManipulationLevel = &manip.Float64
		}
		if absrb.Valid {
			rec.AbsorptionPrice = &absrb.Float64
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// 查询按新在前取窗口，返回前翻转为时间升序供图表消费。
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close 关闭底层连接。
func (s *HistoryStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
