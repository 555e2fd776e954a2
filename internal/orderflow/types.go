// Package orderflow 实现订单流微结构分析：成交量增量、背离、吸筹/派发与操纵识别。
package orderflow

// VolumeDeltaBar 按 K 线聚合的主动买卖量切片。
// 不变式：NetVolume = BuyVolume - SellVolume；
// CumulativeDelta 在同一 (symbol, timeframe) 上跨调用连续累加。
type VolumeDeltaBar struct {
	Timestamp       int64   `json:"timestamp"`
	Price           float64 `json:"price"`
	BuyVolume       float64 `json:"buy_volume"`
	SellVolume      float64 `json:"sell_volume"`
	NetVolume       float64 `json:"net_volume"`
	TotalVolume     float64 `json:"total_volume"`
	CumulativeDelta float64 `json:"cumulative_delta"`
	AggressionRatio float64 `json:"aggression_ratio"`
	IsAbsorption    bool    `json:"is_absorption"`
	IsDistribution  bool    `json:"is_distribution"`
}

// SwingKind 区分摆动高点与低点。
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint 表示序列中的局部极值点。
type SwingPoint struct {
	Index     int       `json:"index"`
	Timestamp int64     `json:"timestamp"`
	Value     float64   `json:"value"`
	Kind      SwingKind `json:"kind"`
}

// DivergenceType 标记背离方向。
type DivergenceType string

const (
	DivergenceBullish DivergenceType = "bullish"
	DivergenceBearish DivergenceType = "bearish"
)

// Divergence 表示价格摆动与 CVD 摆动方向相反的一段区间。
type Divergence struct {
	Type           DivergenceType `json:"type"`
	StartTime      int64          `json:"start_time"`
	EndTime        int64          `json:"end_time"`
	PriceDirection string         `json:"price_direction"`
	CVDDirection   string         `json:"cvd_direction"`
	Significance   float64        `json:"significance"`
	Confirmed      bool           `json:"confirmed"`
}

// DivergenceSet 按新鲜度分桶：4 小时内为 active，24 小时内为 recent，更旧的丢弃。
type DivergenceSet struct {
	Active []Divergence `json:"active"`
	Recent []Divergence `json:"recent"`
}

// AbsorptionType 标记吸收的方向属性。
type AbsorptionType string

const (
	AbsorptionBuy    AbsorptionType = "buy_absorption"
	AbsorptionSell   AbsorptionType = "sell_absorption"
	AbsorptionTwoWay AbsorptionType = "two_way_absorption"
)

// AbsorptionStrength 表示吸收强度分级。
type AbsorptionStrength string

const (
	AbsorptionWeak          AbsorptionStrength = "weak"
	AbsorptionModerate      AbsorptionStrength = "moderate"
	AbsorptionStrong        AbsorptionStrength = "strong"
	AbsorptionInstitutional AbsorptionStrength = "institutional"
)

// AbsorptionImplication 表示吸收区间对后市的含义。
type AbsorptionImplication string

const (
	ImplicationSupport      AbsorptionImplication = "support"
	ImplicationResistance   AbsorptionImplication = "resistance"
	ImplicationReversalZone AbsorptionImplication = "reversal_zone"
	ImplicationContinuation AbsorptionImplication = "continuation"
)

// PriceRange 表示一段区间的价格上下界。
type PriceRange struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// Width 返回区间宽度。
func (r PriceRange) Width() float64 { return r.High - r.Low }

// AbsorptionPattern 表示高成交量、低价格位移的吸收窗口。
// 不变式：窗口内至少 3 根量能超过窗口均量 1.5 倍的 K 线。
type AbsorptionPattern struct {
	Type           AbsorptionType        `json:"type"`
	StartTime      int64                 `json:"start_time"`
	EndTime        int64                 `json:"end_time"`
	PriceRange     PriceRange            `json:"price_range"`
	VolumeAbsorbed float64               `json:"volume_absorbed"`
	Efficiency     float64               `json:"efficiency"`
	Strength       AbsorptionStrength    `json:"strength"`
	Implication    AbsorptionImplication `json:"implication"`
}

// FlowTrend 表示买卖量趋势定性。
type FlowTrend string

const (
	FlowAccumulation FlowTrend = "accumulation"
	FlowDistribution FlowTrend = "distribution"
	FlowNeutral      FlowTrend = "neutral"
	FlowRotation     FlowTrend = "rotation"
)

// FlowPhase 表示市场阶段。
type FlowPhase string

const (
	PhaseMarkup         FlowPhase = "markup"
	PhaseMarkdown       FlowPhase = "markdown"
	PhaseReaccumulation FlowPhase = "reaccumulation"
	PhaseRedistribution FlowPhase = "redistribution"
	PhaseRanging        FlowPhase = "ranging"
)

// FlowStrength 表示趋势强度分级。
type FlowStrength string

const (
	FlowWeak     FlowStrength = "weak"
	FlowModerate FlowStrength = "moderate"
	FlowStrong   FlowStrength = "strong"
)

// VolumeProfile 汇总窗口内的量能结构。
type VolumeProfile struct {
	TotalVolume float64 `json:"total_volume"`
	BuyVolume   float64 `json:"buy_volume"`
	SellVolume  float64 `json:"sell_volume"`
	NetFlow     float64 `json:"net_flow"`
	AvgPerBar   float64 `json:"avg_per_bar"`
}

// InstitutionalFootprint 描述窗口内的大单痕迹。
type InstitutionalFootprint struct {
	Detected  bool    `json:"detected"`
	LargeBars int     `json:"large_bars"`
	Share     float64 `json:"share"`
}

// FlowAnalysis 是 50 根窗口上的吸筹/派发定性结果，每次调用重新推导。
type FlowAnalysis struct {
	Trend                  FlowTrend              `json:"trend"`
	Phase                  FlowPhase              `json:"phase"`
	Strength               FlowStrength           `json:"strength"`
	CVDChange              float64                `json:"cvd_change"`
	PriceChange            float64                `json:"price_change"`
	VolumeProfile          VolumeProfile          `json:"volume_profile"`
	InstitutionalFootprint InstitutionalFootprint `json:"institutional_footprint"`
}

// AccumulationSignal 表示吸筹确认信号及其证据。
type AccumulationSignal struct {
	Detected    bool    `json:"detected"`
	BuyRatio    float64 `json:"buy_ratio"`
	ClusterBars int     `json:"cluster_bars"`
	SpanMinutes float64 `json:"span_minutes"`
	Consistency float64 `json:"consistency"`
}

// DistributionSignal 表示派发确认信号及其证据。
type DistributionSignal struct {
	Detected      bool    `json:"detected"`
	SellDominance float64 `json:"sell_dominance"`
	Exhaustion    bool    `json:"exhaustion"`
	StrongExits   int     `json:"strong_exits"`
}

// ManipulationType 枚举操纵模式。
type ManipulationType string

const (
	ManipLiquidityGrab  ManipulationType = "liquidity_grab"
	ManipStopHunt       ManipulationType = "stop_hunt"
	ManipWashTrading    ManipulationType = "wash_trading"
	ManipInstAbsorption ManipulationType = "institutional_absorption"
	ManipFalseBreakout  ManipulationType = "false_breakout"
)

// RiskLevel 表示操纵风险分级。
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PriceTarget 表示操纵模式推导出的价格目标。
type PriceTarget struct {
	Type  ManipulationType `json:"type"`
	Price float64          `json:"price"`
	Side  string           `json:"side"`
}

// ExpectedMove 表示操纵后的预期波动。
type ExpectedMove struct {
	Direction string  `json:"direction"`
	Magnitude float64 `json:"magnitude"`
	Timeframe string  `json:"timeframe"`
}

// ManipulationSignal 聚合 20 根窗口上的操纵启发式结果。
type ManipulationSignal struct {
	Detected     bool               `json:"detected"`
	Patterns     []ManipulationType `json:"patterns"`
	RiskLevel    RiskLevel          `json:"risk_level"`
	Confidence   float64            `json:"confidence"`
	PriceTargets []PriceTarget      `json:"price_targets"`
	ExpectedMove ExpectedMove       `json:"expected_move"`
}

// SmartMoneySignals 聚合吸筹、派发与操纵三类信号。
type SmartMoneySignals struct {
	Accumulation AccumulationSignal `json:"accumulation"`
	Distribution DistributionSignal `json:"distribution"`
	Manipulation ManipulationSignal `json:"manipulation"`
}

// PressureHistoryPoint 是每次分析调用追加的一条压力记录。
type PressureHistoryPoint struct {
	Timestamp         int64    `json:"timestamp"`
	BuyPressure       float64  `json:"buy_pressure"`
	SellPressure      float64  `json:"sell_pressure"`
	Price             float64  `json:"price"`
	Volume            float64  `json:"volume"`
	ManipulationLevel *float64 `json:"manipulation_level,omitempty"`
	AbsorptionPrice   *float64 `json:"absorption_price,omitempty"`
}

// PressureTrend 是压力历史的读取侧分析结果。
type PressureTrend struct {
	Delta              float64                `json:"delta"`
	Direction          string                 `json:"direction"`
	Points             int                    `json:"points"`
	ManipulationEvents []PressureHistoryPoint `json:"manipulation_events,omitempty"`
	AbsorptionLevels   []float64              `json:"absorption_levels,omitempty"`
}

// CVDSnapshot 是订单流状态的一览式汇总。
type CVDSnapshot struct {
	Value      float64 `json:"value"`
	Momentum   float64 `json:"momentum"`
	Normalized float64 `json:"normalized"`
	Divergence string  `json:"divergence"`
	PeakFlip   string  `json:"peak_flip"`
}

// CVDAnalysis 是一次 (symbol, timeframe) 分析的完整结果。
type CVDAnalysis struct {
	Symbol      string              `json:"symbol"`
	Timeframe   string              `json:"timeframe"`
	Bars        []VolumeDeltaBar    `json:"bars"`
	Divergences DivergenceSet       `json:"divergences"`
	Absorption  []AbsorptionPattern `json:"absorption"`
	Flow        FlowAnalysis        `json:"flow"`
	SmartMoney  SmartMoneySignals   `json:"smart_money"`
	Pressure    PressureTrend       `json:"pressure"`
	Snapshot    CVDSnapshot         `json:"snapshot"`
	Timestamp   int64               `json:"timestamp"`
}
