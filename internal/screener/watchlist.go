// Package screener 周期性地对观察列表跑合流筛选并落库摘要。
package screener

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"riptide/internal/config"
)

// SymbolProvider 提供一次扫描的目标列表。
type SymbolProvider interface {
	List(ctx context.Context) ([]string, error)
	Name() string
}

// NormalizeSymbols 统一大小写、补 quote 后缀并去重，保持输入顺序。
func NormalizeSymbols(symbols []string, quote string) ([]string, error) {
	if len(symbols) == 0 {
		return nil, errors.New("symbol 列表为空")
	}
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if quote == "" {
		quote = "USDT"
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if !strings.HasSuffix(s, quote) {
			s += quote
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errors.New("归一化后 symbol 列表为空")
	}
	return out, nil
}

// StaticProvider 返回配置里写死的列表。
type StaticProvider struct {
	symbols []string
	quote   string
}

func NewStaticProvider(symbols []string, quote string) *StaticProvider {
	return &StaticProvider{symbols: symbols, quote: quote}
}

func (p *StaticProvider) Name() string { return "static" }

func (p *StaticProvider) List(context.Context) ([]string, error) {
	return NormalizeSymbols(p.symbols, p.quote)
}

// FileProvider 每次扫描时重读 YAML watchlist，改文件即生效。
type FileProvider struct {
	path  string
	quote string
}

func NewFileProvider(path, quote string) *FileProvider {
	return &FileProvider{path: path, quote: quote}
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) List(context.Context) ([]string, error) {
	symbols, err := config.LoadWatchlist(p.path)
	if err != nil {
		return nil, err
	}
	return NormalizeSymbols(symbols, p.quote)
}

// VolumeRanker 按成交额排名返回交易对，gateway 的行情源实现它。
type VolumeRanker interface {
	TopVolumeSymbols(ctx context.Context, quote string, n int) ([]string, error)
}

// TopVolumeProvider 动态取 24h 成交额前 n 名作为扫描目标。
type TopVolumeProvider struct {
	ranker VolumeRanker
	quote  string
	n      int
}

func NewTopVolumeProvider(ranker VolumeRanker, quote string, n int) (*TopVolumeProvider, error) {
	if ranker == nil {
		return nil, errors.New("ranker 不能为空")
	}
	if n <= 0 {
		n = 10
	}
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if quote == "" {
		quote = "USDT"
	}
	return &TopVolumeProvider{ranker: ranker, quote: quote, n: n}, nil
}

func (p *TopVolumeProvider) Name() string { return "top-volume" }

func (p *TopVolumeProvider) List(ctx context.Context) ([]string, error) {
	symbols, err := p.ranker.TopVolumeSymbols(ctx, p.quote, p.n)
	if err != nil {
		return nil, fmt.Errorf("拉取成交额排名失败: %w", err)
	}
	return NormalizeSymbols(symbols, p.quote)
}
