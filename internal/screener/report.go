package screener

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"riptide/internal/confluence"
)

// RenderReport 渲染一轮扫描的排名表格，分数高在前，失败的排在最后。
func RenderReport(results []confluence.ScreenResult, summary confluence.ScreenSummary) string {
	ranked := make([]confluence.ScreenResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		if (ranked[i].Error == "") != (ranked[j].Error == "") {
			return ranked[i].Error == ""
		}
		return ranked[i].Analysis.OverallScore > ranked[j].Analysis.OverallScore
	})

	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.Style().Format.Footer = text.FormatDefault
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	w.AppendHeader(table.Row{"#", "Symbol", "Score", "Signal", "Confluence", "Layers", "Risk", "Note"})
	for i, r := range ranked {
		note := r.Analysis.Recommendation
		if r.Error != "" {
			note = r.Error
		}
		w.AppendRow(table.Row{
			i + 1,
			r.Symbol,
			fmt.Sprintf("%.1f", r.Analysis.OverallScore),
			r.Analysis.Signal,
			r.Analysis.Confluence,
			fmt.Sprintf("%d/%d", r.Analysis.LayersPassed, len(r.Analysis.Layers)),
			r.Analysis.RiskLevel,
			note,
		})
	}
	w.AppendFooter(table.Row{"", "TOTAL", summary.Total,
		fmt.Sprintf("B%d/S%d/H%d", summary.Buy, summary.Sell, summary.Hold),
		fmt.Sprintf("strong=%d", summary.Strong), "",
		fmt.Sprintf("failed=%d", summary.Failed), topLine(summary)})
	return w.Render()
}

func topLine(summary confluence.ScreenSummary) string {
	if summary.TopSymbol == "" {
		return ""
	}
	return fmt.Sprintf("top %s@%.1f", summary.TopSymbol, summary.TopScore)
}
