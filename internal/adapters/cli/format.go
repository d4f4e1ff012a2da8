// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle output formatting but delegate
// business logic to services.
package cli

import (
	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	corestage "github.com/example/procure/internal/core/stage"
)

const rule = "────────────────────────────────────────────────────────────────────────"

var stageColors = map[corestage.Stage]*color.Color{
	corestage.StageDraft:         color.New(color.FgWhite),
	corestage.StageSubmitted:     color.New(color.FgCyan),
	corestage.StageApproved:      color.New(color.FgGreen),
	corestage.StageReturned:      color.New(color.FgYellow),
	corestage.StageInProcurement: color.New(color.FgBlue),
	corestage.StageCompleted:     color.New(color.FgGreen, color.Bold),
	corestage.StageCancelled:     color.New(color.FgRed),
}

// colorStage renders a stage name in its stage colour, padded to width.
func colorStage(stage string, width int) string {
	padded := stage
	for len(padded) < width {
		padded += " "
	}
	if c, ok := stageColors[corestage.Stage(stage)]; ok {
		return c.Sprint(padded)
	}
	return padded
}

// colorGap renders a budget gap: green when the request fits, red when over.
func colorGap(gap decimal.Decimal) string {
	s := gap.StringFixed(2)
	if gap.IsNegative() {
		return color.New(color.FgRed).Sprint(s)
	}
	return color.New(color.FgGreen).Sprint(s)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
