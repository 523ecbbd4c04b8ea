package threshold

import (
	"fmt"
	"io"
	"strings"
)

// PlotRatioCurveTerminal draws the posterior ratio of every grid point as a
// horizontal bar, marking the cutoff column and the selected threshold. The
// density column is the unlabelled mixture density at the grid point.
func PlotRatioCurveTerminal(w io.Writer, analysis *Analysis) {
	maxBarWidth := 50
	cutoffCol := int(analysis.Params.Cutoff * float64(maxBarWidth))

	fmt.Fprintf(w, "\nPosterior ratio f+/(f+ + f-) on [%.4f, %.4f] (cutoff %.3f):\n",
		analysis.Params.Lower, analysis.Params.Upper, analysis.Params.Cutoff)
	fmt.Fprintln(w, "   Score | Density  | Ratio    | Bar Chart")
	fmt.Fprintln(w, "---------|----------|----------|"+strings.Repeat("-", maxBarWidth+1))

	for i, pt := range analysis.Curve {
		barWidth := int(pt.Ratio * float64(maxBarWidth))

		var bar strings.Builder
		for col := 0; col <= maxBarWidth; col++ {
			switch {
			case col == cutoffCol:
				bar.WriteString("|")
			case col < barWidth:
				bar.WriteString("█")
			default:
				bar.WriteString(" ")
			}
		}

		marker := ""
		if i == analysis.CrossingIndex {
			marker = " <- threshold"
		}
		var density float64
		if analysis.Mixture != nil {
			density = analysis.Mixture.Density(pt.X)
		}
		fmt.Fprintf(w, "%8.4f | %8.4f | %.6f | %s%s\n", pt.X, density, pt.Ratio, bar.String(), marker)
	}

	fmt.Fprintf(w, "\nThreshold=%.6f (grid index %d of %d)\n", analysis.Threshold, analysis.CrossingIndex, len(analysis.Curve))
	if analysis.Mixture == nil {
		return
	}
	fmt.Fprintf(w, "Mixture components (total weight %.4f):\n", analysis.Mixture.WeightSum())
	for _, c := range analysis.Mixture.Components {
		fmt.Fprintf(w, "  weight=%.4f mean=%.4f variance=%.6f goodness=%.4f\n",
			c.Weight, c.Mean, c.Variance, analysis.Params.Ramp().Goodness(c.Mean))
	}
}
