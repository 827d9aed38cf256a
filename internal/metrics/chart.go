package metrics

import (
	"fmt"
	"io"
	"strings"
)

// Minimum chart dimensions; smaller requests are clamped.
const (
	minChartWidth  = 20
	minChartHeight = 8
)

// RenderROC draws the curve as an ASCII chart of the given plot size
// (excluding axes and title). The diagonal is drawn with '.', the curve
// with '*'.
func RenderROC(w io.Writer, c ROCCurve, width, height int) error {
	if width < minChartWidth {
		width = minChartWidth
	}
	if height < minChartHeight {
		height = minChartHeight
	}

	grid := make([][]byte, height)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(" ", width))
	}

	plot := func(x, y float64, ch byte) {
		col := int(x*float64(width-1) + 0.5)
		row := height - 1 - int(y*float64(height-1)+0.5)
		if col >= 0 && col < width && row >= 0 && row < height {
			grid[row][col] = ch
		}
	}

	for col := 0; col < width; col++ {
		x := float64(col) / float64(width-1)
		plot(x, x, '.')
	}
	for col := 0; col < width; col++ {
		x := float64(col) / float64(width-1)
		plot(x, c.tprAt(x), '*')
	}

	if _, err := fmt.Fprintf(w, "ROC curve (AUC=%.4f)\n", c.AUC()); err != nil {
		return err
	}
	for y, line := range grid {
		label := "    "
		switch y {
		case 0:
			label = "1.0 "
		case height - 1:
			label = "0.0 "
		}
		if _, err := fmt.Fprintf(w, "%s|%s\n", label, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "    +%s\n    0.0%s1.0  FPR\n", strings.Repeat("-", width), strings.Repeat(" ", width-6))
	return err
}

// tprAt interpolates the true positive rate at a false positive rate.
func (c ROCCurve) tprAt(fpr float64) float64 {
	if len(c.FPR) == 0 {
		return 0
	}
	for i := 1; i < len(c.FPR); i++ {
		if fpr <= c.FPR[i] {
			x0, x1 := c.FPR[i-1], c.FPR[i]
			y0, y1 := c.TPR[i-1], c.TPR[i]
			if x1 == x0 {
				return y1
			}
			return y0 + (y1-y0)*(fpr-x0)/(x1-x0)
		}
	}
	return c.TPR[len(c.TPR)-1]
}
