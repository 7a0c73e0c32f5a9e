package formulas

import (
	"github.com/markcheno/go-talib"
)

// SmoothedTrend returns a simple moving average of the series with the given
// window. Series shorter than the window are returned unchanged, since there
// is nothing meaningful to smooth.
func SmoothedTrend(series []float64, window int) []float64 {
	if window < 2 || len(series) < window {
		out := make([]float64, len(series))
		copy(out, series)
		return out
	}
	return talib.Sma(series, window)
}
