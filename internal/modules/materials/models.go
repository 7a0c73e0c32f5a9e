package materials

import (
	"time"

	"github.com/shopspring/decimal"
)

// Composition is one product recipe identifier with its lot counts from the
// preweigh time study. Lot counts are absent for comps that were not studied.
type Composition struct {
	Comp      string `json:"comp"`
	MajorLots *int   `json:"major_lots,omitempty"`
	MinorLots *int   `json:"minor_lots,omitempty"`
}

// BOMLine is one raw material line of a composition recipe. Pounds are exact
// decimal quantities from the batch sheets.
type BOMLine struct {
	Comp      string          `json:"comp"`
	StockCode string          `json:"stock_code"`
	Material  string          `json:"material"`
	Lbs       decimal.Decimal `json:"lbs"`
}

// UsageWindow is the pounds of one stockcode consumed in one rolling window.
type UsageWindow struct {
	Start  time.Time       `json:"start"`
	End    time.Time       `json:"end"`
	Pounds decimal.Decimal `json:"pounds"`
}

// StockcodeUsage is the windowed consumption series for one stockcode.
type StockcodeUsage struct {
	StockCode string        `json:"stock_code"`
	Material  string        `json:"material"`
	Windows   []UsageWindow `json:"windows"`
}

// UsageStats summarizes a stockcode's windowed consumption series.
type UsageStats struct {
	StockCode string    `json:"stock_code"`
	Material  string    `json:"material"`
	Median    float64   `json:"median"`
	Mean      float64   `json:"mean"`
	Max       float64   `json:"max"`
	Trend     []float64 `json:"trend"`
}
