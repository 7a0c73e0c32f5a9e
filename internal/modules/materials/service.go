package materials

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/plantfloor/lottrack/internal/events"
	"github.com/plantfloor/lottrack/internal/modules/batches"
	"github.com/plantfloor/lottrack/pkg/formulas"
)

// trendWindow is the moving-average span applied to usage series.
const trendWindow = 8

// ProductionWindows supplies rolling production counts per comp.
// Satisfied by the batches service.
type ProductionWindows interface {
	ByRollingWeeks(weeks int) ([]batches.WeeklyWindow, error)
}

// Service turns production counts into raw material consumption. Pounds per
// window are BOM pounds times batches made, summed across every comp that
// uses the stockcode.
type Service struct {
	repo       *CompositionRepository
	production ProductionWindows
	events     *events.Manager
	log        zerolog.Logger
}

// NewService creates a new material usage service
func NewService(
	repo *CompositionRepository,
	production ProductionWindows,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		production: production,
		events:     eventManager,
		log:        log.With().Str("service", "materials").Logger(),
	}
}

// UseByRollingWeeks returns the pounds of one stockcode consumed in each
// rolling window of the given week count.
func (s *Service) UseByRollingWeeks(stockCode string, weeks int) (*StockcodeUsage, error) {
	lines, err := s.repo.LinesForStockcode(stockCode)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("stockcode %q appears in no composition", stockCode)
	}

	windows, err := s.production.ByRollingWeeks(weeks)
	if err != nil {
		return nil, err
	}

	usage := &StockcodeUsage{
		StockCode: stockCode,
		Material:  lines[0].Material,
		Windows:   make([]UsageWindow, 0, len(windows)),
	}

	for _, w := range windows {
		pounds := decimal.Zero
		for _, line := range lines {
			count := w.Counts[line.Comp]
			if count == 0 {
				continue
			}
			pounds = pounds.Add(line.Lbs.Mul(decimal.NewFromInt(int64(count))))
		}
		usage.Windows = append(usage.Windows, UsageWindow{
			Start:  w.Start,
			End:    w.End,
			Pounds: pounds,
		})
	}

	return usage, nil
}

// UsageStatistics summarizes windowed consumption for every stockcode in the
// recipes: median, mean and max pounds per window, plus a smoothed trend.
func (s *Service) UsageStatistics(weeks int) ([]UsageStats, error) {
	stockCodes, err := s.repo.ListStockcodes()
	if err != nil {
		return nil, err
	}

	windows, err := s.production.ByRollingWeeks(weeks)
	if err != nil {
		return nil, err
	}

	stats := make([]UsageStats, 0, len(stockCodes))
	for _, sc := range stockCodes {
		lines, err := s.repo.LinesForStockcode(sc.StockCode)
		if err != nil {
			return nil, err
		}

		series := make([]float64, len(windows))
		for i, w := range windows {
			pounds := decimal.Zero
			for _, line := range lines {
				count := w.Counts[line.Comp]
				if count == 0 {
					continue
				}
				pounds = pounds.Add(line.Lbs.Mul(decimal.NewFromInt(int64(count))))
			}
			series[i], _ = pounds.Float64()
		}

		stats = append(stats, UsageStats{
			StockCode: sc.StockCode,
			Material:  sc.Material,
			Median:    formulas.Round1(formulas.Median(series)),
			Mean:      formulas.Round1(formulas.Mean(series)),
			Max:       formulas.Round1(formulas.Max(series)),
			Trend:     formulas.SmoothedTrend(series, trendWindow),
		})
	}

	s.events.Emit(events.UsageStatsRefreshed, "materials", map[string]interface{}{
		"stockcodes": len(stats),
		"weeks":      weeks,
	})

	return stats, nil
}
