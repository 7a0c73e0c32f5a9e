package batches

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantfloor/lottrack/internal/events"
)

// CompLister supplies the comps tracked by the plant.
// Satisfied by the materials composition repository.
type CompLister interface {
	ListComps() ([]string, error)
}

// Service builds production count series and the labor analysis from batch
// records. The daily matrix is cached in the snapshot repository; rolling
// aggregations read the snapshot rather than re-deriving it.
type Service struct {
	repo      *BatchRepository
	snapshots *SnapshotRepository
	comps     CompLister
	events    *events.Manager
	log       zerolog.Logger
}

// NewService creates a new batch production service
func NewService(
	repo *BatchRepository,
	snapshots *SnapshotRepository,
	comps CompLister,
	eventManager *events.Manager,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		snapshots: snapshots,
		comps:     comps,
		events:    eventManager,
		log:       log.With().Str("service", "batches").Logger(),
	}
}

// MadeByDate returns a zero-filled daily series of batches produced for a
// comp between start and end inclusive. Batches with malformed numbers are
// skipped; they are placeholders, not production.
func (s *Service) MadeByDate(comp string, start, end time.Time) (DailySeries, error) {
	if end.Before(start) {
		return DailySeries{}, fmt.Errorf("end date %s before start date %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	all, err := s.repo.GetByComp(comp)
	if err != nil {
		return DailySeries{}, err
	}

	days := daysInclusive(start, end)
	series := DailySeries{
		Comp:   comp,
		Start:  start,
		Counts: make([]int, days),
	}

	for _, b := range all {
		date, err := b.ProductionDate()
		if err != nil {
			continue
		}
		if date.Before(start) || date.After(end) {
			continue
		}
		idx := daysInclusive(start, date) - 1
		series.Counts[idx]++
	}

	return series, nil
}

// BuildDailyMatrix derives the comp-by-date production matrix for the range
func (s *Service) BuildDailyMatrix(start, end time.Time) (*DailyMatrix, error) {
	comps, err := s.comps.ListComps()
	if err != nil {
		return nil, fmt.Errorf("failed to list comps: %w", err)
	}

	matrix := &DailyMatrix{
		Start:  start.Format("2006-01-02"),
		Days:   daysInclusive(start, end),
		Comps:  comps,
		Counts: make(map[string][]int, len(comps)),
	}

	for _, comp := range comps {
		series, err := s.MadeByDate(comp, start, end)
		if err != nil {
			return nil, err
		}
		matrix.Counts[comp] = series.Counts
	}

	return matrix, nil
}

// RebuildSnapshot rebuilds and persists the daily matrix snapshot
func (s *Service) RebuildSnapshot(start, end time.Time) error {
	matrix, err := s.BuildDailyMatrix(start, end)
	if err != nil {
		return fmt.Errorf("failed to build daily matrix: %w", err)
	}

	if err := s.snapshots.SaveDailyMatrix(matrix); err != nil {
		return err
	}

	s.events.Emit(events.SnapshotRebuilt, "batches", map[string]interface{}{
		"start": matrix.Start,
		"days":  matrix.Days,
	})

	return nil
}

// ByRollingWeeks aggregates the snapshot matrix into rolling windows of the
// given week count. Window starts are seven days apart; each window covers
// [start, start+weeks*7) days. Windows that would run past the end of the
// matrix are dropped.
func (s *Service) ByRollingWeeks(weeks int) ([]WeeklyWindow, error) {
	if weeks < 1 {
		return nil, fmt.Errorf("weeks must be at least 1, got %d", weeks)
	}

	matrix, err := s.snapshots.LoadDailyMatrix()
	if err != nil {
		return nil, err
	}

	start, err := matrix.StartDate()
	if err != nil {
		return nil, fmt.Errorf("snapshot has invalid start date: %w", err)
	}

	windowDays := weeks * 7
	var windows []WeeklyWindow
	for offset := 0; offset+windowDays <= matrix.Days; offset += 7 {
		window := WeeklyWindow{
			Start:  start.AddDate(0, 0, offset),
			End:    start.AddDate(0, 0, offset+windowDays),
			Counts: make(map[string]int, len(matrix.Comps)),
		}
		for _, comp := range matrix.Comps {
			counts := matrix.Counts[comp]
			total := 0
			for day := offset; day < offset+windowDays; day++ {
				total += counts[day]
			}
			window.Counts[comp] = total
		}
		windows = append(windows, window)
	}

	return windows, nil
}

// LaborByDay computes the daily labor requirement over the last `days` days
// of the snapshot, for the time-studied comps, under both the current and
// the proposed preweigh procedure.
func (s *Service) LaborByDay(days int) (*LaborAnalysis, error) {
	if days < 1 {
		return nil, fmt.Errorf("days must be at least 1, got %d", days)
	}

	matrix, err := s.snapshots.LoadDailyMatrix()
	if err != nil {
		return nil, err
	}

	start, err := matrix.StartDate()
	if err != nil {
		return nil, fmt.Errorf("snapshot has invalid start date: %w", err)
	}

	if days > matrix.Days {
		days = matrix.Days
	}
	firstDay := matrix.Days - days

	analysis := &LaborAnalysis{
		Current:  make([]DailyLabor, 0, days),
		Proposed: make([]DailyLabor, 0, days),
	}

	current := CurrentLaborParams()
	proposed := ProposedLaborParams()

	for day := firstDay; day < matrix.Days; day++ {
		date := start.AddDate(0, 0, day).Format("2006-01-02")

		currentDay, err := s.laborForDay(matrix, day, date, current)
		if err != nil {
			return nil, err
		}
		proposedDay, err := s.laborForDay(matrix, day, date, proposed)
		if err != nil {
			return nil, err
		}

		analysis.Current = append(analysis.Current, currentDay)
		analysis.Proposed = append(analysis.Proposed, proposedDay)
	}

	return analysis, nil
}

func (s *Service) laborForDay(matrix *DailyMatrix, day int, date string, params LaborParams) (DailyLabor, error) {
	result := DailyLabor{Date: date}

	for _, comp := range LaborComps() {
		counts, ok := matrix.Counts[comp]
		if !ok {
			continue
		}
		majors, minors, err := ProdTime(counts[day], comp, params)
		if err != nil {
			return DailyLabor{}, err
		}
		result.MajorsHours += majors
		result.MinorsHours += minors
	}

	result.TotalHours = result.MajorsHours + result.MinorsHours
	return result, nil
}

// daysInclusive counts days from start to end including both endpoints
func daysInclusive(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours()/24) + 1
}
