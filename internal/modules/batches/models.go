package batches

import (
	"fmt"
	"strings"
	"time"
)

// Batch is one production run of a composition. The production date is not
// stored separately; it is encoded in the batch number.
type Batch struct {
	ID      int    `json:"id"`
	Comp    string `json:"comp"`
	BatchNo string `json:"batch_no"`
}

// ProductionDate derives the batch's production date from its number.
// Batch numbers are eight characters, YYMMDD plus a two-digit sequence;
// the century prefix "20" is implied. Returns an error for malformed
// numbers and for placeholder entries like "Do not use".
func (b Batch) ProductionDate() (time.Time, error) {
	no := strings.TrimSpace(b.BatchNo)
	if len(no) != 8 {
		return time.Time{}, fmt.Errorf("batch number %q is not 8 characters", b.BatchNo)
	}
	date, err := time.Parse("20060102", "20"+no[:6])
	if err != nil {
		return time.Time{}, fmt.Errorf("batch number %q has no valid date prefix: %w", b.BatchNo, err)
	}
	return date, nil
}

// DailySeries is a zero-filled per-day batch count for one comp.
// Counts[i] is the number of batches produced on Start plus i days.
type DailySeries struct {
	Comp   string    `json:"comp"`
	Start  time.Time `json:"start"`
	Counts []int     `json:"counts"`
}

// Date returns the date for index i of the series
func (s DailySeries) Date(i int) time.Time {
	return s.Start.AddDate(0, 0, i)
}

// DailyMatrix is the comp-by-date batch production matrix. It is the input
// for every rolling-week aggregation and is snapshotted to the cache
// database so reporting does not re-derive it per request.
type DailyMatrix struct {
	Start  string           `json:"start" msgpack:"start"` // YYYY-MM-DD
	Days   int              `json:"days" msgpack:"days"`
	Comps  []string         `json:"comps" msgpack:"comps"`
	Counts map[string][]int `json:"counts" msgpack:"counts"`
}

// StartDate parses the matrix start date
func (m *DailyMatrix) StartDate() (time.Time, error) {
	return time.Parse("2006-01-02", m.Start)
}

// WeeklyWindow is the batch count per comp over one rolling window.
type WeeklyWindow struct {
	Start  time.Time      `json:"start"`
	End    time.Time      `json:"end"`
	Counts map[string]int `json:"counts"`
}
