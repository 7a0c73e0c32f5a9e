package batches

import (
	"fmt"
)

// LaborParams holds per-step preweigh times in minutes.
type LaborParams struct {
	FindLot    float64 `json:"find_lot"`    // locate major material lots
	PullMat    float64 `json:"pull_mat"`    // pull a major lot from stores
	WeighMat   float64 `json:"weigh_mat"`   // weigh majors for one batch
	ReturnMat  float64 `json:"return_mat"`  // return a major lot to stores
	WeighMinor float64 `json:"weigh_minor"` // weigh minors for one batch
}

// CurrentLaborParams are the measured times for today's preweigh procedure.
func CurrentLaborParams() LaborParams {
	return LaborParams{
		FindLot:    7.5,
		PullMat:    2.75,
		WeighMat:   5.0,
		ReturnMat:  2.75,
		WeighMinor: 5.0,
	}
}

// ProposedLaborParams are the times under the proposed staging procedure:
// lots are pre-staged so there is no find step and pull/return shrink.
func ProposedLaborParams() LaborParams {
	return LaborParams{
		FindLot:    0,
		PullMat:    0.5,
		WeighMat:   5.0,
		ReturnMat:  0.5,
		WeighMinor: 5.0,
	}
}

// compLots maps the time-studied comps to their (major, minor) lot counts.
var compLots = map[string][2]int{
	"3077": {2, 4},
	"3001": {4, 7},
	"1968": {9, 4},
	"3004": {4, 7},
	"1651": {4, 3},
}

// LaborComps returns the comps covered by the labor model
func LaborComps() []string {
	return []string{"3077", "3001", "3004", "1968", "1651"}
}

// ProdTime calculates the labor hours to produce numBatches of a comp,
// split into majors and minors time. Finding, pulling and returning major
// lots is a fixed per-lot cost that only applies when something is actually
// produced; weighing scales with the batch count.
func ProdTime(numBatches int, comp string, params LaborParams) (majorsHours, minorsHours float64, err error) {
	lots, ok := compLots[comp]
	if !ok {
		return 0, 0, fmt.Errorf("no labor profile for comp %s", comp)
	}

	if numBatches == 0 {
		return 0, 0, nil
	}

	majorLots := float64(lots[0])
	minorLots := float64(lots[1])
	n := float64(numBatches)

	majorsMinutes := majorLots * params.FindLot
	majorsMinutes += majorLots * (params.PullMat + params.ReturnMat)
	majorsMinutes += params.WeighMat * n * majorLots

	minorsMinutes := params.WeighMinor * n * minorLots

	return majorsMinutes / 60, minorsMinutes / 60, nil
}

// DailyLabor is the labor requirement for one production day.
type DailyLabor struct {
	Date        string  `json:"date"` // YYYY-MM-DD
	MajorsHours float64 `json:"majors_hours"`
	MinorsHours float64 `json:"minors_hours"`
	TotalHours  float64 `json:"total_hours"`
}

// LaborAnalysis compares labor hours for a production schedule under two
// procedures, day by day.
type LaborAnalysis struct {
	Current  []DailyLabor `json:"current"`
	Proposed []DailyLabor `json:"proposed"`
}
