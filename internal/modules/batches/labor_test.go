package batches

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProdTime(t *testing.T) {
	current := CurrentLaborParams()

	t.Run("zero batches costs nothing", func(t *testing.T) {
		majors, minors, err := ProdTime(0, "3077", current)
		require.NoError(t, err)
		assert.Zero(t, majors)
		assert.Zero(t, minors)
	})

	t.Run("single 3077 batch under current procedure", func(t *testing.T) {
		majors, minors, err := ProdTime(1, "3077", current)
		require.NoError(t, err)

		// 2 major lots: find 2*7.5 + pull/return 2*5.5 + weigh 5*1*2 = 36 min
		assert.InDelta(t, 36.0/60, majors, 1e-9)
		// 4 minor lots: weigh 5*1*4 = 20 min
		assert.InDelta(t, 20.0/60, minors, 1e-9)
	})

	t.Run("weighing scales with batch count, handling does not", func(t *testing.T) {
		oneMajors, _, err := ProdTime(1, "1968", current)
		require.NoError(t, err)
		threeMajors, _, err := ProdTime(3, "1968", current)
		require.NoError(t, err)

		// 9 major lots weigh at 5 min/batch each: +2 batches adds 90 min
		assert.InDelta(t, 90.0/60, threeMajors-oneMajors, 1e-9)
	})

	t.Run("proposed procedure removes the find step", func(t *testing.T) {
		currMajors, currMinors, err := ProdTime(2, "3001", current)
		require.NoError(t, err)
		propMajors, propMinors, err := ProdTime(2, "3001", ProposedLaborParams())
		require.NoError(t, err)

		assert.Less(t, propMajors, currMajors)
		assert.Equal(t, currMinors, propMinors)
	})

	t.Run("unstudied comp has no labor profile", func(t *testing.T) {
		_, _, err := ProdTime(1, "2004", current)
		assert.Error(t, err)
	})
}

func TestBatchProductionDate(t *testing.T) {
	t.Run("derives date from batch number", func(t *testing.T) {
		b := Batch{Comp: "3077", BatchNo: "19041502"}
		date, err := b.ProductionDate()
		require.NoError(t, err)
		assert.Equal(t, time.Date(2019, 4, 15, 0, 0, 0, 0, time.UTC), date)
	})

	t.Run("placeholder entries are rejected", func(t *testing.T) {
		b := Batch{Comp: "3077", BatchNo: "Do not use"}
		_, err := b.ProductionDate()
		assert.Error(t, err)
	})

	t.Run("non-date prefix is rejected", func(t *testing.T) {
		b := Batch{Comp: "3077", BatchNo: "19139901"}
		_, err := b.ProductionDate()
		assert.Error(t, err)
	})
}
