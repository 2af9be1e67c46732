package store

import (
	"testing"
	"time"

	"bookstore-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func lot(id int64, qty int, cost int64, daysAgo int) models.InventoryLot {
	return models.InventoryLot{
		ID:                id,
		BookID:            1,
		QuantityRemaining: qty,
		UnitCost:          cost,
		EntryDate:         time.Now().AddDate(0, 0, -daysAgo),
	}
}

func TestPlanConsumptionSingleLot(t *testing.T) {
	lots := []models.InventoryLot{lot(1, 10, 500, 3)}

	plan, err := PlanConsumption(lots, 4)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, int64(1), plan[0].LotID)
	assert.Equal(t, 4, plan[0].Quantity)
	assert.Equal(t, int64(500), plan[0].UnitCost)
}

func TestPlanConsumptionDrainsOldestFirst(t *testing.T) {
	// Lots arrive pre-sorted by ascending entry date
	lots := []models.InventoryLot{
		lot(1, 3, 500, 10),
		lot(2, 5, 700, 5),
		lot(3, 8, 600, 1),
	}

	plan, err := PlanConsumption(lots, 9)
	require.NoError(t, err)
	require.Len(t, plan, 3)

	// First two lots fully drained, third split
	assert.Equal(t, LotConsumption{LotID: 1, Quantity: 3, UnitCost: 500}, plan[0])
	assert.Equal(t, LotConsumption{LotID: 2, Quantity: 5, UnitCost: 700}, plan[1])
	assert.Equal(t, LotConsumption{LotID: 3, Quantity: 1, UnitCost: 600}, plan[2])
}

func TestPlanConsumptionSkipsEmptyLots(t *testing.T) {
	lots := []models.InventoryLot{
		lot(1, 0, 500, 10),
		lot(2, 6, 700, 5),
	}

	plan, err := PlanConsumption(lots, 6)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, int64(2), plan[0].LotID)
}

func TestPlanConsumptionExactAvailability(t *testing.T) {
	lots := []models.InventoryLot{
		lot(1, 2, 500, 2),
		lot(2, 3, 600, 1),
	}

	plan, err := PlanConsumption(lots, 5)
	require.NoError(t, err)

	total := 0
	for _, c := range plan {
		total += c.Quantity
	}
	assert.Equal(t, 5, total)
}

func TestPlanConsumptionInsufficientStock(t *testing.T) {
	lots := []models.InventoryLot{lot(1, 2, 500, 1)}

	_, err := PlanConsumption(lots, 3)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)
}

func TestPlanConsumptionNoLots(t *testing.T) {
	_, err := PlanConsumption(nil, 1)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)
}

func TestPlanConsumptionInvalidQuantity(t *testing.T) {
	lots := []models.InventoryLot{lot(1, 10, 500, 1)}

	_, err := PlanConsumption(lots, 0)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)

	_, err = PlanConsumption(lots, -2)
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)
}

func TestPlanConsumptionProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "lots")
		lots := make([]models.InventoryLot, n)
		available := 0
		for i := range lots {
			qty := rapid.IntRange(0, 20).Draw(t, "qty")
			lots[i] = lot(int64(i+1), qty, int64(rapid.IntRange(100, 9999).Draw(t, "cost")), n-i)
			available += qty
		}
		requested := rapid.IntRange(1, 30).Draw(t, "requested")

		plan, err := PlanConsumption(lots, requested)
		if available < requested {
			assert.ErrorIs(t, err, models.ErrInsufficientStock)
			return
		}
		require.NoError(t, err)

		// Plan covers exactly the requested quantity
		total := 0
		for _, c := range plan {
			total += c.Quantity
		}
		assert.Equal(t, requested, total)

		// Never takes more than a lot holds, and only drains in order:
		// every lot before the last consumed one is fully drained.
		byID := make(map[int64]models.InventoryLot)
		for _, l := range lots {
			byID[l.ID] = l
		}
		for i, c := range plan {
			assert.LessOrEqual(t, c.Quantity, byID[c.LotID].QuantityRemaining)
			if i < len(plan)-1 {
				assert.Equal(t, byID[c.LotID].QuantityRemaining, c.Quantity)
			}
		}
	})
}
