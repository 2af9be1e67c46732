package service

import (
	"testing"

	"bookstore-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func soldItems() []models.SaleItem {
	return []models.SaleItem{
		{ID: 10, SaleID: 1, BookID: 100, Quantity: 2, UnitPrice: 3000},
		{ID: 11, SaleID: 1, BookID: 101, Quantity: 1, UnitPrice: 4500},
	}
}

func TestExchangeValueSingleLine(t *testing.T) {
	value, err := ExchangeValue([]ExchangeLine{{SaleItemID: 10, Quantity: 1}}, soldItems())
	require.NoError(t, err)
	assert.Equal(t, int64(3000), value)
}

func TestExchangeValueFullReturn(t *testing.T) {
	lines := []ExchangeLine{
		{SaleItemID: 10, Quantity: 2},
		{SaleItemID: 11, Quantity: 1},
	}
	value, err := ExchangeValue(lines, soldItems())
	require.NoError(t, err)
	assert.Equal(t, int64(2*3000+4500), value)
}

func TestExchangeValuePricedAtSoldPrice(t *testing.T) {
	// Value comes from the sale snapshot, not the current catalog price
	items := []models.SaleItem{{ID: 10, Quantity: 1, UnitPrice: 1234}}
	value, err := ExchangeValue([]ExchangeLine{{SaleItemID: 10, Quantity: 1}}, items)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), value)
}

func TestExchangeValueUnknownSaleItem(t *testing.T) {
	_, err := ExchangeValue([]ExchangeLine{{SaleItemID: 99, Quantity: 1}}, soldItems())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestExchangeValueOverReturn(t *testing.T) {
	_, err := ExchangeValue([]ExchangeLine{{SaleItemID: 10, Quantity: 3}}, soldItems())
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestExchangeValueRepeatedLinesCountTogether(t *testing.T) {
	lines := []ExchangeLine{
		{SaleItemID: 10, Quantity: 1},
		{SaleItemID: 10, Quantity: 2},
	}
	_, err := ExchangeValue(lines, soldItems())
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestExchangeValueInvalidQuantity(t *testing.T) {
	_, err := ExchangeValue([]ExchangeLine{{SaleItemID: 10, Quantity: 0}}, soldItems())
	assert.ErrorIs(t, err, models.ErrInvalidQuantity)
}

func TestExchangeValueNoLines(t *testing.T) {
	_, err := ExchangeValue(nil, soldItems())
	assert.ErrorIs(t, err, models.ErrValidation)
}
