package service

import (
	"testing"

	"bookstore-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCartTotal(t *testing.T) {
	items := []models.CartItem{
		{BookID: 1, Quantity: 2},
		{BookID: 2, Quantity: 1},
		{BookID: 3, Quantity: 3},
	}
	prices := map[int64]int64{1: 2500, 2: 4000, 3: 1000}

	assert.Equal(t, int64(2*2500+4000+3*1000), CartTotal(items, prices))
}

func TestCartTotalEmpty(t *testing.T) {
	assert.Zero(t, CartTotal(nil, nil))
	assert.Zero(t, CartTotal([]models.CartItem{}, map[int64]int64{1: 100}))
}

func TestCartTotalMissingPrice(t *testing.T) {
	// A book absent from the price map contributes zero rather than
	// corrupting the sum
	items := []models.CartItem{
		{BookID: 1, Quantity: 2},
		{BookID: 99, Quantity: 5},
	}
	prices := map[int64]int64{1: 1500}

	assert.Equal(t, int64(3000), CartTotal(items, prices))
}
