package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyTradeImpactDirection(t *testing.T) {
	price := int64(1000)
	assert.Greater(t, applyTradeImpact(price, 10, true), price)
	assert.Less(t, applyTradeImpact(price, 10, false), price)
}

func TestApplyTradeImpactIsCapped(t *testing.T) {
	price := int64(1000)
	small := applyTradeImpact(price, 25, true) // exactly at the cap
	huge := applyTradeImpact(price, 1_000_000, true)
	assert.Equal(t, small, huge)
}

func TestEvolvePriceBounds(t *testing.T) {
	assert.Equal(t, minSharePrice, evolvePrice(0, 0.1))
	assert.Equal(t, minSharePrice, evolvePrice(-5, 0.1))
	assert.Equal(t, minSharePrice, evolvePrice(minSharePrice, -1.0))
	assert.Equal(t, maxSharePrice, evolvePrice(maxSharePrice, 0.5))

	// Downside moves are clamped to the max single-move drop.
	floor := evolvePrice(10_000, -maxDropPerMove)
	assert.Equal(t, floor, evolvePrice(10_000, -10.0))
	assert.Greater(t, floor, minSharePrice)
}
