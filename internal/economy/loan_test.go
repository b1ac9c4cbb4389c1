package economy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBorrowRejectsBadAmounts(t *testing.T) {
	// Amount validation runs before any ledger access.
	s := &Service{}
	now := time.Now()

	_, err := s.Borrow(context.Background(), "u1", 0, now)
	require.ErrorIs(t, err, ErrValidation)

	_, err = s.Borrow(context.Background(), "u1", -5, now)
	require.ErrorIs(t, err, ErrValidation)

	_, err = s.Borrow(context.Background(), "u1", MaxLoanAmount+1, now)
	require.ErrorIs(t, err, ErrValidation)
}

func TestHedgeAfterLiquidation(t *testing.T) {
	assert.Equal(t, int64(0), hedgeAfterLiquidation(50, 50))
	assert.Equal(t, int64(150), hedgeAfterLiquidation(200, 50))
	assert.Equal(t, int64(0), hedgeAfterLiquidation(50, 80))

	// Folding a liquidation plan back never leaves a negative balance.
	settled := int64(50)
	p := PlanLiquidation(500, 200, 2, 100, settled)
	assert.Equal(t, int64(0), hedgeAfterLiquidation(settled, p.HedgeUsed))
}
