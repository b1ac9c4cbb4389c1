package economy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompoundDue(t *testing.T) {
	tests := []struct {
		principal int64
		days      int
		want      int64
	}{
		{1000, 0, 1000},
		{1000, 1, 1050},
		{1000, 2, 1102},
		{1000, 3, 1157}, // floor(1000 * 1.05^3) = floor(1157.625)
		{999, 1, 1048},
		{1_000_000, 7, 1_407_100},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, CompoundDue(tc.principal, tc.days), "principal=%d days=%d", tc.principal, tc.days)
	}
}

func TestAccrualIdempotentForFixedNow(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(3*24*time.Hour + 5*time.Hour)

	days := DaysBetween(start, now)
	require.Equal(t, 3, days)
	first := CompoundDue(1000, days)
	second := CompoundDue(1000, DaysBetween(start, now))
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1157), first)
}

func TestDaysBetweenNeverNegative(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, DaysBetween(now.Add(time.Hour), now))
	assert.Equal(t, 0, DaysBetween(now, now.Add(23*time.Hour)))
	assert.Equal(t, 1, DaysBetween(now, now.Add(24*time.Hour)))
}

func TestClampedAddFloorsEveryStep(t *testing.T) {
	balance := int64(100)
	deltas := []int64{50, -250, 75, -10, 40}
	// Folding must clamp at every intermediate step, not just at the end.
	want := []int64{150, 0, 75, 65, 105}
	for i, d := range deltas {
		balance = ClampedAdd(balance, d)
		assert.Equal(t, want[i], balance, "step %d", i)
	}
}

func TestValidateField(t *testing.T) {
	require.NoError(t, ValidateField(FieldCoins))
	require.NoError(t, ValidateField(FieldVIPCoins))
	err := ValidateField("credits")
	require.ErrorIs(t, err, ErrValidation)
}

func TestJSTDaysElapsed(t *testing.T) {
	base := time.Date(2026, 4, 10, 12, 0, 0, 0, JST)

	assert.Equal(t, int64(0), JSTDaysElapsed(base, base))
	assert.Equal(t, int64(0), JSTDaysElapsed(base, base.Add(11*time.Hour)))
	assert.Equal(t, int64(1), JSTDaysElapsed(base, base.Add(12*time.Hour)))
	assert.Equal(t, int64(3), JSTDaysElapsed(base, base.AddDate(0, 0, 3)))

	// Crossing JST midnight counts even when under 24h elapsed.
	lateNight := time.Date(2026, 4, 10, 23, 50, 0, 0, JST)
	justAfter := time.Date(2026, 4, 11, 0, 10, 0, 0, JST)
	assert.Equal(t, int64(1), JSTDaysElapsed(lateNight, justAfter))

	// Clock going backwards never produces negative accrual.
	assert.Equal(t, int64(0), JSTDaysElapsed(base, base.Add(-48*time.Hour)))
}

func TestSettleHedgeIsPure(t *testing.T) {
	c := HedgeContract{
		UserID:        "u1",
		AmountPerDay:  1000,
		Accumulated:   250,
		LastUpdateJST: time.Date(2026, 4, 10, 12, 0, 0, 0, JST),
	}
	now := time.Date(2026, 4, 13, 9, 0, 0, 0, JST)

	owed := SettleHedge(c, now)
	assert.Equal(t, int64(250+3*1000), owed)

	// Peeking again yields the same answer and the record is untouched.
	assert.Equal(t, owed, SettleHedge(c, now))
	assert.Equal(t, int64(250), c.Accumulated)
}

func TestFeeForDailyAmount(t *testing.T) {
	fee, err := FeeForDailyAmount(5000)
	require.NoError(t, err)
	assert.Equal(t, int64(35_000), fee)

	fee, err = FeeForDailyAmount(1000)
	require.NoError(t, err)
	assert.Equal(t, int64(7_000), fee)

	_, err = FeeForDailyAmount(1234)
	require.ErrorIs(t, err, ErrValidation)
	_, err = FeeForDailyAmount(0)
	require.ErrorIs(t, err, ErrValidation)
}

func TestDrawSlots(t *testing.T) {
	at := time.Unix(2000*DrawSlotSeconds+123, 0)
	assert.Equal(t, int64(2000), DrawID(at))
	assert.Equal(t, int64(2000), NextDrawID(at))
	assert.Equal(t, int64(1999), LatestDrawID(at))

	boundary := time.Unix(2000*DrawSlotSeconds, 0)
	assert.Equal(t, int64(2000), DrawID(boundary))
	assert.Equal(t, int64(1999), DrawID(boundary.Add(-time.Second)))
}

func TestValidateTicket(t *testing.T) {
	require.NoError(t, ValidateTicket("01234", "A"))
	require.NoError(t, ValidateTicket("99999", "Z"))
	assert.ErrorIs(t, ValidateTicket("1234", "A"), ErrValidation)
	assert.ErrorIs(t, ValidateTicket("123456", "A"), ErrValidation)
	assert.ErrorIs(t, ValidateTicket("12a45", "A"), ErrValidation)
	assert.ErrorIs(t, ValidateTicket("12345", "a"), ErrValidation)
	assert.ErrorIs(t, ValidateTicket("12345", "AB"), ErrValidation)
}

func TestJudgeTicketTiers(t *testing.T) {
	tests := []struct {
		name       string
		number     string
		letter     string
		drawNumber string
		drawLetter string
		wantRank   int
		wantPrize  int64
	}{
		{"full match with letter", "12345", "A", "12345", "A", 1, 1_000_000_000},
		{"full match only", "12345", "B", "12345", "A", 2, 500_000_000},
		{"adjacent below with letter", "12344", "A", "12345", "A", 3, 100_000_000},
		{"adjacent above with letter", "12346", "A", "12345", "A", 3, 100_000_000},
		{"last4 with letter", "92345", "A", "12345", "A", 4, 10_000_000},
		{"last4 only", "92345", "B", "12345", "A", 5, 5_000_000},
		{"last3 with letter", "54345", "A", "12345", "A", 6, 3_000_000},
		{"last3 only", "54345", "B", "12345", "A", 7, 1_000_000},
		{"last2 with letter", "00045", "A", "12345", "A", 8, 500_000},
		{"last2 only", "00045", "B", "12345", "A", 9, 100_000},
		{"letter only", "00000", "A", "12345", "A", 10, 10_000},
		{"last digit only", "00005", "B", "12345", "A", 11, 5_000},
		{"no match", "99999", "Z", "12345", "A", 0, 0},
		{"adjacent without letter is not a tier", "12344", "B", "12345", "A", 0, 0},
		{"leading zero adjacency", "00001", "C", "00000", "C", 3, 100_000_000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rank, prize := JudgeTicket(tc.number, tc.letter, tc.drawNumber, tc.drawLetter)
			assert.Equal(t, tc.wantRank, rank)
			assert.Equal(t, tc.wantPrize, prize)
		})
	}
}

func TestPlanLiquidationPriorityOrder(t *testing.T) {
	// Overdue loan of 500 against cash 200, two shares at 100, hedge 50:
	// everything is drained in order and the 50 shortfall is absorbed.
	p := PlanLiquidation(500, 200, 2, 100, 50)
	assert.Equal(t, int64(200), p.CashUsed)
	assert.Equal(t, int64(2), p.SharesSold)
	assert.Equal(t, int64(200), p.StockProceeds)
	assert.Equal(t, int64(200), p.StockApplied)
	assert.Equal(t, int64(50), p.HedgeUsed)
	assert.Equal(t, int64(50), p.Shortfall)
	assert.Equal(t, int64(450), p.Recovered())
}

func TestPlanLiquidationWholeShareExcess(t *testing.T) {
	// Shares sell whole: three shares at 200 cover a 500 debt with 100 over.
	p := PlanLiquidation(500, 0, 3, 200, 0)
	assert.Equal(t, int64(3), p.SharesSold)
	assert.Equal(t, int64(600), p.StockProceeds)
	assert.Equal(t, int64(500), p.StockApplied)
	assert.Equal(t, int64(0), p.Shortfall)
	assert.Equal(t, int64(100), p.StockProceeds-p.StockApplied)
}

func TestPlanLiquidationCashCoversAll(t *testing.T) {
	p := PlanLiquidation(500, 900, 10, 100, 50)
	assert.Equal(t, int64(500), p.CashUsed)
	assert.Equal(t, int64(0), p.SharesSold)
	assert.Equal(t, int64(0), p.HedgeUsed)
	assert.Equal(t, int64(0), p.Shortfall)
}

func TestPlanCashRepayment(t *testing.T) {
	paid, residual, closed := planCashRepayment(1157, 2000)
	assert.Equal(t, int64(1157), paid)
	assert.Equal(t, int64(0), residual)
	assert.True(t, closed)

	paid, residual, closed = planCashRepayment(1157, 1000)
	assert.Equal(t, int64(1000), paid)
	assert.Equal(t, int64(157), residual)
	assert.False(t, closed)

	paid, residual, closed = planCashRepayment(1157, 0)
	assert.Equal(t, int64(0), paid)
	assert.Equal(t, int64(1157), residual)
	assert.False(t, closed)
}
