package economy

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	FieldCoins    = "coins"
	FieldVIPCoins = "vip_coins"

	MaxLoanAmount = int64(1_000_000)
	LoanTermDays  = 7

	HedgeCoverageDays = 7

	TicketPrice     = int64(500)
	DrawSlotSeconds = int64(1800)
	TicketTTL       = 7 * 24 * time.Hour

	StartingSharePrice = int64(1_000)
)

// JST is the fixed calendar used for hedge accrual and the daily loan job.
var JST = time.FixedZone("JST", 9*60*60)

var (
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict with current state")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrTxConflict        = errors.New("transaction conflict, please retry")
)

// loanGrowth is 1 + the loan interest rate (5% per elapsed day, compound).
var loanGrowth = decimal.New(105, -2)

func ValidateField(field string) error {
	switch field {
	case FieldCoins, FieldVIPCoins:
		return nil
	}
	return fmt.Errorf("%w: unknown balance field %q", ErrValidation, field)
}

// CompoundDue computes floor(principal * 1.05^daysPassed) exactly.
func CompoundDue(principal int64, daysPassed int) int64 {
	if daysPassed < 0 {
		daysPassed = 0
	}
	due := decimal.NewFromInt(principal).Mul(loanGrowth.Pow(decimal.NewFromInt(int64(daysPassed))))
	return due.Floor().IntPart()
}

// BorrowDue is the amount owed at origination: one interest step applied upfront.
func BorrowDue(principal int64) int64 {
	return CompoundDue(principal, 1)
}

func DaysBetween(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

// JSTDaysElapsed counts JST calendar-day boundaries crossed between last and now.
func JSTDaysElapsed(last, now time.Time) int64 {
	a := startOfJSTDay(last)
	b := startOfJSTDay(now)
	if b.Before(a) {
		return 0
	}
	return int64(b.Sub(a) / (24 * time.Hour))
}

func startOfJSTDay(t time.Time) time.Time {
	t = t.In(JST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, JST)
}

// SettleHedge reports the amount a contract owes at now. Pure peek: the stored
// record is not touched. Commit paths fold the result back explicitly.
func SettleHedge(c HedgeContract, now time.Time) int64 {
	return c.Accumulated + c.AmountPerDay*JSTDaysElapsed(c.LastUpdateJST, now)
}

// FeeForDailyAmount looks up the upfront fee for a hedge contract. Only the
// listed daily amounts may be written.
func FeeForDailyAmount(dailyAmount int64) (int64, error) {
	switch dailyAmount {
	case 1_000, 5_000, 10_000:
		return HedgeCoverageDays * dailyAmount, nil
	}
	return 0, fmt.Errorf("%w: daily amount must be 1000, 5000 or 10000", ErrValidation)
}

func clampZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// hedgeAfterLiquidation is the accumulated balance left on a contract after a
// forced repayment consumed part of its settled value.
func hedgeAfterLiquidation(settled, used int64) int64 {
	return clampZero(settled - used)
}

// ClampedAdd applies a signed delta to a balance, flooring the result at zero.
// Debits past zero are absorbed, not rejected.
func ClampedAdd(balance, delta int64) int64 {
	return clampZero(balance + delta)
}

func DrawID(t time.Time) int64 {
	return t.Unix() / DrawSlotSeconds
}

// NextDrawID is the slot containing t: the draw tickets bought now enter.
func NextDrawID(t time.Time) int64 {
	return DrawID(t)
}

// LatestDrawID is the slot preceding t: the most recent draw eligible for publication.
func LatestDrawID(t time.Time) int64 {
	return DrawID(t) - 1
}

var (
	ticketNumberRE = regexp.MustCompile(`^[0-9]{5}$`)
	ticketLetterRE = regexp.MustCompile(`^[A-Z]$`)
)

func ValidateTicket(number, letter string) error {
	if !ticketNumberRE.MatchString(number) {
		return fmt.Errorf("%w: ticket number must be exactly 5 digits", ErrValidation)
	}
	if !ticketLetterRE.MatchString(letter) {
		return fmt.Errorf("%w: ticket letter must be a single uppercase A-Z", ErrValidation)
	}
	return nil
}

var prizeByRank = [...]int64{
	0,
	1_000_000_000,
	500_000_000,
	100_000_000,
	10_000_000,
	5_000_000,
	3_000_000,
	1_000_000,
	500_000,
	100_000,
	10_000,
	5_000,
}

// JudgeTicket awards the first matching tier, evaluated high to low.
// Rank 0 means no win.
func JudgeTicket(number, letter, drawNumber, drawLetter string) (rank int, prize int64) {
	letterHit := letter == drawLetter
	switch {
	case number == drawNumber && letterHit:
		rank = 1
	case number == drawNumber:
		rank = 2
	case letterHit && adjacentNumber(number, drawNumber):
		rank = 3
	case letterHit && suffixMatch(number, drawNumber, 4):
		rank = 4
	case suffixMatch(number, drawNumber, 4):
		rank = 5
	case letterHit && suffixMatch(number, drawNumber, 3):
		rank = 6
	case suffixMatch(number, drawNumber, 3):
		rank = 7
	case letterHit && suffixMatch(number, drawNumber, 2):
		rank = 8
	case suffixMatch(number, drawNumber, 2):
		rank = 9
	case letterHit:
		rank = 10
	case suffixMatch(number, drawNumber, 1):
		rank = 11
	default:
		return 0, 0
	}
	return rank, prizeByRank[rank]
}

func adjacentNumber(a, b string) bool {
	av, errA := strconv.Atoi(a)
	bv, errB := strconv.Atoi(b)
	if errA != nil || errB != nil {
		return false
	}
	return av == bv+1 || av == bv-1
}

func suffixMatch(a, b string, n int) bool {
	if len(a) < n || len(b) < n {
		return false
	}
	return a[len(a)-n:] == b[len(b)-n:]
}

// LiquidationPlan describes how a forced repayment recovers an overdue loan.
type LiquidationPlan struct {
	CashUsed      int64
	SharesSold    int64
	StockProceeds int64
	StockApplied  int64
	HedgeUsed     int64
	Shortfall     int64
}

func (p LiquidationPlan) Recovered() int64 {
	return p.CashUsed + p.StockApplied + p.HedgeUsed
}

// PlanLiquidation recovers totalDue in strict priority order: cash, then whole
// shares at the current price, then the hedge balance. Whatever remains is the
// shortfall absorbed as a loss; the loan is closed regardless.
func PlanLiquidation(totalDue, cash, shares, price, hedgeAccumulated int64) LiquidationPlan {
	var p LiquidationPlan
	rem := totalDue
	p.CashUsed = min64(cash, rem)
	rem -= p.CashUsed
	if rem > 0 && shares > 0 && price > 0 {
		need := (rem + price - 1) / price
		p.SharesSold = min64(shares, need)
		p.StockProceeds = p.SharesSold * price
		p.StockApplied = min64(p.StockProceeds, rem)
		rem -= p.StockApplied
	}
	if rem > 0 && hedgeAccumulated > 0 {
		p.HedgeUsed = min64(hedgeAccumulated, rem)
		rem -= p.HedgeUsed
	}
	p.Shortfall = rem
	return p
}

// planCashRepayment handles the not-yet-due path: cash only, up to totalDue.
// A partial payment restarts the compounding clock on the residual.
func planCashRepayment(totalDue, cash int64) (paid, newPrincipal int64, closed bool) {
	paid = min64(cash, totalDue)
	if paid >= totalDue {
		return totalDue, 0, true
	}
	return paid, totalDue - paid, false
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
