package economy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Borrow originates a loan and credits the principal to the user's coins.
// At most one unpaid loan may exist per user.
func (s *Service) Borrow(ctx context.Context, userID string, amount int64, now time.Time) (Loan, error) {
	if amount <= 0 || amount > MaxLoanAmount {
		return Loan{}, fmt.Errorf("%w: loan amount must be between 1 and %d", ErrValidation, MaxLoanAmount)
	}
	return runTx(ctx, s, func(ctx context.Context) (Loan, error) {
		return s.borrowOnce(ctx, userID, amount, now)
	})
}

func (s *Service) borrowOnce(ctx context.Context, userID string, amount int64, now time.Time) (Loan, error) {
	var out Loan
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	var unpaid int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(1) FROM econ.loans WHERE user_id = $1 AND NOT paid
	`, userID).Scan(&unpaid); err != nil {
		return out, err
	}
	if unpaid > 0 {
		return out, fmt.Errorf("%w: an unpaid loan is outstanding", ErrConflict)
	}

	out = Loan{
		UserID:    userID,
		Principal: amount,
		TotalDue:  BorrowDue(amount),
		StartAt:   now,
		DueAt:     now.Add(LoanTermDays * 24 * time.Hour),
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO econ.loans (user_id, principal, start_at, days_passed, total_due, due_at)
		VALUES ($1, $2, $3, 0, $4, $5)
		RETURNING id
	`, userID, amount, now, out.TotalDue, out.DueAt).Scan(&out.ID); err != nil {
		return out, err
	}
	if err := updateBalanceTx(ctx, tx, userID, FieldCoins, amount); err != nil {
		return out, err
	}
	if err := s.recordLedger(ctx, tx, userID, FieldCoins, amount, "borrow"); err != nil {
		return out, err
	}
	if err := tx.Commit(ctx); err != nil {
		return out, mapTxErr(err)
	}
	return out, nil
}

// Loans lists a user's loans, unpaid first.
func (s *Service) Loans(ctx context.Context, userID string) ([]Loan, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, principal, days_passed, total_due, start_at, due_at, paid
		FROM econ.loans
		WHERE user_id = $1
		ORDER BY paid, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Loan
	for rows.Next() {
		var l Loan
		if err := rows.Scan(&l.ID, &l.UserID, &l.Principal, &l.DaysPassed, &l.TotalDue, &l.StartAt, &l.DueAt, &l.Paid); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// AccrueLoansDaily recomputes days passed and the compound total due for every
// unpaid loan. Idempotent for a fixed now: rerunning without time advancing
// writes the same values.
func (s *Service) AccrueLoansDaily(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, principal, start_at
		FROM econ.loans
		WHERE NOT paid
		FOR UPDATE
	`)
	if err != nil {
		return 0, err
	}
	type row struct {
		id        int64
		principal int64
		startAt   time.Time
	}
	var loans []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.principal, &r.startAt); err != nil {
			rows.Close()
			return 0, err
		}
		loans = append(loans, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, l := range loans {
		days := DaysBetween(l.startAt, now)
		due := CompoundDue(l.principal, days)
		if _, err := tx.Exec(ctx, `
			UPDATE econ.loans
			SET days_passed = $1, total_due = $2
			WHERE id = $3
		`, days, due, l.id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(loans), nil
}

// Repay settles the user's unpaid loans in insertion order. Overdue loans are
// force-liquidated (cash, then shares at the current price, then the hedge
// balance; any shortfall is absorbed and the loan still closes). Loans not yet
// due are paid from cash only; a partial payment restarts the compounding
// clock on the residual principal.
func (s *Service) Repay(ctx context.Context, userID string, now time.Time) (RepayResult, error) {
	return runTx(ctx, s, func(ctx context.Context) (RepayResult, error) {
		return s.repayOnce(ctx, userID, now)
	})
}

func (s *Service) repayOnce(ctx context.Context, userID string, now time.Time) (RepayResult, error) {
	var out RepayResult

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, total_due, due_at
		FROM econ.loans
		WHERE user_id = $1 AND NOT paid
		ORDER BY id
		FOR UPDATE
	`, userID)
	if err != nil {
		return out, err
	}
	type row struct {
		id       int64
		totalDue int64
		dueAt    time.Time
	}
	var loans []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.totalDue, &r.dueAt); err != nil {
			rows.Close()
			return out, err
		}
		loans = append(loans, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}
	if len(loans) == 0 {
		return out, fmt.Errorf("%w: no unpaid loan", ErrNotFound)
	}

	cash, err := lockCoins(ctx, tx, userID)
	if err != nil {
		return out, err
	}

	for _, l := range loans {
		if !now.Before(l.dueAt) {
			recovered, nextCash, err := s.liquidateTx(ctx, tx, userID, l.id, l.totalDue, cash, now)
			if err != nil {
				return out, err
			}
			cash = nextCash
			out.Recovered += recovered
			out.LoansClosed++
			continue
		}

		paid, newPrincipal, closed := planCashRepayment(l.totalDue, cash)
		cash -= paid
		out.Recovered += paid
		if closed {
			if _, err := tx.Exec(ctx, `
				UPDATE econ.loans SET paid = true WHERE id = $1
			`, l.id); err != nil {
				return out, err
			}
			out.LoansClosed++
			continue
		}
		if paid > 0 {
			if _, err := tx.Exec(ctx, `
				UPDATE econ.loans
				SET principal = $1, total_due = $1, start_at = $2, days_passed = 0
				WHERE id = $3
			`, newPrincipal, now, l.id); err != nil {
				return out, err
			}
		}
		out.Outstanding += newPrincipal
	}

	if err := setCoinsTx(ctx, tx, userID, cash); err != nil {
		return out, err
	}
	if out.Recovered > 0 {
		if err := s.recordLedger(ctx, tx, userID, FieldCoins, -out.Recovered, "repay"); err != nil {
			return out, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return out, mapTxErr(err)
	}
	return out, nil
}

// liquidateTx recovers one overdue loan inside the caller's transaction and
// returns the amount recovered plus the user's cash after the plan applied.
func (s *Service) liquidateTx(ctx context.Context, tx pgx.Tx, userID string, loanID, totalDue, cash int64, now time.Time) (int64, int64, error) {
	shares, err := lockHoldings(ctx, tx, userID)
	if err != nil {
		return 0, cash, err
	}
	price, err := lockPrice(ctx, tx)
	if err != nil {
		return 0, cash, err
	}

	var hedge *HedgeContract
	var h HedgeContract
	err = tx.QueryRow(ctx, `
		SELECT user_id, amount_per_day, accumulated, last_update_jst
		FROM econ.hedges
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&h.UserID, &h.AmountPerDay, &h.Accumulated, &h.LastUpdateJST)
	if err == nil {
		hedge = &h
	} else if err != pgx.ErrNoRows {
		return 0, cash, err
	}

	hedgeSettled := int64(0)
	if hedge != nil {
		hedgeSettled = SettleHedge(*hedge, now)
	}

	plan := PlanLiquidation(totalDue, cash, shares, price, hedgeSettled)

	// Excess proceeds from whole-share sales return to cash.
	cash = cash - plan.CashUsed + (plan.StockProceeds - plan.StockApplied)

	if plan.SharesSold > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE econ.holdings SET shares = shares - $1 WHERE user_id = $2
		`, plan.SharesSold, userID); err != nil {
			return 0, cash, err
		}
	}
	if hedge != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE econ.hedges
			SET accumulated = $1, last_update_jst = $2
			WHERE user_id = $3
		`, hedgeAfterLiquidation(hedgeSettled, plan.HedgeUsed), now, userID); err != nil {
			return 0, cash, err
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE econ.loans SET paid = true WHERE id = $1
	`, loanID); err != nil {
		return 0, cash, err
	}
	if plan.Shortfall > 0 {
		s.log.Warn("loan liquidated with shortfall",
			"user_id", userID, "loan_id", loanID, "shortfall", plan.Shortfall)
	}
	return plan.Recovered(), cash, nil
}

func mapTxErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		return ErrTxConflict
	}
	return err
}
