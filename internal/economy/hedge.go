package economy

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// OpenHedge starts a contract, charging the upfront fee. One contract per user.
func (s *Service) OpenHedge(ctx context.Context, userID string, dailyAmount int64, now time.Time) (HedgeContract, error) {
	fee, err := FeeForDailyAmount(dailyAmount)
	if err != nil {
		return HedgeContract{}, err
	}
	return runTx(ctx, s, func(ctx context.Context) (HedgeContract, error) {
		return s.openHedgeOnce(ctx, userID, dailyAmount, fee, now)
	})
}

func (s *Service) openHedgeOnce(ctx context.Context, userID string, dailyAmount, fee int64, now time.Time) (HedgeContract, error) {
	var out HedgeContract
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	var exists int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(1) FROM econ.hedges WHERE user_id = $1
	`, userID).Scan(&exists); err != nil {
		return out, err
	}
	if exists > 0 {
		return out, fmt.Errorf("%w: a hedge contract already exists", ErrConflict)
	}

	coins, err := lockCoins(ctx, tx, userID)
	if err != nil {
		return out, err
	}
	if coins < fee {
		return out, fmt.Errorf("%w: fee is %d, balance %d", ErrInsufficientFunds, fee, coins)
	}
	if err := setCoinsTx(ctx, tx, userID, coins-fee); err != nil {
		return out, err
	}

	out = HedgeContract{
		UserID:        userID,
		AmountPerDay:  dailyAmount,
		Accumulated:   0,
		LastUpdateJST: now,
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO econ.hedges (user_id, amount_per_day, accumulated, last_update_jst)
		VALUES ($1, $2, 0, $3)
	`, userID, dailyAmount, now); err != nil {
		return out, err
	}
	if err := s.recordLedger(ctx, tx, userID, FieldCoins, -fee, "hedge_open"); err != nil {
		return out, err
	}
	if err := tx.Commit(ctx); err != nil {
		return out, mapTxErr(err)
	}
	return out, nil
}

// HedgeStatus peeks at the contract and the amount it owes at now. The stored
// record is left untouched; display paths call this.
func (s *Service) HedgeStatus(ctx context.Context, userID string, now time.Time) (HedgeContract, int64, error) {
	var c HedgeContract
	err := s.db.QueryRow(ctx, `
		SELECT user_id, amount_per_day, accumulated, last_update_jst
		FROM econ.hedges
		WHERE user_id = $1
	`, userID).Scan(&c.UserID, &c.AmountPerDay, &c.Accumulated, &c.LastUpdateJST)
	if err == pgx.ErrNoRows {
		return c, 0, fmt.Errorf("%w: no hedge contract", ErrNotFound)
	}
	if err != nil {
		return c, 0, err
	}
	return c, SettleHedge(c, now), nil
}

// ClaimHedge settles, credits the owed total to coins and removes the
// contract. Terminal.
func (s *Service) ClaimHedge(ctx context.Context, userID string, now time.Time) (int64, error) {
	return runTx(ctx, s, func(ctx context.Context) (int64, error) {
		return s.claimHedgeOnce(ctx, userID, now)
	})
}

func (s *Service) claimHedgeOnce(ctx context.Context, userID string, now time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var c HedgeContract
	err = tx.QueryRow(ctx, `
		SELECT user_id, amount_per_day, accumulated, last_update_jst
		FROM econ.hedges
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&c.UserID, &c.AmountPerDay, &c.Accumulated, &c.LastUpdateJST)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("%w: no hedge contract", ErrNotFound)
	}
	if err != nil {
		return 0, err
	}

	owed := SettleHedge(c, now)
	if _, err := tx.Exec(ctx, `
		DELETE FROM econ.hedges WHERE user_id = $1
	`, userID); err != nil {
		return 0, err
	}
	if owed > 0 {
		if err := updateBalanceTx(ctx, tx, userID, FieldCoins, owed); err != nil {
			return 0, err
		}
		if err := s.recordLedger(ctx, tx, userID, FieldCoins, owed, "hedge_claim"); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, mapTxErr(err)
	}
	return owed, nil
}

// AdjustHedge is administrative: a signed delta on the accumulated balance,
// floored at zero. A zero delta resets accumulated to zero.
func (s *Service) AdjustHedge(ctx context.Context, userID string, delta int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var accumulated int64
	err = tx.QueryRow(ctx, `
		SELECT accumulated FROM econ.hedges WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&accumulated)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("%w: no hedge contract", ErrNotFound)
	}
	if err != nil {
		return 0, err
	}

	if delta == 0 {
		accumulated = 0
	} else {
		accumulated = ClampedAdd(accumulated, delta)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE econ.hedges SET accumulated = $1 WHERE user_id = $2
	`, accumulated, userID); err != nil {
		return 0, err
	}
	return accumulated, tx.Commit(ctx)
}
