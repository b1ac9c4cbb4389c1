package economy

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
)

// The shared index price moves with every trade; concurrent movers race and
// that is accepted. Impact is a bounded log return per traded share.
const (
	tradeImpactPerShare = 0.002
	maxTradeImpact      = 0.05
	maxDropPerMove      = 0.50

	minSharePrice = int64(10)
	maxSharePrice = int64(100_000_000)
)

func lockPrice(ctx context.Context, tx pgx.Tx) (int64, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO econ.market_state (id, price) VALUES (1, $1)
		ON CONFLICT (id) DO NOTHING
	`, StartingSharePrice); err != nil {
		return 0, err
	}
	var price int64
	err := tx.QueryRow(ctx, `
		SELECT price FROM econ.market_state WHERE id = 1 FOR UPDATE
	`).Scan(&price)
	return price, err
}

func lockHoldings(ctx context.Context, tx pgx.Tx, userID string) (int64, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO econ.holdings (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return 0, err
	}
	var shares int64
	err := tx.QueryRow(ctx, `
		SELECT shares FROM econ.holdings WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&shares)
	return shares, err
}

func (s *Service) MarketPrice(ctx context.Context) (int64, error) {
	var price int64
	err := s.db.QueryRow(ctx, `
		SELECT price FROM econ.market_state WHERE id = 1
	`).Scan(&price)
	if err == pgx.ErrNoRows {
		return StartingSharePrice, nil
	}
	return price, err
}

func (s *Service) Holdings(ctx context.Context, userID string) (int64, error) {
	var shares int64
	err := s.db.QueryRow(ctx, `
		SELECT shares FROM econ.holdings WHERE user_id = $1
	`, userID).Scan(&shares)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return shares, err
}

func (s *Service) BuyShares(ctx context.Context, userID string, qty int64) (TradeResult, error) {
	return s.trade(ctx, userID, qty, true)
}

func (s *Service) SellShares(ctx context.Context, userID string, qty int64) (TradeResult, error) {
	return s.trade(ctx, userID, qty, false)
}

func (s *Service) trade(ctx context.Context, userID string, qty int64, buy bool) (TradeResult, error) {
	if qty <= 0 {
		return TradeResult{}, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	return runTx(ctx, s, func(ctx context.Context) (TradeResult, error) {
		return s.tradeOnce(ctx, userID, qty, buy)
	})
}

func (s *Service) tradeOnce(ctx context.Context, userID string, qty int64, buy bool) (TradeResult, error) {
	var out TradeResult
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	price, err := lockPrice(ctx, tx)
	if err != nil {
		return out, err
	}
	coins, err := lockCoins(ctx, tx, userID)
	if err != nil {
		return out, err
	}
	shares, err := lockHoldings(ctx, tx, userID)
	if err != nil {
		return out, err
	}

	total := qty * price
	action := "stock_sell"
	if buy {
		action = "stock_buy"
		if coins < total {
			return out, fmt.Errorf("%w: cost is %d, balance %d", ErrInsufficientFunds, total, coins)
		}
		coins -= total
		shares += qty
	} else {
		if shares < qty {
			return out, fmt.Errorf("%w: holding %d shares, tried to sell %d", ErrConflict, shares, qty)
		}
		coins += total
		shares -= qty
	}

	next := applyTradeImpact(price, qty, buy)
	if _, err := tx.Exec(ctx, `
		UPDATE econ.market_state SET price = $1, updated_at = now() WHERE id = 1
	`, next); err != nil {
		return out, err
	}
	if err := setCoinsTx(ctx, tx, userID, coins); err != nil {
		return out, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE econ.holdings SET shares = $1 WHERE user_id = $2
	`, shares, userID); err != nil {
		return out, err
	}
	delta := total
	if buy {
		delta = -total
	}
	if err := s.recordLedger(ctx, tx, userID, FieldCoins, delta, action); err != nil {
		return out, err
	}
	if err := tx.Commit(ctx); err != nil {
		return out, mapTxErr(err)
	}

	out = TradeResult{Shares: qty, Price: price, Total: total, Coins: coins, Holdings: shares}
	return out, nil
}

func applyTradeImpact(price, qty int64, buy bool) int64 {
	ret := tradeImpactPerShare * float64(qty)
	if ret > maxTradeImpact {
		ret = maxTradeImpact
	}
	if !buy {
		ret = -ret
	}
	return evolvePrice(price, ret)
}

func evolvePrice(price int64, ret float64) int64 {
	if price <= 0 {
		return minSharePrice
	}
	// Bound only the downside; upside can run.
	if ret < -maxDropPerMove {
		ret = -maxDropPerMove
	}
	next := int64(math.Round(float64(price) * math.Exp(ret)))
	if next < minSharePrice {
		next = minSharePrice
	}
	if next > maxSharePrice {
		next = maxSharePrice
	}
	return next
}
