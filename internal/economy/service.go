package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Serializable transactions are optimistic: a 40001 abort is retried a bounded
// number of times before the conflict surfaces to the caller.
const txAttempts = 3

func runTx[T any](ctx context.Context, s *Service, fn func(context.Context) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 1; ; attempt++ {
		out, err = fn(ctx)
		if !errors.Is(err, ErrTxConflict) || attempt == txAttempts {
			return out, err
		}
		s.log.Warn("serialization conflict, retrying", "attempt", attempt)
	}
}

type Service struct {
	db   *pgxpool.Pool
	log  *slog.Logger
	mu   sync.Mutex
	rand *mathrand.Rand
}

func NewService(db *pgxpool.Pool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:   db,
		log:  logger,
		rand: mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
}

// GetBalance never fails for an absent user; it reads as zero balances.
func (s *Service) GetBalance(ctx context.Context, userID string) (Balance, error) {
	out := Balance{UserID: userID}
	err := s.db.QueryRow(ctx, `
		SELECT coins, vip_coins
		FROM econ.balances
		WHERE user_id = $1
	`, userID).Scan(&out.Coins, &out.VIPCoins)
	if err == pgx.ErrNoRows {
		return out, nil
	}
	if err != nil {
		return out, err
	}
	return out, nil
}

// SetBalance overwrites one field, clamped at zero, creating the row if needed.
func (s *Service) SetBalance(ctx context.Context, userID, field string, value int64) error {
	if err := ValidateField(field); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO econ.balances (user_id, %[1]s)
		VALUES ($1, GREATEST(0, $2::bigint))
		ON CONFLICT (user_id) DO UPDATE
		SET %[1]s = GREATEST(0, $2::bigint), updated_at = now()
	`, field)
	_, err := s.db.Exec(ctx, query, userID, value)
	return err
}

// UpdateBalance applies a signed delta to one field. A debit that would go
// negative is floored at zero, not rejected; callers that must reject
// insufficient funds check the balance first inside a transaction.
func (s *Service) UpdateBalance(ctx context.Context, userID, field string, delta int64) error {
	if err := ValidateField(field); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := updateBalanceTx(ctx, tx, userID, field, delta); err != nil {
		return err
	}
	if err := s.recordLedger(ctx, tx, userID, field, delta, "update"); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func balanceDeltaSQL(field string) string {
	return fmt.Sprintf(`
		INSERT INTO econ.balances (user_id, %[1]s)
		VALUES ($1, GREATEST(0, $2::bigint))
		ON CONFLICT (user_id) DO UPDATE
		SET %[1]s = GREATEST(0, econ.balances.%[1]s + $2::bigint), updated_at = now()
	`, field)
}

func updateBalanceTx(ctx context.Context, tx pgx.Tx, userID, field string, delta int64) error {
	_, err := tx.Exec(ctx, balanceDeltaSQL(field), userID, delta)
	return err
}

// lockCoins upserts the user's row and returns the coin balance under FOR UPDATE.
func lockCoins(ctx context.Context, tx pgx.Tx, userID string) (int64, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO econ.balances (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return 0, err
	}
	var coins int64
	err := tx.QueryRow(ctx, `
		SELECT coins FROM econ.balances WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&coins)
	return coins, err
}

func setCoinsTx(ctx context.Context, tx pgx.Tx, userID string, coins int64) error {
	_, err := tx.Exec(ctx, `
		UPDATE econ.balances
		SET coins = GREATEST(0, $2::bigint), updated_at = now()
		WHERE user_id = $1
	`, userID, coins)
	return err
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Service) recordLedger(ctx context.Context, db execer, userID, field string, delta int64, action string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO econ.coin_ledger (tx_group_id, user_id, field, delta, action)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), userID, field, delta, action)
	return err
}

// Transfer moves coins between users; the sender must cover the full amount.
func (s *Service) Transfer(ctx context.Context, fromID, toID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: transfer amount must be positive", ErrValidation)
	}
	if fromID == toID {
		return fmt.Errorf("%w: cannot pay yourself", ErrValidation)
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	coins, err := lockCoins(ctx, tx, fromID)
	if err != nil {
		return err
	}
	if coins < amount {
		return fmt.Errorf("%w: balance %d, need %d", ErrInsufficientFunds, coins, amount)
	}
	if err := setCoinsTx(ctx, tx, fromID, coins-amount); err != nil {
		return err
	}
	if err := updateBalanceTx(ctx, tx, toID, FieldCoins, amount); err != nil {
		return err
	}
	if err := s.recordLedger(ctx, tx, fromID, FieldCoins, -amount, "transfer_out"); err != nil {
		return err
	}
	if err := s.recordLedger(ctx, tx, toID, FieldCoins, amount, "transfer_in"); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	rows, err := s.db.Query(ctx, `
		SELECT user_id, coins, vip_coins
		FROM econ.balances
		ORDER BY coins DESC, user_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaderboardRow
	var rank int64 = 1
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.UserID, &r.Coins, &r.VIPCoins); err != nil {
			return nil, err
		}
		r.Rank = rank
		rank++
		out = append(out, r)
	}
	return out, rows.Err()
}

// Coinflip is a double-or-nothing stake on coins.
func (s *Service) Coinflip(ctx context.Context, userID string, stake int64) (FlipResult, error) {
	var out FlipResult
	if stake <= 0 {
		return out, fmt.Errorf("%w: stake must be positive", ErrValidation)
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	coins, err := lockCoins(ctx, tx, userID)
	if err != nil {
		return out, err
	}
	if coins < stake {
		return out, fmt.Errorf("%w: balance %d, need %d", ErrInsufficientFunds, coins, stake)
	}

	out.Won = s.nextFloat() < 0.5
	if out.Won {
		out.Payout = stake
		coins += stake
	} else {
		out.Payout = -stake
		coins -= stake
	}
	if err := setCoinsTx(ctx, tx, userID, coins); err != nil {
		return out, err
	}
	if err := s.recordLedger(ctx, tx, userID, FieldCoins, out.Payout, "coinflip"); err != nil {
		return out, err
	}
	out.Coins = coins
	return out, tx.Commit(ctx)
}

func (s *Service) nextFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

func (s *Service) nextInt(n int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Int63n(n)
}
