package economy

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// RotateDraw publishes the draw for the slot that just elapsed and seeds a
// fresh pending draw for the current slot. Fired every 30 minutes aligned to
// the half-hour; catch-up publication covers missed slots.
func (s *Service) RotateDraw(ctx context.Context, now time.Time) error {
	number, letter := s.randomDrawPair()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE econ.lottery_draws
		SET published = true
		WHERE draw_id <= $1 AND NOT published
	`, LatestDrawID(now)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO econ.lottery_draws (draw_id, number, letter, published)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (draw_id) DO NOTHING
	`, NextDrawID(now), number, letter); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM econ.lottery_tickets WHERE created_at < $1
	`, now.Add(-TicketTTL)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) randomDrawPair() (string, string) {
	number := fmt.Sprintf("%05d", s.nextInt(100_000))
	letter := string(rune('A' + s.nextInt(26)))
	return number, letter
}

// BuyRandomTicket buys a ticket with a generated number/letter for the
// current (pending) draw slot.
func (s *Service) BuyRandomTicket(ctx context.Context, userID string, now time.Time) (Ticket, error) {
	number, letter := s.randomDrawPair()
	return s.buyTicket(ctx, userID, number, letter, now)
}

// BuyPickedTicket buys a ticket with user-chosen numbers. Like the random
// path, it is resolved only at claim time once the draw publishes.
func (s *Service) BuyPickedTicket(ctx context.Context, userID, number, letter string, now time.Time) (Ticket, error) {
	if err := ValidateTicket(number, letter); err != nil {
		return Ticket{}, err
	}
	return s.buyTicket(ctx, userID, number, letter, now)
}

func (s *Service) buyTicket(ctx context.Context, userID, number, letter string, now time.Time) (Ticket, error) {
	var out Ticket

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	coins, err := lockCoins(ctx, tx, userID)
	if err != nil {
		return out, err
	}
	if coins < TicketPrice {
		return out, fmt.Errorf("%w: ticket costs %d, balance %d", ErrInsufficientFunds, TicketPrice, coins)
	}
	if err := setCoinsTx(ctx, tx, userID, coins-TicketPrice); err != nil {
		return out, err
	}

	// A worker outage at the slot boundary must not orphan the ticket; seed the
	// pending draw here if rotation has not.
	drawNumber, drawLetter := s.randomDrawPair()
	if _, err := tx.Exec(ctx, `
		INSERT INTO econ.lottery_draws (draw_id, number, letter, published)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (draw_id) DO NOTHING
	`, NextDrawID(now), drawNumber, drawLetter); err != nil {
		return out, err
	}

	out = Ticket{
		UserID:    userID,
		Number:    number,
		Letter:    letter,
		DrawID:    NextDrawID(now),
		CreatedAt: now,
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO econ.lottery_tickets (user_id, number, letter, draw_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, userID, number, letter, out.DrawID, now).Scan(&out.ID); err != nil {
		return out, err
	}
	if err := s.recordLedger(ctx, tx, userID, FieldCoins, -TicketPrice, "lotto_ticket"); err != nil {
		return out, err
	}
	return out, tx.Commit(ctx)
}

// ClaimTickets judges every unresolved ticket whose draw has published,
// credits the winnings and marks the tickets so they cannot pay out twice.
func (s *Service) ClaimTickets(ctx context.Context, userID string, now time.Time) (ClaimResult, error) {
	return runTx(ctx, s, func(ctx context.Context) (ClaimResult, error) {
		return s.claimTicketsOnce(ctx, userID, now)
	})
}

func (s *Service) claimTicketsOnce(ctx context.Context, userID string, now time.Time) (ClaimResult, error) {
	var out ClaimResult

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return out, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT t.id, t.number, t.letter, t.draw_id, d.number, d.letter
		FROM econ.lottery_tickets t
		JOIN econ.lottery_draws d ON d.draw_id = t.draw_id AND d.published
		WHERE t.user_id = $1 AND NOT t.published
		ORDER BY t.id
		FOR UPDATE OF t
	`, userID)
	if err != nil {
		return out, err
	}
	type row struct {
		id                     int64
		number, letter         string
		drawID                 int64
		drawNumber, drawLetter string
	}
	var tickets []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.number, &r.letter, &r.drawID, &r.drawNumber, &r.drawLetter); err != nil {
			rows.Close()
			return out, err
		}
		tickets = append(tickets, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}
	if len(tickets) == 0 {
		return out, fmt.Errorf("%w: no tickets awaiting a published draw", ErrNotFound)
	}

	for _, t := range tickets {
		rank, prize := JudgeTicket(t.number, t.letter, t.drawNumber, t.drawLetter)
		var rankVal *int
		if rank > 0 {
			rankVal = &rank
		}
		if _, err := tx.Exec(ctx, `
			UPDATE econ.lottery_tickets
			SET published = true, is_win = $1, prize = $2, rank = $3
			WHERE id = $4
		`, prize > 0, prize, rankVal, t.id); err != nil {
			return out, err
		}
		out.Judged = append(out.Judged, JudgedTicket{
			Number: t.number,
			Letter: t.letter,
			DrawID: t.drawID,
			Rank:   rank,
			Prize:  prize,
		})
		out.TotalPrize += prize
	}

	if out.TotalPrize > 0 {
		if err := updateBalanceTx(ctx, tx, userID, FieldCoins, out.TotalPrize); err != nil {
			return out, err
		}
		if err := s.recordLedger(ctx, tx, userID, FieldCoins, out.TotalPrize, "lotto_prize"); err != nil {
			return out, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return out, mapTxErr(err)
	}
	return out, nil
}

// DrawStatus reports the pending slot id and the most recent published result.
func (s *Service) DrawStatus(ctx context.Context, now time.Time) (DrawStatus, error) {
	out := DrawStatus{PendingDrawID: NextDrawID(now)}
	var d DrawResult
	err := s.db.QueryRow(ctx, `
		SELECT draw_id, number, letter, published
		FROM econ.lottery_draws
		WHERE published
		ORDER BY draw_id DESC
		LIMIT 1
	`).Scan(&d.DrawID, &d.Number, &d.Letter, &d.Published)
	if err == pgx.ErrNoRows {
		return out, nil
	}
	if err != nil {
		return out, err
	}
	out.LastPublished = &d
	return out, nil
}

// Tickets lists a user's tickets, newest first.
func (s *Service) Tickets(ctx context.Context, userID string, limit int) ([]Ticket, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, number, letter, draw_id, is_win, prize, rank, published, created_at
		FROM econ.lottery_tickets
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ID, &t.UserID, &t.Number, &t.Letter, &t.DrawID, &t.IsWin, &t.Prize, &t.Rank, &t.Published, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
