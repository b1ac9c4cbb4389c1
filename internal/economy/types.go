package economy

import "time"

type Balance struct {
	UserID   string `json:"user_id"`
	Coins    int64  `json:"coins"`
	VIPCoins int64  `json:"vip_coins"`
}

type Loan struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Principal  int64     `json:"principal"`
	DaysPassed int       `json:"days_passed"`
	TotalDue   int64     `json:"total_due"`
	StartAt    time.Time `json:"start_at"`
	DueAt      time.Time `json:"due_at"`
	Paid       bool      `json:"paid"`
}

type HedgeContract struct {
	UserID        string    `json:"user_id"`
	AmountPerDay  int64     `json:"amount_per_day"`
	Accumulated   int64     `json:"accumulated"`
	LastUpdateJST time.Time `json:"last_update_jst"`
}

type Ticket struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Number    string    `json:"number"`
	Letter    string    `json:"letter"`
	DrawID    int64     `json:"draw_id"`
	IsWin     bool      `json:"is_win"`
	Prize     int64     `json:"prize"`
	Rank      *int      `json:"rank,omitempty"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
}

type DrawResult struct {
	DrawID    int64  `json:"draw_id"`
	Number    string `json:"number"`
	Letter    string `json:"letter"`
	Published bool   `json:"published"`
}

type DrawStatus struct {
	PendingDrawID int64       `json:"pending_draw_id"`
	LastPublished *DrawResult `json:"last_published,omitempty"`
}

type RepayResult struct {
	Recovered   int64 `json:"recovered"`
	LoansClosed int   `json:"loans_closed"`
	// Outstanding is the residual principal still owed after partial payments.
	Outstanding int64 `json:"outstanding"`
}

type JudgedTicket struct {
	Number string `json:"number"`
	Letter string `json:"letter"`
	DrawID int64  `json:"draw_id"`
	Rank   int    `json:"rank"`
	Prize  int64  `json:"prize"`
}

type ClaimResult struct {
	Judged     []JudgedTicket `json:"judged"`
	TotalPrize int64          `json:"total_prize"`
}

type LeaderboardRow struct {
	Rank     int64  `json:"rank"`
	UserID   string `json:"user_id"`
	Coins    int64  `json:"coins"`
	VIPCoins int64  `json:"vip_coins"`
}

type TradeResult struct {
	Shares   int64 `json:"shares"`
	Price    int64 `json:"price"`
	Total    int64 `json:"total"`
	Coins    int64 `json:"coins"`
	Holdings int64 `json:"holdings"`
}

type FlipResult struct {
	Won    bool  `json:"won"`
	Payout int64 `json:"payout"`
	Coins  int64 `json:"coins"`
}
