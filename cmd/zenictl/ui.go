package main

import (
	"fmt"
	"time"

	"zeni/internal/economy"

	"github.com/fatih/color"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func renderBalance(b economy.Balance) {
	accent.Printf("%s\n", b.UserID)
	neutral.Printf("  coins:     %d\n", b.Coins)
	neutral.Printf("  vip coins: %d\n", b.VIPCoins)
}

func renderLeaderboard(rows []economy.LeaderboardRow) {
	if len(rows) == 0 {
		warn.Println("no balances yet")
		return
	}
	accent.Println("rank  coins          user")
	for _, r := range rows {
		neutral.Printf("%4d  %-13d %s\n", r.Rank, r.Coins, r.UserID)
	}
}

func renderLoans(loans []economy.Loan) {
	if len(loans) == 0 {
		warn.Println("no loans")
		return
	}
	for _, l := range loans {
		state := "unpaid"
		printer := warn
		if l.Paid {
			state = "paid"
			printer = success
		}
		printer.Printf("#%d %s\n", l.ID, state)
		neutral.Printf("  principal: %d  owed: %d  days: %d\n", l.Principal, l.TotalDue, l.DaysPassed)
		neutral.Printf("  due: %s\n", l.DueAt.Local().Format(time.RFC1123))
	}
}

func renderHedge(c economy.HedgeContract, owed int64) {
	accent.Printf("%s\n", c.UserID)
	neutral.Printf("  per day:     %d\n", c.AmountPerDay)
	neutral.Printf("  accumulated: %d\n", c.Accumulated)
	neutral.Printf("  owed now:    %d\n", owed)
	neutral.Printf("  last update: %s\n", c.LastUpdateJST.In(economy.JST).Format(time.RFC1123))
}

func renderDraw(st economy.DrawStatus) {
	accent.Printf("pending draw: #%d\n", st.PendingDrawID)
	if st.LastPublished == nil {
		warn.Println("no published result yet")
		return
	}
	success.Printf("last result:  %s-%s", st.LastPublished.Number, st.LastPublished.Letter)
	fmt.Printf("  (draw #%d)\n", st.LastPublished.DrawID)
}
