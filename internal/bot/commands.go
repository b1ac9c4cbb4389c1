package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zeni/internal/economy"

	"github.com/bwmarrin/discordgo"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	minOne := float64(1)
	return []*discordgo.ApplicationCommand{
		{
			Name:        "balance",
			Description: "Show your coin and VIP coin balances",
		},
		{
			Name:        "pay",
			Description: "Send coins to another user",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "to", Description: "Recipient", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Coins to send", Required: true, MinValue: &minOne},
			},
		},
		{
			Name:        "borrow",
			Description: "Take a loan (5% daily compound interest, due in 7 days)",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Principal, up to 1,000,000", Required: true, MinValue: &minOne},
			},
		},
		{
			Name:        "repay",
			Description: "Repay your outstanding loan from your coin balance",
		},
		{
			Name:        "hedge",
			Description: "Hedge contract: fixed daily payout, claim whenever",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "open",
					Description: "Open a contract (upfront fee applies)",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type: discordgo.ApplicationCommandOptionInteger, Name: "daily",
							Description: "Daily payout amount", Required: true,
							Choices: []*discordgo.ApplicationCommandOptionChoice{
								{Name: "1,000 / day", Value: 1000},
								{Name: "5,000 / day", Value: 5000},
								{Name: "10,000 / day", Value: 10000},
							},
						},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "show", Description: "Show the amount accrued so far"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "claim", Description: "Cash out and close the contract"},
			},
		},
		{
			Name:        "lotto",
			Description: "Lottery: draws every 30 minutes",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "buy", Description: "Buy a random ticket for the pending draw"},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "pick",
					Description: "Buy a ticket with your own numbers",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionString, Name: "number", Description: "5 digits, e.g. 01234", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "letter", Description: "One letter A-Z", Required: true},
					},
				},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "claim", Description: "Check published draws and collect winnings"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "status", Description: "Show the pending draw and the last result"},
			},
		},
		{
			Name:        "stock",
			Description: "Trade the shared ZENI index",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "price", Description: "Current price and your holdings"},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "buy",
					Description: "Buy shares at the current price",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "qty", Description: "Whole shares", Required: true, MinValue: &minOne},
					},
				},
				{
					Type: discordgo.ApplicationCommandOptionSubCommand, Name: "sell",
					Description: "Sell shares at the current price",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionInteger, Name: "qty", Description: "Whole shares", Required: true, MinValue: &minOne},
					},
				},
			},
		},
		{
			Name:        "coinflip",
			Description: "Double or nothing",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Stake", Required: true, MinValue: &minOne},
			},
		},
		{
			Name:        "leaderboard",
			Description: "Top coin balances",
		},
	}
}

func (b *Bot) dispatch(ctx context.Context, userID string, data discordgo.ApplicationCommandInteractionData) (string, error) {
	now := time.Now()
	switch data.Name {
	case "balance":
		bal, err := b.econ.GetBalance(ctx, userID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Coins: **%d** / VIP coins: **%d**", bal.Coins, bal.VIPCoins), nil

	case "pay":
		var toID string
		var amount int64
		for _, opt := range data.Options {
			switch opt.Name {
			case "to":
				toID = opt.UserValue(nil).ID
			case "amount":
				amount = opt.IntValue()
			}
		}
		if err := b.econ.Transfer(ctx, userID, toID, amount); err != nil {
			return "", err
		}
		return fmt.Sprintf("Sent **%d** coins to <@%s>.", amount, toID), nil

	case "borrow":
		amount := data.Options[0].IntValue()
		loan, err := b.econ.Borrow(ctx, userID, amount, now)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Borrowed **%d** coins. You owe **%d**, due <t:%d:R>.",
			loan.Principal, loan.TotalDue, loan.DueAt.Unix()), nil

	case "repay":
		res, err := b.econ.Repay(ctx, userID, now)
		if err != nil {
			return "", err
		}
		if res.Outstanding > 0 {
			return fmt.Sprintf("Paid **%d** coins. **%d** still outstanding; the interest clock has restarted.",
				res.Recovered, res.Outstanding), nil
		}
		return fmt.Sprintf("Paid **%d** coins. All loans settled.", res.Recovered), nil

	case "hedge":
		return b.dispatchHedge(ctx, userID, data.Options[0], now)

	case "lotto":
		return b.dispatchLotto(ctx, userID, data.Options[0], now)

	case "stock":
		return b.dispatchStock(ctx, userID, data.Options[0])

	case "coinflip":
		stake := data.Options[0].IntValue()
		res, err := b.econ.Coinflip(ctx, userID, stake)
		if err != nil {
			return "", err
		}
		if res.Won {
			return fmt.Sprintf("Heads! You won **%d** coins (balance: %d).", res.Payout, res.Coins), nil
		}
		return fmt.Sprintf("Tails... you lost **%d** coins (balance: %d).", stake, res.Coins), nil

	case "leaderboard":
		rows, err := b.econ.Leaderboard(ctx, 10)
		if err != nil {
			return "", err
		}
		if len(rows) == 0 {
			return "Nobody holds any coins yet.", nil
		}
		var sb strings.Builder
		sb.WriteString("**Top balances**\n")
		for _, r := range rows {
			fmt.Fprintf(&sb, "%d. <@%s> — %d coins\n", r.Rank, r.UserID, r.Coins)
		}
		return sb.String(), nil
	}
	return "", fmt.Errorf("%w: unknown command %q", economy.ErrValidation, data.Name)
}

func (b *Bot) dispatchHedge(ctx context.Context, userID string, sub *discordgo.ApplicationCommandInteractionDataOption, now time.Time) (string, error) {
	switch sub.Name {
	case "open":
		daily := sub.Options[0].IntValue()
		c, err := b.econ.OpenHedge(ctx, userID, daily, now)
		if err != nil {
			return "", err
		}
		fee, _ := economy.FeeForDailyAmount(daily)
		return fmt.Sprintf("Hedge contract opened: **%d**/day (fee **%d** charged).", c.AmountPerDay, fee), nil
	case "show":
		c, owed, err := b.econ.HedgeStatus(ctx, userID, now)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Hedge pays **%d**/day. Accrued so far: **%d** coins.", c.AmountPerDay, owed), nil
	case "claim":
		owed, err := b.econ.ClaimHedge(ctx, userID, now)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Hedge closed. **%d** coins paid out.", owed), nil
	}
	return "", fmt.Errorf("%w: unknown subcommand %q", economy.ErrValidation, sub.Name)
}

func (b *Bot) dispatchLotto(ctx context.Context, userID string, sub *discordgo.ApplicationCommandInteractionDataOption, now time.Time) (string, error) {
	switch sub.Name {
	case "buy":
		t, err := b.econ.BuyRandomTicket(ctx, userID, now)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Ticket **%s-%s** bought for draw #%d. Good luck!", t.Number, t.Letter, t.DrawID), nil
	case "pick":
		var number, letter string
		for _, opt := range sub.Options {
			switch opt.Name {
			case "number":
				number = strings.TrimSpace(opt.StringValue())
			case "letter":
				letter = strings.ToUpper(strings.TrimSpace(opt.StringValue()))
			}
		}
		t, err := b.econ.BuyPickedTicket(ctx, userID, number, letter, now)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Ticket **%s-%s** bought for draw #%d.", t.Number, t.Letter, t.DrawID), nil
	case "claim":
		res, err := b.econ.ClaimTickets(ctx, userID, now)
		if err != nil {
			return "", err
		}
		wins := 0
		for _, j := range res.Judged {
			if j.Prize > 0 {
				wins++
			}
		}
		if res.TotalPrize == 0 {
			return fmt.Sprintf("%d ticket(s) checked, no winners this time.", len(res.Judged)), nil
		}
		return fmt.Sprintf("%d ticket(s) checked, %d won — **%d** coins paid out!",
			len(res.Judged), wins, res.TotalPrize), nil
	case "status":
		st, err := b.econ.DrawStatus(ctx, now)
		if err != nil {
			return "", err
		}
		if st.LastPublished == nil {
			return fmt.Sprintf("Pending draw: #%d. No results published yet.", st.PendingDrawID), nil
		}
		return fmt.Sprintf("Pending draw: #%d. Last result: **%s-%s** (draw #%d).",
			st.PendingDrawID, st.LastPublished.Number, st.LastPublished.Letter, st.LastPublished.DrawID), nil
	}
	return "", fmt.Errorf("%w: unknown subcommand %q", economy.ErrValidation, sub.Name)
}

func (b *Bot) dispatchStock(ctx context.Context, userID string, sub *discordgo.ApplicationCommandInteractionDataOption) (string, error) {
	switch sub.Name {
	case "price":
		price, err := b.econ.MarketPrice(ctx)
		if err != nil {
			return "", err
		}
		shares, err := b.econ.Holdings(ctx, userID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ZENI index: **%d** coins/share. You hold **%d** share(s).", price, shares), nil
	case "buy":
		res, err := b.econ.BuyShares(ctx, userID, sub.Options[0].IntValue())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Bought **%d** share(s) at %d (total %d). Holdings: %d, coins: %d.",
			res.Shares, res.Price, res.Total, res.Holdings, res.Coins), nil
	case "sell":
		res, err := b.econ.SellShares(ctx, userID, sub.Options[0].IntValue())
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Sold **%d** share(s) at %d (total %d). Holdings: %d, coins: %d.",
			res.Shares, res.Price, res.Total, res.Holdings, res.Coins), nil
	}
	return "", fmt.Errorf("%w: unknown subcommand %q", economy.ErrValidation, sub.Name)
}
