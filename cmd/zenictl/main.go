package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	cl "zeni/internal/cli"
	"zeni/internal/config"
	"zeni/internal/economy"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadCLIFromEnv()

	root := &cobra.Command{
		Use:          "zenictl",
		Short:        "Admin CLI for the zeni economy bot",
		SilenceUsage: true,
	}

	root.AddCommand(
		newBalanceCmd(cfg),
		newSetBalanceCmd(cfg),
		newLeaderboardCmd(cfg),
		newLoansCmd(cfg),
		newHedgeCmd(cfg),
		newAdjustHedgeCmd(cfg),
		newDrawCmd(cfg),
		newPriceCmd(cfg),
		newAccrueCmd(cfg),
		newRotateCmd(cfg),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(cfg config.CLIConfig) *cl.Client {
	return cl.NewClient(cfg.APIBaseURL, cfg.AdminToken)
}

func newBalanceCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user_id>",
		Short: "Show a user's balances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out economy.Balance
			if err := newClient(cfg).Get(context.Background(), "/v1/balances/"+args[0], &out); err != nil {
				return err
			}
			renderBalance(out)
			return nil
		},
	}
}

func newSetBalanceCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "set-balance <user_id> <field> <value>",
		Short: "Overwrite a balance field (coins or vip_coins)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("value must be an integer: %w", err)
			}
			var out economy.Balance
			body := map[string]any{"field": args[1], "value": value}
			if err := newClient(cfg).Post(context.Background(), "/v1/admin/balances/"+args[0], body, &out); err != nil {
				return err
			}
			renderBalance(out)
			return nil
		},
	}
}

func newLeaderboardCmd(cfg config.CLIConfig) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Top coin balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Leaderboard []economy.LeaderboardRow `json:"leaderboard"`
			}
			path := fmt.Sprintf("/v1/leaderboard?limit=%d", limit)
			if err := newClient(cfg).Get(context.Background(), path, &out); err != nil {
				return err
			}
			renderLeaderboard(out.Leaderboard)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of rows")
	return cmd
}

func newLoansCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "loans <user_id>",
		Short: "List a user's loans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Loans []economy.Loan `json:"loans"`
			}
			if err := newClient(cfg).Get(context.Background(), "/v1/loans/"+args[0], &out); err != nil {
				return err
			}
			renderLoans(out.Loans)
			return nil
		},
	}
}

func newHedgeCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "hedge <user_id>",
		Short: "Show a user's hedge contract and amount owed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Contract economy.HedgeContract `json:"contract"`
				Owed     int64                 `json:"owed"`
			}
			if err := newClient(cfg).Get(context.Background(), "/v1/hedges/"+args[0], &out); err != nil {
				return err
			}
			renderHedge(out.Contract, out.Owed)
			return nil
		},
	}
}

func newAdjustHedgeCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "adjust-hedge <user_id> <delta>",
		Short: "Adjust a hedge's accumulated balance (0 resets it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("delta must be an integer: %w", err)
			}
			var out struct {
				Accumulated int64 `json:"accumulated"`
			}
			body := map[string]any{"delta": delta}
			if err := newClient(cfg).Post(context.Background(), "/v1/admin/hedges/"+args[0]+"/adjust", body, &out); err != nil {
				return err
			}
			success.Printf("accumulated is now %d\n", out.Accumulated)
			return nil
		},
	}
}

func newDrawCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "draw",
		Short: "Show the pending lottery draw and the last published result",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out economy.DrawStatus
			if err := newClient(cfg).Get(context.Background(), "/v1/lottery/draw", &out); err != nil {
				return err
			}
			renderDraw(out)
			return nil
		},
	}
}

func newPriceCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "price",
		Short: "Current index share price",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Price int64 `json:"price"`
			}
			if err := newClient(cfg).Get(context.Background(), "/v1/market/price", &out); err != nil {
				return err
			}
			accent.Printf("ZENI index: %d coins/share\n", out.Price)
			return nil
		},
	}
}

func newAccrueCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "accrue",
		Short: "Run the daily loan accrual job now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out struct {
				Accrued int `json:"accrued"`
			}
			if err := newClient(cfg).Post(context.Background(), "/v1/admin/jobs/accrue", nil, &out); err != nil {
				return err
			}
			success.Printf("accrued interest on %d loan(s)\n", out.Accrued)
			return nil
		},
	}
}

func newRotateCmd(cfg config.CLIConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Run the lottery draw rotation job now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out economy.DrawStatus
			if err := newClient(cfg).Post(context.Background(), "/v1/admin/jobs/rotate", nil, &out); err != nil {
				return err
			}
			renderDraw(out)
			return nil
		},
	}
}
