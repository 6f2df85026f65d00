package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"coin-ledger/internal/config"
	"coin-ledger/internal/ledger"
	"coin-ledger/internal/logging"
	"coin-ledger/internal/models"
)

const usage = `usage: ledger <command> [flags]

commands:
  balance                 print the current balance
  debit  -amount N        spend coins optimistically
  credit -amount N        grant coins optimistically
  payout -stake N         predict the net winnings of a staked game
  history [-limit N]      print the local transaction log
  sync                    push pending entries to the server
  watch                   keep syncing and listen for pushed balances
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		var insufficient *models.InsufficientFundsError
		if errors.As(err, &insufficient) {
			fmt.Fprintf(os.Stderr, "not enough coins: you need %d more\n", insufficient.Shortfall)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.Setup(cfg.LogLevel)
	logger := slog.Default().With("profile", cfg.Profile)

	client, err := ledger.NewRedisClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	store := ledger.NewRedisStore(client, cfg.Profile)
	api := ledger.NewAPIClient(cfg.APIBaseURL, cfg.HTTPTimeout)
	service := ledger.NewService(store, api, logger)
	syncer := ledger.NewSyncer(store, api, logger)
	feedback := ledger.NewFeedback(
		ledger.Settings{SoundEnabled: cfg.SoundEnabled, HapticsEnabled: cfg.HapticsEnabled},
		ledger.LogAudioPlayer{Logger: logger},
		nil,
		logger,
	)
	balances := ledger.NewBalanceContext(service, syncer, feedback, cfg.AuthToken, logger)
	defer balances.Wait()

	flags := flag.NewFlagSet(command, flag.ContinueOnError)
	amount := flags.Int64("amount", 0, "coins to move")
	reason := flags.String("reason", "", "reason recorded on the entry")
	gameID := flags.String("game", "", "game id stored in the entry metadata")
	stake := flags.Int64("stake", 0, "stake of each player")
	limit := flags.Int("limit", models.MaxLogEntries, "entries to print")
	if err := flags.Parse(args); err != nil {
		return err
	}

	metadata := models.Metadata{}
	if *gameID != "" {
		metadata["gameId"] = *gameID
	}

	switch command {
	case "balance":
		balance, err := balances.Load(ctx)
		if err != nil {
			return err
		}
		fmt.Println(models.FormatCoins(balance))

	case "debit", "credit":
		if _, err := balances.Load(ctx); err != nil {
			return err
		}
		var result *models.MutationResult
		if command == "debit" {
			result, err = balances.Debit(ctx, *amount, orDefault(*reason, models.ReasonGameBet), metadata)
		} else {
			result, err = balances.Credit(ctx, *amount, orDefault(*reason, models.ReasonReward), metadata)
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s %d -> %s (entry %s)\n", result.Entry.Kind, result.Entry.Amount, models.FormatCoins(result.NewBalance), result.Entry.ID)

	case "payout":
		payout, err := service.ComputeNetWinnings(*stake, cfg.PayoutRatio)
		if err != nil {
			return err
		}
		fmt.Printf("pot %d, net %d, commission %d\n", payout.Pot, payout.Net, payout.Commission)

	case "history":
		entries, err := service.History(ctx, *limit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %-6s %8d  %-12s %-9s synced=%s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Amount, e.Reason, e.Status, strconv.FormatBool(e.Synced))
		}

	case "sync":
		result := balances.Sync(ctx)
		fmt.Printf("sync %s, sent %d\n", result.Status, result.Sent)
		if result.Err != nil {
			return result.Err
		}

	case "watch":
		return watch(ctx, cfg, balances, logger)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}

	return nil
}

func watch(ctx context.Context, cfg *config.Config, balances *ledger.BalanceContext, logger *slog.Logger) error {
	if err := balances.OnForeground(ctx); err != nil {
		return err
	}

	updates, cancel := balances.Subscribe()
	defer cancel()

	listener := ledger.NewRealtimeListener(cfg.WSURL, balances.Token, balances.ApplyServerBalance, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		balances.RunSync(ctx, cfg.SyncInterval)
		return nil
	})
	g.Go(func() error {
		return listener.Run(ctx)
	})
	g.Go(func() error {
		for {
			select {
			case balance, ok := <-updates:
				if !ok {
					return nil
				}
				fmt.Println(models.FormatCoins(balance))
			case <-ctx.Done():
				return nil
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
