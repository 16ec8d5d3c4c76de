package cli

import (
	"context"
	"errors"
	"time"

	"concurso-duel/internal/domain"
	pginfra "concurso-duel/internal/infra/postgres"
	"github.com/spf13/cobra"
)

var timeNow = time.Now

// withEnv adapts a command body that needs the loaded env and a printer.
func withEnv(configPath *string, run func(ctx context.Context, e *env, p printer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd.Context(), *configPath, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer e.close()
		return run(cmd.Context(), e, printer{w: cmd.OutOrStdout(), format: output}, args)
	}
}

// NewCreateCmd challenges another player.
func NewCreateCmd(configPath *string) *cobra.Command {
	var req domain.CreateDuelRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Challenge a player to a duel",
		RunE: withEnv(configPath, func(ctx context.Context, e *env, p printer, _ []string) error {
			duel, err := e.client.CreateDuel(ctx, req)
			if err != nil {
				return err
			}
			e.logger.Info("duel created", "duel", duel.ID, "opponent", req.OpponentID)
			return printDuels(p, []domain.Duel{duel})
		}),
	}
	cmd.Flags().StringVar(&req.OpponentID, "opponent", "", "opponent user id")
	cmd.Flags().StringVar(&req.Subject, "subject", "", "subject of the duel")
	return cmd
}

func NewAcceptCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "accept <duel-id>",
		Short: "Accept a pending duel",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(configPath, func(ctx context.Context, e *env, p printer, args []string) error {
			duel, err := e.client.AcceptDuel(ctx, args[0])
			if err != nil {
				return err
			}
			return printDuels(p, []domain.Duel{duel})
		}),
	}
}

func NewDeclineCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "decline <duel-id>",
		Short: "Decline or abandon a duel",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(configPath, func(ctx context.Context, e *env, p printer, args []string) error {
			stats, err := e.client.GetStats(ctx)
			if err == nil && stats.AbandonBlocked(timeNow()) {
				return domain.ErrAbandonBlocked
			}
			duel, err := e.client.DeclineDuel(ctx, args[0])
			if err != nil {
				return err
			}
			return printDuels(p, []domain.Duel{duel})
		}),
	}
}

func NewPendingCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List duels waiting for you",
		RunE: withEnv(configPath, func(ctx context.Context, e *env, p printer, _ []string) error {
			duels, err := e.client.ListPending(ctx)
			if err != nil {
				return err
			}
			return printDuels(p, duels)
		}),
	}
}

func NewHistoryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your finished duels",
		RunE: withEnv(configPath, func(ctx context.Context, e *env, p printer, _ []string) error {
			duels, err := e.client.ListHistory(ctx)
			if err != nil {
				return err
			}
			return printDuels(p, duels)
		}),
	}
}

func NewOnlineCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "online",
		Short: "List players available for a duel",
		RunE: withEnv(configPath, func(ctx context.Context, e *env, p printer, _ []string) error {
			users, err := e.client.ListOnline(ctx)
			if err != nil {
				return err
			}
			return printOnline(p, users)
		}),
	}
}

func NewRankingCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ranking",
		Short: "Show the duel ranking",
		RunE: withEnv(configPath, func(ctx context.Context, e *env, p printer, _ []string) error {
			entries, err := e.client.ListRanking(ctx)
			if err != nil {
				return err
			}
			return printRanking(p, entries)
		}),
	}
}

func NewStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show your duel stats and abandon limits",
		RunE: withEnv(configPath, func(ctx context.Context, e *env, p printer, _ []string) error {
			stats, err := e.client.GetStats(ctx)
			if err != nil {
				return err
			}
			return printStats(p, stats)
		}),
	}
}

// NewQueueCmd manages the matchmaking queue.
func NewQueueCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Join or leave the matchmaking queue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "join",
		Short: "Join the matchmaking queue",
		RunE: withEnv(configPath, func(ctx context.Context, e *env, p printer, _ []string) error {
			ticket, err := e.client.JoinQueue(ctx)
			if err != nil {
				return err
			}
			if ticket.DuelID != "" {
				e.logger.Info("matched", "duel", ticket.DuelID)
			}
			return printTicket(p, ticket)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "leave",
		Short: "Leave the matchmaking queue",
		RunE: withEnv(configPath, func(ctx context.Context, e *env, p printer, _ []string) error {
			ticket, err := e.client.LeaveQueue(ctx)
			if err != nil {
				return err
			}
			return printTicket(p, ticket)
		}),
	})
	return cmd
}

// NewRewardsCmd lists rewards recorded in the durable ledger.
func NewRewardsCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "rewards",
		Short: "List fired duel rewards",
		RunE: withEnv(configPath, func(ctx context.Context, e *env, p printer, _ []string) error {
			if e.cfg.Postgres.URL == "" {
				return errors.New("postgres url not configured")
			}
			db := pginfra.OpenDB(e.cfg.Postgres.URL)
			defer db.Close()
			events, err := pginfra.NewRewardArchive(db).Recent(ctx, limit)
			if err != nil {
				return err
			}
			return printRewards(p, events)
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of rewards")
	return cmd
}
