package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"concurso-duel/internal/app"
	"concurso-duel/internal/config"
	"concurso-duel/internal/domain"
	"concurso-duel/internal/transport/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// NewPlayCmd opens the live view of a duel.
func NewPlayCmd(configPath *string) *cobra.Command {
	var headless, fullscreen bool
	cmd := &cobra.Command{
		Use:   "play <duel-id>",
		Short: "Play a duel in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := loadEnv(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			if headless {
				return runHeadless(ctx, e, args[0])
			}
			return runPlay(ctx, e, args[0], fullscreen)
		},
	}
	cmd.Flags().BoolVar(&headless, "headless", false, "log frames instead of starting the terminal UI")
	cmd.Flags().BoolVar(&fullscreen, "fullscreen", false, "start in the alternate screen")
	return cmd
}

func newSession(e *env, duelID string, notifier app.Notifier) (*app.DuelSession, *app.Syncer) {
	rewards := app.NewRewardHook(e.principal.UserID, e.rewardLedger(), notifier, e.logger)
	session := app.NewDuelSession(duelID, e.principal.UserID, e.client, app.SessionOptions{
		Notifier: notifier,
		Rewards:  rewards,
		Logger:   e.logger.With("duel", duelID),
	})
	syncer := app.NewSyncer(e.client, e.pushChannel(), e.snapshotStore(),
		config.Duration(e.cfg.Sync.PollInterval, domain.PollInterval), e.logger)
	return session, syncer
}

func runPlay(ctx context.Context, e *env, duelID string, fullscreen bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	notices := tui.NewNotices()
	session, syncer := newSession(e, duelID, notices)
	defer session.Close()

	go func() {
		if err := syncer.Run(ctx, session); err != nil && ctx.Err() == nil {
			e.logger.Error("duel sync stopped", "error", err)
			notices.Notify(app.Notice{Kind: app.NoticeError, Message: "Could not load the duel"})
		}
	}()

	var opts []tea.ProgramOption
	if fullscreen {
		opts = append(opts, tea.WithAltScreen())
		session.SetFullscreen(true)
	}
	return tui.Run(ctx, tui.New(ctx, session, syncer, notices, e.logger), opts...)
}

// runHeadless follows the duel and logs every frame until it finishes.
func runHeadless(ctx context.Context, e *env, duelID string) error {
	session, syncer := newSession(e, duelID, app.LogNotifier{Logger: e.logger})
	defer session.Close()

	frames, cancel := session.Subscribe()
	defer cancel()
	go func() {
		for f := range frames {
			e.logger.Info("duel frame",
				"screen", string(f.Screen),
				"round", f.Round,
				"score", fmt.Sprintf("%d-%d", f.Player.Score, f.Rival.Score),
				"remaining", f.Remaining)
		}
	}()

	return syncer.Run(ctx, session)
}
