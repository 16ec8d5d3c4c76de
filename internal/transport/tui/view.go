package tui

import (
	"fmt"
	"strings"

	"concurso-duel/internal/app"
	"concurso-duel/internal/domain"
)

func (m *Model) View() string {
	return Render(m.frame, m.toast)
}

// Render draws a frame plus an optional toast.
func Render(f app.Frame, toast *app.Notice) string {
	var b strings.Builder

	switch f.Screen {
	case app.ScreenLoading:
		b.WriteString("Loading duel...\n")
	case app.ScreenWaiting:
		header(&b, f)
		b.WriteString("\nWaiting for your opponent to accept.\n")
	case app.ScreenPlaying:
		header(&b, f)
		if !f.Focus {
			scoreboard(&b, f)
		}
		question(&b, f)
	case app.ScreenVictory, app.ScreenDefeat, app.ScreenDraw:
		result(&b, f)
	case app.ScreenCancelled:
		fmt.Fprintf(&b, "Duel cancelled.\n\nPress q to return to the lobby.\n")
	}

	if f.ConfirmingAbandon {
		b.WriteString("\nAbandon this duel? Abandoning counts towards your daily limit. (y/n)\n")
	} else if f.AbandonBlockedUntil != nil && f.Screen == app.ScreenPlaying {
		fmt.Fprintf(&b, "\nAbandon blocked until %s\n", f.AbandonBlockedUntil.Local().Format("15:04"))
	}
	if toast != nil {
		fmt.Fprintf(&b, "\n%s %s\n", toastIcon(toast.Kind), toast.Message)
	}
	if !f.Focus {
		b.WriteString("\n" + help(f) + "\n")
	}
	return b.String()
}

func header(b *strings.Builder, f app.Frame) {
	fmt.Fprintf(b, "Duel · %s\n", f.Subject)
	if f.Screen != app.ScreenPlaying {
		return
	}
	fmt.Fprintf(b, "Round %d/%d", f.Round, f.Rounds)
	if f.Difficulty != "" {
		fmt.Fprintf(b, "  %s", f.Difficulty)
	}
	if f.SuddenDeath {
		b.WriteString("  SUDDEN DEATH")
	}
	fmt.Fprintf(b, "  ⏱ %ds\n", f.Remaining)
}

func scoreboard(b *strings.Builder, f app.Frame) {
	fmt.Fprintf(b, "\n%-16s %2d  %s\n", displayName(f.Player.User, "You"), f.Player.Score, marks(f.Player.Marks))
	fmt.Fprintf(b, "%-16s %2d  %s\n", displayName(f.Rival.User, "Rival"), f.Rival.Score, marks(f.Rival.Marks))
}

func marks(m [domain.RoundsPerDuel]domain.RoundMark) string {
	var b strings.Builder
	for _, mark := range m {
		switch mark {
		case domain.MarkCorrect:
			b.WriteString("✓")
		case domain.MarkIncorrect:
			b.WriteString("✗")
		default:
			b.WriteString("·")
		}
	}
	return b.String()
}

func question(b *strings.Builder, f app.Frame) {
	fmt.Fprintf(b, "\n%s\n\n", f.Statement)
	for _, opt := range f.Options {
		cursor := " "
		if opt.Selected {
			cursor = ">"
		}
		fmt.Fprintf(b, "%s %d) %s: %s\n", cursor, opt.Index+1, opt.Key, opt.Text)
	}
	switch f.Answer {
	case app.AnswerPending:
		b.WriteString("\nSending answer...\n")
	case app.AnswerConfirmed:
		b.WriteString("\nAnswer sent, waiting for the round to close.\n")
	default:
		if f.Remaining == 0 {
			b.WriteString("\nTime is up, waiting for the round to close.\n")
		}
	}
}

func result(b *strings.Builder, f app.Frame) {
	switch f.Screen {
	case app.ScreenVictory:
		b.WriteString("Victory!\n")
	case app.ScreenDefeat:
		b.WriteString("Defeat.\n")
	default:
		b.WriteString("Draw.\n")
	}
	fmt.Fprintf(b, "\n%s %d x %d %s\n",
		displayName(f.Player.User, "You"), f.Player.Score,
		f.Rival.Score, displayName(f.Rival.User, "Rival"))
	b.WriteString("\nPress q to return to the lobby.\n")
}

func help(f app.Frame) string {
	if f.ConfirmingAbandon {
		return "y confirm · n cancel"
	}
	parts := []string{}
	if f.CanAnswer {
		parts = append(parts, "1-9 answer")
	}
	parts = append(parts, "f focus", "F fullscreen")
	if f.Status.Active() {
		parts = append(parts, "x abandon")
	}
	parts = append(parts, "r refresh", "q quit")
	return strings.Join(parts, " · ")
}

func displayName(u domain.User, fallback string) string {
	if u.Name != "" {
		return u.Name
	}
	if u.ID != "" {
		return u.ID
	}
	return fallback
}

func toastIcon(kind app.NoticeKind) string {
	switch kind {
	case app.NoticeError:
		return "!"
	case app.NoticeBlocked:
		return "⛔"
	case app.NoticeReward:
		return "★"
	default:
		return "·"
	}
}
