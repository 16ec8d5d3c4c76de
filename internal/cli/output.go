package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"concurso-duel/internal/domain"
	pginfra "concurso-duel/internal/infra/postgres"
	"gopkg.in/yaml.v3"
)

const (
	outputTable = "table"
	outputYAML  = "yaml"
)

// printer writes either a yaml document of v or a table built by rows.
type printer struct {
	w      io.Writer
	format string
}

func (p printer) print(v any, header []string, rows [][]string) error {
	switch p.format {
	case outputYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case outputTable, "":
		tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(header, "\t"))
		for _, row := range rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", p.format)
	}
}

func printDuels(p printer, duels []domain.Duel) error {
	rows := make([][]string, 0, len(duels))
	for _, d := range duels {
		rows = append(rows, []string{
			d.ID,
			string(d.Status),
			userLabel(d.Challenger),
			userLabel(d.Opponent),
			d.Subject,
			fmt.Sprintf("%d/%d", d.CurrentRound, domain.RoundsPerDuel),
			fmt.Sprintf("%d-%d", d.ChallengerScore, d.OpponentScore),
		})
	}
	return p.print(duels, []string{"ID", "STATUS", "CHALLENGER", "OPPONENT", "SUBJECT", "ROUND", "SCORE"}, rows)
}

func printOnline(p printer, users []domain.OnlineUser) error {
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		busy := "no"
		if u.InDuel {
			busy = "yes"
		}
		rows = append(rows, []string{u.User.ID, u.User.Name, busy})
	}
	return p.print(users, []string{"ID", "NAME", "IN DUEL"}, rows)
}

func printRanking(p printer, entries []domain.RankingEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, r := range entries {
		rows = append(rows, []string{
			fmt.Sprint(r.Position), userLabel(r.User),
			fmt.Sprint(r.Wins), fmt.Sprint(r.Losses), fmt.Sprint(r.Points),
		})
	}
	return p.print(entries, []string{"#", "PLAYER", "WINS", "LOSSES", "POINTS"}, rows)
}

func printStats(p printer, stats domain.DuelStats) error {
	blocked := "-"
	if stats.AbandonBlockedUntil != nil {
		blocked = stats.AbandonBlockedUntil.Local().Format(time.DateTime)
	}
	rows := [][]string{
		{"wins", fmt.Sprint(stats.Wins)},
		{"losses", fmt.Sprint(stats.Losses)},
		{"draws", fmt.Sprint(stats.Draws)},
		{"xp", fmt.Sprint(stats.XP)},
		{"abandons today", fmt.Sprint(stats.DailyAbandonCount)},
		{"abandon blocked until", blocked},
	}
	return p.print(stats, []string{"STAT", "VALUE"}, rows)
}

func printTicket(p printer, t domain.QueueTicket) error {
	row := []string{fmt.Sprint(t.Queued), fmt.Sprint(t.Position), t.DuelID}
	return p.print(t, []string{"QUEUED", "POSITION", "DUEL"}, [][]string{row})
}

func printRewards(p printer, events []pginfra.RewardEvent) error {
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []string{ev.DuelID, string(ev.Outcome), ev.FiredAt.Local().Format(time.DateTime)})
	}
	return p.print(events, []string{"DUEL", "OUTCOME", "FIRED AT"}, rows)
}

func userLabel(u domain.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
