package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"concurso-duel/internal/apitest"
	"concurso-duel/internal/domain"
	"gopkg.in/yaml.v3"
)

func runCLI(t *testing.T, srv *apitest.Server, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "api:\n  url: " + srv.URL + "\n  token: u1\nuser:\n  id: u1\nlog:\n  level: error\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", path}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestPendingPrintsTable(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.PutDuel(domain.Duel{
		ID:           "duel-7",
		Status:       domain.StatusPending,
		Challenger:   domain.User{ID: "u2", Name: "Bia"},
		Opponent:     domain.User{ID: "u1", Name: "Ana"},
		Subject:      "Raciocínio Lógico",
		CurrentRound: 1,
	})

	out, err := runCLI(t, srv, "pending")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	for _, want := range []string{"duel-7", "PENDING", "Bia", "Raciocínio Lógico", "1/10"} {
		if !strings.Contains(lines[1], want) {
			t.Fatalf("row missing %q: %s", want, lines[1])
		}
	}
}

func TestRankingPrintsYAML(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.SetRanking([]domain.RankingEntry{
		{Position: 1, User: domain.User{ID: "u2", Name: "Bia"}, Wins: 9, Points: 900},
	})

	out, err := runCLI(t, srv, "ranking", "--output", "yaml")
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	var entries []domain.RankingEntry
	if err := yaml.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("parse yaml: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].Wins != 9 || entries[0].User.Name != "Bia" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestCreateValidatesBeforeCallingBackend(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	if _, err := runCLI(t, srv, "create", "--subject", "Direito"); err == nil {
		t.Fatalf("expected validation error without opponent")
	}
	if n := srv.Calls("POST /duelos"); n != 0 {
		t.Fatalf("invalid request reached the backend %d times", n)
	}

	out, err := runCLI(t, srv, "create", "--opponent", "u2", "--subject", "Direito")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "PENDING") || !strings.Contains(out, "Direito") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestQueueJoinAndLeave(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	out, err := runCLI(t, srv, "queue", "join")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if !strings.Contains(out, "true") {
		t.Fatalf("expected queued ticket:\n%s", out)
	}
	if _, err := runCLI(t, srv, "queue", "leave"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if srv.Calls("POST /duelos/queue/leave") != 1 {
		t.Fatalf("expected leave call")
	}
}

func TestRewardsRequiresPostgres(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	if _, err := runCLI(t, srv, "rewards"); err == nil || !strings.Contains(err.Error(), "postgres") {
		t.Fatalf("expected postgres error, got %v", err)
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	var buf bytes.Buffer
	err := printer{w: &buf, format: "xml"}.print(nil, nil, nil)
	if err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
