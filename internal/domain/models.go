package domain

import (
	"sort"
	"time"
)

const (
	// RoundsPerDuel is the fixed number of questions in every duel.
	RoundsPerDuel = 10
	// RoundSeconds is the visual countdown per round; the server owns the real timeout.
	RoundSeconds = 30
	// PollInterval is how often the client re-fetches an active duel.
	PollInterval = 8 * time.Second
)

// Status is the server-owned lifecycle of a duel.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// Rank orders statuses so that backwards transitions can be detected.
// Both terminal statuses share the highest rank.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusInProgress:
		return 2
	case StatusCompleted, StatusCancelled:
		return 3
	default:
		return 0
	}
}

// Terminal reports whether no further updates are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether the duel still needs syncing.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusInProgress
}

// Difficulty of a single round.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// User is the public reference to a player.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Question is the statement and choices shown for a round.
// Options maps a choice key (A, B, ...) to its text.
type Question struct {
	Statement string            `json:"statement"`
	Options   map[string]string `json:"options"`
}

// OptionKeys returns the choice keys in display order. Answer indexes refer to this order.
func (q Question) OptionKeys() []string {
	keys := make([]string, 0, len(q.Options))
	for k := range q.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DuelQuestion is one round of a duel. Answer and correctness fields stay nil
// until the player answers and the server resolves the round.
type DuelQuestion struct {
	RoundNumber           int        `json:"roundNumber"`
	Difficulty            Difficulty `json:"difficulty"`
	Question              Question   `json:"question"`
	ChallengerAnswerIndex *int       `json:"challengerAnswerIndex,omitempty"`
	OpponentAnswerIndex   *int       `json:"opponentAnswerIndex,omitempty"`
	ChallengerCorrect     *bool      `json:"challengerCorrect,omitempty"`
	OpponentCorrect       *bool      `json:"opponentCorrect,omitempty"`
}

// Duel is the server-owned snapshot of a two-player quiz match.
type Duel struct {
	ID              string         `json:"id"`
	Status          Status         `json:"status"`
	Challenger      User           `json:"challenger"`
	Opponent        User           `json:"opponent"`
	ChallengerScore int            `json:"challengerScore"`
	OpponentScore   int            `json:"opponentScore"`
	CurrentRound    int            `json:"currentRound"`
	SuddenDeath     bool           `json:"suddenDeath"`
	Subject         string         `json:"subject"`
	Questions       []DuelQuestion `json:"questions"`
	Winner          *User          `json:"winner,omitempty"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
	Version         int64          `json:"version,omitempty"` // optional, 0 when the backend does not send it
}

// Side identifies which seat a user occupies in a duel.
type Side int

const (
	SideNone Side = iota
	SideChallenger
	SideOpponent
)

// Side returns the seat of userID, or SideNone for spectators.
func (d Duel) Side(userID string) Side {
	switch userID {
	case "":
		return SideNone
	case d.Challenger.ID:
		return SideChallenger
	case d.Opponent.ID:
		return SideOpponent
	default:
		return SideNone
	}
}

// QuestionForRound finds the question of a 1-based round number.
func (d Duel) QuestionForRound(round int) (DuelQuestion, bool) {
	for _, q := range d.Questions {
		if q.RoundNumber == round {
			return q, true
		}
	}
	// fall back to position when the backend omits roundNumber
	if round >= 1 && round <= len(d.Questions) && d.Questions[round-1].RoundNumber == 0 {
		return d.Questions[round-1], true
	}
	return DuelQuestion{}, false
}

// AnswerIndex returns the answer a side gave for the question, if any.
func (q DuelQuestion) AnswerIndex(side Side) *int {
	switch side {
	case SideChallenger:
		return q.ChallengerAnswerIndex
	case SideOpponent:
		return q.OpponentAnswerIndex
	default:
		return nil
	}
}

// Correct returns the server verdict for a side, nil while unresolved.
func (q DuelQuestion) Correct(side Side) *bool {
	switch side {
	case SideChallenger:
		return q.ChallengerCorrect
	case SideOpponent:
		return q.OpponentCorrect
	default:
		return nil
	}
}

// RoundMark is the per-round indicator shown on the score tracker.
type RoundMark int

const (
	MarkUnresolved RoundMark = iota
	MarkCorrect
	MarkIncorrect
)

// RoundMarks returns one mark per round for the given side, independent of
// whether the round has been reached yet.
func (d Duel) RoundMarks(side Side) [RoundsPerDuel]RoundMark {
	var marks [RoundsPerDuel]RoundMark
	for round := 1; round <= RoundsPerDuel; round++ {
		q, ok := d.QuestionForRound(round)
		if !ok {
			continue
		}
		if c := q.Correct(side); c != nil {
			if *c {
				marks[round-1] = MarkCorrect
			} else {
				marks[round-1] = MarkIncorrect
			}
		}
	}
	return marks
}

// Outcome is the result of a completed duel from one player's point of view.
type Outcome string

const (
	OutcomeVictory Outcome = "victory"
	OutcomeDefeat  Outcome = "defeat"
	OutcomeDraw    Outcome = "draw"
)

// Outcome maps the winner to victory, defeat or draw for userID.
// A nil winner is a draw.
func (d Duel) Outcome(userID string) Outcome {
	if d.Winner == nil || d.Winner.ID == "" {
		return OutcomeDraw
	}
	if d.Winner.ID == userID {
		return OutcomeVictory
	}
	return OutcomeDefeat
}

// DuelStats holds the caller's duel counters and abandon restrictions.
type DuelStats struct {
	DailyAbandonCount   int        `json:"dailyAbandonCount"`
	AbandonBlockedUntil *time.Time `json:"abandonBlockedUntil,omitempty"`
	Wins                int        `json:"wins,omitempty"`
	Losses              int        `json:"losses,omitempty"`
	Draws               int        `json:"draws,omitempty"`
	XP                  int        `json:"xp,omitempty"`
}

// AbandonBlocked reports whether abandoning is currently disabled.
func (s DuelStats) AbandonBlocked(now time.Time) bool {
	return s.AbandonBlockedUntil != nil && now.Before(*s.AbandonBlockedUntil)
}

// CreateDuelRequest challenges an opponent on a subject.
type CreateDuelRequest struct {
	OpponentID string `json:"opponentId" validate:"required"`
	Subject    string `json:"subject" validate:"required,max=120"`
}

// RankingEntry is one row of the duel ranking.
type RankingEntry struct {
	Position int  `json:"position"`
	User     User `json:"user"`
	Wins     int  `json:"wins"`
	Losses   int  `json:"losses"`
	Points   int  `json:"points"`
}

// OnlineUser is a player currently available to be challenged.
type OnlineUser struct {
	User   User `json:"user"`
	InDuel bool `json:"inDuel"`
}

// QueueTicket describes the caller's matchmaking queue state.
type QueueTicket struct {
	Queued   bool   `json:"queued"`
	Position int    `json:"position,omitempty"`
	DuelID   string `json:"duelId,omitempty"` // set when matchmaking paired the caller immediately
}
