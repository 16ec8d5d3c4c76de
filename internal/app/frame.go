package app

import (
	"time"

	"concurso-duel/internal/domain"
)

// Screen is the top-level state of the duel view.
type Screen string

const (
	ScreenLoading   Screen = "loading"
	ScreenWaiting   Screen = "waiting"
	ScreenPlaying   Screen = "playing"
	ScreenVictory   Screen = "victory"
	ScreenDefeat    Screen = "defeat"
	ScreenDraw      Screen = "draw"
	ScreenCancelled Screen = "cancelled"
)

// OptionView is one answer button.
type OptionView struct {
	Index    int
	Key      string
	Text     string
	Selected bool
	Enabled  bool
}

// PlayerView is one side of the scoreboard.
type PlayerView struct {
	User  domain.User
	Score int
	Marks [domain.RoundsPerDuel]domain.RoundMark
}

// Frame is an immutable render of the session. It depends only on the latest
// snapshot and the local UI state.
type Frame struct {
	DuelID      string
	Screen      Screen
	Status      domain.Status
	Subject     string
	Round       int
	Rounds      int
	Difficulty  domain.Difficulty
	Statement   string
	Options     []OptionView
	Answer      AnswerStatus
	Selected    int // -1 when nothing is selected
	CanAnswer   bool
	Remaining   int
	Player      PlayerView
	Rival       PlayerView
	SuddenDeath bool
	Winner      *domain.User

	Focus               bool
	Fullscreen          bool
	ConfirmingAbandon   bool
	AbandonBlockedUntil *time.Time
}

// Frame renders the current state.
func (s *DuelSession) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked()
}

func (s *DuelSession) frameLocked() Frame {
	f := Frame{
		DuelID:            s.duelID,
		Screen:            ScreenLoading,
		Rounds:            domain.RoundsPerDuel,
		Selected:          -1,
		Remaining:         s.remaining,
		Focus:             s.focus,
		Fullscreen:        s.fullscreen,
		ConfirmingAbandon: s.confirmingAbandon,
	}
	if s.stats.AbandonBlocked(s.now()) {
		until := *s.stats.AbandonBlockedUntil
		f.AbandonBlockedUntil = &until
	}
	if s.duel == nil {
		return f
	}

	d := *s.duel
	f.Status = d.Status
	f.Subject = d.Subject
	f.Round = d.CurrentRound
	f.SuddenDeath = d.SuddenDeath
	f.Winner = d.Winner
	f.Screen = screenFor(d, s.userID)

	side := d.Side(s.userID)
	f.Player = PlayerView{User: d.Challenger, Score: d.ChallengerScore, Marks: d.RoundMarks(domain.SideChallenger)}
	f.Rival = PlayerView{User: d.Opponent, Score: d.OpponentScore, Marks: d.RoundMarks(domain.SideOpponent)}
	if side == domain.SideOpponent {
		f.Player, f.Rival = f.Rival, f.Player
	}

	if s.answer.status != AnswerNone && s.answer.round == d.CurrentRound {
		f.Answer = s.answer.status
		f.Selected = s.answer.index
	}
	f.CanAnswer = d.Status == domain.StatusInProgress && side != domain.SideNone && f.Answer == AnswerNone

	if q, ok := d.QuestionForRound(d.CurrentRound); ok {
		f.Difficulty = q.Difficulty
		f.Statement = q.Question.Statement
		for i, key := range q.Question.OptionKeys() {
			f.Options = append(f.Options, OptionView{
				Index:    i,
				Key:      key,
				Text:     q.Question.Options[key],
				Selected: i == f.Selected,
				Enabled:  f.CanAnswer,
			})
		}
	}
	return f
}

func screenFor(d domain.Duel, userID string) Screen {
	switch d.Status {
	case domain.StatusPending:
		return ScreenWaiting
	case domain.StatusInProgress:
		return ScreenPlaying
	case domain.StatusCancelled:
		return ScreenCancelled
	case domain.StatusCompleted:
		switch d.Outcome(userID) {
		case domain.OutcomeVictory:
			return ScreenVictory
		case domain.OutcomeDefeat:
			return ScreenDefeat
		default:
			return ScreenDraw
		}
	default:
		return ScreenLoading
	}
}
