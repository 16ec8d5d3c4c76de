package app

import (
	"log/slog"
	"time"
)

// NoticeKind classifies a transient user-facing notification.
type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeError   NoticeKind = "error"
	NoticeBlocked NoticeKind = "blocked"
	NoticeReward  NoticeKind = "reward"
)

// Notice is a toast or reward overlay raised by the session.
type Notice struct {
	Kind    NoticeKind
	Message string
	Reward  *Reward
	At      time.Time
}

// Notifier receives notices. Implementations must not block for long; the
// session calls them outside its lock but on the caller's goroutine.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a structured logger. Used when no UI is attached.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(notice Notice) {
	attrs := []any{"kind", string(notice.Kind)}
	if notice.Reward != nil {
		attrs = append(attrs, "duel", notice.Reward.DuelID, "outcome", string(notice.Reward.Outcome))
	}
	switch notice.Kind {
	case NoticeError, NoticeBlocked:
		n.Logger.Warn(notice.Message, attrs...)
	default:
		n.Logger.Info(notice.Message, attrs...)
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(Notice) {}
