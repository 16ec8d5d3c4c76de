// Package tui renders a duel session in the terminal with bubbletea.
package tui

import (
	"context"
	"errors"
	"log/slog"

	"concurso-duel/internal/app"
	"concurso-duel/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
)

// Notices is an app.Notifier feeding the UI. Notify never blocks: when the UI
// falls behind, the newest notice is dropped.
type Notices chan app.Notice

func NewNotices() Notices {
	return make(Notices, 16)
}

func (n Notices) Notify(notice app.Notice) {
	select {
	case n <- notice:
	default:
	}
}

type (
	frameMsg        app.Frame
	noticeMsg       app.Notice
	framesClosedMsg struct{}
	exitMsg         struct{}
	fullscreenMsg   bool
)

// Model is the bubbletea model of one duel.
type Model struct {
	ctx     context.Context
	session *app.DuelSession
	syncer  *app.Syncer
	frames  <-chan app.Frame
	cancel  func()
	notices Notices
	logger  *slog.Logger

	frame app.Frame
	toast *app.Notice
}

// New subscribes to session frames. syncer may be nil, which disables manual refresh.
func New(ctx context.Context, session *app.DuelSession, syncer *app.Syncer, notices Notices, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	frames, cancel := session.Subscribe()
	return &Model{
		ctx:     ctx,
		session: session,
		syncer:  syncer,
		frames:  frames,
		cancel:  cancel,
		notices: notices,
		logger:  logger,
		frame:   session.Frame(),
	}
}

// Close releases the frame subscription.
func (m *Model) Close() {
	m.cancel()
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitFrame(m.frames), waitNotice(m.notices))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.frame = app.Frame(msg)
		return m, waitFrame(m.frames)
	case noticeMsg:
		n := app.Notice(msg)
		m.toast = &n
		return m, waitNotice(m.notices)
	case framesClosedMsg:
		return m, nil
	case exitMsg:
		return m, tea.Quit
	case fullscreenMsg:
		m.session.SetFullscreen(bool(msg))
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg.String())
	}
	return m, nil
}

func (m *Model) handleKey(key string) tea.Cmd {
	if key == "ctrl+c" || key == "q" {
		return tea.Quit
	}
	m.toast = nil

	if m.frame.ConfirmingAbandon {
		switch key {
		case "y":
			return m.confirmAbandon()
		case "n", "esc":
			m.session.CancelAbandon()
		}
		return nil
	}

	switch key {
	case "f":
		m.session.ToggleFocusMode()
	case "F":
		return m.toggleFullscreen()
	case "x":
		// the blocked case is reported through the notifier
		_ = m.session.BeginAbandon()
	case "r":
		return m.refresh()
	default:
		if index, ok := answerIndex(key); ok {
			return m.submit(index)
		}
	}
	return nil
}

// answerIndex maps 1-9 and a-e to an option index.
func answerIndex(key string) (int, bool) {
	if len(key) != 1 {
		return 0, false
	}
	c := key[0]
	switch {
	case c >= '1' && c <= '9':
		return int(c - '1'), true
	case c >= 'a' && c <= 'e':
		return int(c - 'a'), true
	}
	return 0, false
}

func (m *Model) submit(index int) tea.Cmd {
	if !m.frame.CanAnswer || index >= len(m.frame.Options) {
		return nil
	}
	session, ctx, logger := m.session, m.ctx, m.logger
	return func() tea.Msg {
		if err := session.SubmitAnswer(ctx, index); err != nil && !errors.Is(err, domain.ErrAlreadyAnswered) {
			logger.Debug("answer not accepted", "error", err)
		}
		return nil
	}
}

func (m *Model) confirmAbandon() tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		if err := session.ConfirmAbandon(ctx); err != nil {
			return nil
		}
		return exitMsg{}
	}
}

func (m *Model) refresh() tea.Cmd {
	if m.syncer == nil {
		return nil
	}
	syncer, session, ctx, notices := m.syncer, m.session, m.ctx, m.notices
	return func() tea.Msg {
		if err := syncer.Refresh(ctx, session); err != nil {
			notices.Notify(app.Notice{Kind: app.NoticeError, Message: "Refresh failed, still showing the last known state"})
		}
		return nil
	}
}

// toggleFullscreen drives the alt screen. The session only learns the new mode
// once the program has processed the alt screen switch.
func (m *Model) toggleFullscreen() tea.Cmd {
	want := m.session.ToggleFullscreen()
	screen := tea.ExitAltScreen
	if want {
		screen = tea.EnterAltScreen
	}
	return tea.Sequence(screen, func() tea.Msg { return fullscreenMsg(want) })
}

func waitFrame(frames <-chan app.Frame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-frames
		if !ok {
			return framesClosedMsg{}
		}
		return frameMsg(f)
	}
}

func waitNotice(notices Notices) tea.Cmd {
	if notices == nil {
		return nil
	}
	return func() tea.Msg {
		return noticeMsg(<-notices)
	}
}

// Run starts the program and blocks until the user quits or the duel is abandoned.
func Run(ctx context.Context, m *Model, opts ...tea.ProgramOption) error {
	defer m.Close()
	_, err := tea.NewProgram(m, append(opts, tea.WithContext(ctx))...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
