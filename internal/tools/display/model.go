package display

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sandeepkv93/qr-attendance-service/internal/domain"
	"github.com/sandeepkv93/qr-attendance-service/internal/qrcode"
	"github.com/sandeepkv93/qr-attendance-service/internal/service"
)

// Lifecycle is what the display drives. It owns the rotation timer: the
// service never refreshes on its own.
type Lifecycle interface {
	Start(ctx context.Context, sessionID, teacherID string) (*service.IssuedSession, error)
	RefreshToken(ctx context.Context, sessionID, teacherID string) (*service.IssuedSession, error)
	Stop(ctx context.Context, sessionID, teacherID string) (*domain.Session, error)
}

type issuedMsg struct {
	issued *service.IssuedSession
	code   string
	err    error
}

type stoppedMsg struct{ err error }

type tickMsg time.Time

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	codeBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type Model struct {
	ctx       context.Context
	lifecycle Lifecycle
	encoder   qrcode.Encoder
	sessionID string
	teacherID string
	now       func() time.Time
	tick      time.Duration

	issued     *service.IssuedSession
	code       string
	err        error
	refreshing bool
	finished   bool
	stopped    bool
}

func NewModel(ctx context.Context, lifecycle Lifecycle, encoder qrcode.Encoder, sessionID, teacherID string) Model {
	return Model{
		ctx:       ctx,
		lifecycle: lifecycle,
		encoder:   encoder,
		sessionID: sessionID,
		teacherID: teacherID,
		now:       func() time.Time { return time.Now().UTC() },
		tick:      time.Second,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.issue(m.lifecycle.Start), m.nextTick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			if m.finished || m.refreshing || m.issued == nil {
				return m, nil
			}
			m.refreshing = true
			return m, m.issue(m.lifecycle.RefreshToken)
		case "s":
			if m.finished {
				return m, tea.Quit
			}
			return m, m.stop()
		}
	case tickMsg:
		if m.finished {
			return m, nil
		}
		if m.dueForRotation(time.Time(msg)) {
			m.refreshing = true
			return m, tea.Batch(m.issue(m.lifecycle.RefreshToken), m.nextTick())
		}
		return m, m.nextTick()
	case issuedMsg:
		m.refreshing = false
		if msg.err != nil {
			m.err = msg.err
			if errors.Is(msg.err, service.ErrSessionExpired) || errors.Is(msg.err, service.ErrInvalidState) || errors.Is(msg.err, service.ErrSessionNotFound) {
				m.finished = true
			}
			return m, nil
		}
		m.err = nil
		m.issued = msg.issued
		m.code = msg.code
	case stoppedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.stopped = true
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	if m.issued == nil {
		b.WriteString(titleStyle.Render("Starting session " + m.sessionID))
		b.WriteString("\n")
	} else {
		s := m.issued.Session
		title := s.Subject
		if s.Room != "" {
			title += " · " + s.Room
		}
		b.WriteString(titleStyle.Render(title))
		b.WriteString("\n")
		b.WriteString(codeBoxStyle.Render(strings.TrimRight(m.code, "\n")))
		b.WriteString("\n")
		b.WriteString(subtleStyle.Render(m.issued.CheckInURL))
		b.WriteString("\n")
		b.WriteString(m.countdown())
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	if m.stopped {
		b.WriteString(warnStyle.Render("session stopped"))
		b.WriteString("\n")
	}
	b.WriteString(subtleStyle.Render("r refresh now · s stop session · q quit"))
	b.WriteString("\n")
	return b.String()
}

// Remaining is the time until the displayed code rotates.
func (m Model) Remaining(at time.Time) time.Duration {
	if m.issued == nil || m.issued.Session.TokenExpiresAt == nil {
		return 0
	}
	d := m.issued.Session.TokenExpiresAt.Sub(at)
	if d < 0 {
		return 0
	}
	return d
}

func (m Model) dueForRotation(at time.Time) bool {
	if m.issued == nil || m.refreshing || m.issued.Session.TokenExpiresAt == nil {
		return false
	}
	return !at.Before(*m.issued.Session.TokenExpiresAt)
}

func (m Model) countdown() string {
	if m.finished {
		return warnStyle.Render("rotation stopped")
	}
	if m.refreshing {
		return warnStyle.Render("rotating…")
	}
	secs := int(m.Remaining(m.now()).Round(time.Second) / time.Second)
	return fmt.Sprintf("next code in %ds", secs)
}

func (m Model) nextTick() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg { return tickMsg(t.UTC()) })
}

func (m Model) issue(op func(ctx context.Context, sessionID, teacherID string) (*service.IssuedSession, error)) tea.Cmd {
	return func() tea.Msg {
		issued, err := op(m.ctx, m.sessionID, m.teacherID)
		if err != nil {
			return issuedMsg{err: err}
		}
		code, err := m.encoder.Terminal(issued.CheckInURL)
		if err != nil {
			return issuedMsg{err: err}
		}
		return issuedMsg{issued: issued, code: code}
	}
}

func (m Model) stop() tea.Cmd {
	return func() tea.Msg {
		_, err := m.lifecycle.Stop(m.ctx, m.sessionID, m.teacherID)
		return stoppedMsg{err: err}
	}
}
