package display

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/qr-attendance-service/internal/qrcode"
)

type Options struct {
	SessionID string
	TeacherID string
	Output    io.Writer
	AltScreen bool
}

// Run shows a rotating check-in code for one session until the operator
// quits. Quitting leaves the session active; stopping it is explicit.
func Run(ctx context.Context, lifecycle Lifecycle, encoder qrcode.Encoder, opts Options) error {
	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}
	if opts.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	final, err := tea.NewProgram(NewModel(ctx, lifecycle, encoder, opts.SessionID, opts.TeacherID), programOpts...).Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run display: %w", err)
	}
	if m, ok := final.(Model); ok && m.err != nil && m.finished && !m.stopped {
		return m.err
	}
	return nil
}
