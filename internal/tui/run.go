package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the chat program and blocks until the user quits.
func Run(ctx context.Context, engine Asker, header string, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(New(ctx, engine, header),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
