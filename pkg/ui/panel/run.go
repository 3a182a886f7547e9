// Package panel is a terminal renderer: it performs the init handshake for
// every hosted module, shows what modules send back and edits their
// settings in place.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"modhost/pkg/bus"
	"modhost/pkg/channel"
	"modhost/pkg/settings"
)

// Settings is the read side of the settings registry.
type Settings interface {
	Groups(moduleID string) []settings.Group
}

type Option func(*Adapter)

// WithProgramOptions passes options through to the bubbletea program.
func WithProgramOptions(opts ...tea.ProgramOption) Option {
	return func(a *Adapter) {
		a.programOptions = append(a.programOptions, opts...)
	}
}

// Adapter is a channel.Adapter rendering modules in the terminal.
type Adapter struct {
	moduleIDs      []string
	settings       Settings
	programOptions []tea.ProgramOption

	done     chan struct{}
	doneOnce sync.Once
}

func New(moduleIDs []string, registry Settings, opts ...Option) *Adapter {
	a := &Adapter{
		moduleIDs: append([]string(nil), moduleIDs...),
		settings:  registry,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string {
	return "panel"
}

// Done is closed when the panel exits, including when the user quits it.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}

func (a *Adapter) Run(ctx context.Context, handler channel.Handler, outbound <-chan bus.Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer a.doneOnce.Do(func() { close(a.done) })

	opts := append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, a.programOptions...)
	program := tea.NewProgram(newModel(ctx, a.moduleIDs, a.settings, handler), opts...)

	forwardCtx, stopForward := context.WithCancel(ctx)
	defer stopForward()
	go func() {
		for {
			select {
			case <-forwardCtx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				program.Send(outboundMsg{msg: msg})
			}
		}
	}()

	_, err := program.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run panel: %w", err)
	}
	return nil
}

// Goodbye renders the banner printed after the panel closes.
func Goodbye() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("24")).
		Padding(1, 2)

	return style.Render("modhost panel closed")
}
