// Package sample is the reference module: it declares one setting of every
// kind and lists its own resource folder for the renderer.
package sample

import (
	"context"
	"fmt"
	"sync"

	"modhost/pkg/module"
	"modhost/pkg/resources"
	"modhost/pkg/setting"
)

const (
	ID   = "developer.Sample_Module"
	Name = "Sample Module"

	EventFiles         = "files"
	EventRefreshFiles  = "refresh-files"
	EventSampleSetting = "sample-setting"

	SampleBoolID = "sample_bool"
)

// Module lists its resource folder on init, re-lists it on change and
// forwards the sample toggle to the renderer.
type Module struct {
	module.Base

	resources *resources.Service
	watch     bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Module)

// WithoutWatch disables the folder watcher; files are sent on init and on
// refresh-files only.
func WithoutWatch() Option {
	return func(m *Module) {
		m.watch = false
	}
}

// New returns the sample module. A nil resources service disables file
// listing.
func New(res *resources.Service, opts ...Option) *Module {
	m := &Module{resources: res, watch: true}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Identity() module.Identity {
	return module.Identity{ID: ID, DisplayName: Name}
}

func (m *Module) Events() []string {
	return []string{EventRefreshFiles}
}

func (m *Module) Settings() []setting.Item {
	return []setting.Item{
		setting.Group("Sample Setting Group"),
		setting.NewBoolean().
			SetDefault(false).
			SetName("Sample Toggle Setting").
			SetDescription("An example of a boolean setting!").
			SetAccessID(SampleBoolID),

		setting.Group("Selection Settings"),
		setting.NewChoice().
			AddOptions("Apple", "Orange", "Banana", "Kiwi").
			SetName("Example Default Choice Setting").
			SetDescription("This is an example of the ChoiceSetting as radio buttons.").
			SetDefault("Banana"),
		setting.NewChoice().
			UseDropdown().
			AddOptions("Blueberry", "Raspberry", "Pineapple", "Grape").
			SetName("Example Choice Setting as a Dropdown").
			SetDescription("This is an example of the ChoiceSetting as a dropdown!").
			SetDefault("Grape"),

		setting.Group("Numeric Settings"),
		setting.NewNumber().
			SetName("Example Default Number Setting").
			SetDescription("This is the default numeric setting.").
			SetDefault(5),
		setting.NewNumber().
			UseNonIncrementableUI().
			SetName("Example Non-Incrementable Number Setting").
			SetDescription("This is a numeric setting WITHOUT the + or - buttons.").
			SetDefault(5),
		setting.NewNumber().
			UseRangeSliderUI().
			SetName("Example Slider Number Setting").
			SetDescription("This is a numeric setting as a slider.").
			SetDefault(5),
		setting.NewNumber().
			SetRange(5, 25).
			SetStep(5).
			SetName("Example Number Setting with bounds").
			SetDescription("This is a numeric setting confined to a range of [5, 25].").
			SetDefault(10),
		setting.NewNumber().
			SetMin(15).
			SetName("Example Number Setting with a lower-bound").
			SetDescription("This is a numeric setting confined to a range of [15, ∞).").
			SetDefault(25),
		setting.NewNumber().
			SetMax(100).
			SetName("Example Number Setting with an upper-bound").
			SetDescription("This is a numeric setting confined to a range of (-∞, 100].").
			SetDefault(45),

		setting.Group("Boolean Setting"),
		setting.NewBoolean().
			SetName("Example Boolean Setting").
			SetDescription("This is the setting to manage boolean state.").
			SetDefault(false),

		setting.Group("Color Setting"),
		setting.NewHexColor().
			SetName("Example Color Setting").
			SetDescription("This is a setting to manage color!").
			SetDefault("#74f287"),

		setting.Group("String Setting"),
		setting.NewString().
			SetName("Example String Setting").
			SetDescription("This is a setting to take text input from the user!").
			SetDefault("Example Text"),
	}
}

// Initialize sends the folder listing, then keeps it current in the
// background.
func (m *Module) Initialize(ctx context.Context, p *module.Process) error {
	if m.resources == nil {
		return nil
	}
	folder, err := m.resources.ModuleDir(p.Identity().FolderName())
	if err != nil {
		return fmt.Errorf("resolve resource folder: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if !m.watch {
			m.sendFiles(watchCtx, p, folder)
			return
		}
		err := m.resources.Watch(watchCtx, folder, func(listing resources.Listing) {
			if err := p.Send(watchCtx, EventFiles, listing.Entries); err != nil && watchCtx.Err() == nil {
				p.ReportError(watchCtx, EventFiles, err)
			}
		})
		if err != nil {
			p.ReportError(watchCtx, EventFiles, err)
		}
	}()
	return nil
}

func (m *Module) RefreshSettings(ctx context.Context, p *module.Process, s setting.Setting) error {
	if s.AccessID() != SampleBoolID {
		return nil
	}
	return p.Send(ctx, EventSampleSetting, s.Value())
}

func (m *Module) HandleEvent(ctx context.Context, p *module.Process, ev module.CustomEvent) error {
	switch ev.Name {
	case EventRefreshFiles:
		if m.resources == nil {
			return nil
		}
		folder, err := m.resources.ModuleDir(p.Identity().FolderName())
		if err != nil {
			return err
		}
		return m.listAndSend(ctx, p, folder)
	}
	return nil
}

func (m *Module) sendFiles(ctx context.Context, p *module.Process, folder string) {
	if err := m.listAndSend(ctx, p, folder); err != nil && ctx.Err() == nil {
		p.ReportError(ctx, EventFiles, err)
	}
}

func (m *Module) listAndSend(ctx context.Context, p *module.Process, folder string) error {
	listing, err := m.resources.List(ctx, folder)
	if err != nil {
		return err
	}
	return p.Send(ctx, EventFiles, listing.Entries)
}

// Close stops the background watcher.
func (m *Module) Close() error {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	return nil
}
