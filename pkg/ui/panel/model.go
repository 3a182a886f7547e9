package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"modhost/pkg/bus"
	"modhost/pkg/channel"
	"modhost/pkg/module"
	"modhost/pkg/setting"
	"modhost/pkg/settings"
)

const maxLogLines = 500

// outboundMsg carries one module message into the program.
type outboundMsg struct {
	msg bus.Message
}

type sendResultMsg struct {
	moduleID string
	event    string
	err      error
}

type moduleView struct {
	id      string
	details *module.Details
}

func (v moduleView) title() string {
	if v.details != nil && v.details.Name != "" {
		return v.details.Name
	}
	return v.id
}

type logLine struct {
	moduleID string
	event    string
	body     string
	isError  bool
}

type model struct {
	ctx      context.Context
	handler  channel.Handler
	settings Settings

	theme    theme
	viewport viewport.Model
	input    textinput.Model
	modules  []moduleView
	logs     []logLine
	active   int
	cursor   int
	editing  bool
	width    int
	height   int
	isReady  bool
	lastErr  string
	followUp bool
}

func newModel(ctx context.Context, moduleIDs []string, registry Settings, handler channel.Handler) *model {
	in := textinput.New()
	in.Prompt = "> "
	in.CharLimit = 256

	views := make([]moduleView, 0, len(moduleIDs))
	for _, id := range moduleIDs {
		views = append(views, moduleView{id: id})
	}

	return &model{
		ctx:      ctx,
		handler:  handler,
		settings: registry,
		theme:    defaultTheme(),
		viewport: viewport.New(80, 10),
		input:    in,
		modules:  views,
		width:    100,
		height:   30,
		followUp: true,
	}
}

// Init performs the init handshake for every module.
func (m *model) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(m.modules))
	for _, v := range m.modules {
		cmds = append(cmds, m.sendCmd(v.id, module.EventInit))
	}
	return tea.Batch(cmds...)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport()
		m.isReady = true
		return m, nil
	case outboundMsg:
		m.receive(typed.msg)
		return m, nil
	case sendResultMsg:
		if typed.err != nil {
			m.lastErr = fmt.Sprintf("%s/%s: %v", typed.moduleID, typed.event, typed.err)
			m.appendLog(logLine{moduleID: typed.moduleID, event: typed.event, body: typed.err.Error(), isError: true})
		}
		return m, nil
	case tea.KeyMsg:
		if typed.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.editing {
			return m.updateEditing(typed)
		}
		return m.updateBrowsing(typed)
	}

	return m, nil
}

func (m *model) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	case "enter":
		m.editing = false
		m.input.Blur()
		s, ok := m.selected()
		if !ok {
			return m, nil
		}
		var value any = strings.TrimSpace(m.input.Value())
		if _, isNumber := s.(*setting.Number); isNumber {
			value = json.Number(value.(string))
		}
		return m, m.sendCmd(m.activeID(), s.AccessID(), value)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.handleViewportKey(msg) {
		return m, nil
	}

	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "tab":
		m.switchModule(1)
	case "shift+tab":
		m.switchModule(-1)
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "left", "h":
		return m, m.adjust(-1)
	case "right", "l":
		return m, m.adjust(1)
	case "enter", " ":
		return m, m.activate()
	case "r":
		if len(m.modules) > 0 {
			return m, m.sendCmd(m.activeID(), module.EventInit)
		}
	}
	return m, nil
}

// adjust moves a number by whole steps or cycles a choice.
func (m *model) adjust(dir int) tea.Cmd {
	s, ok := m.selected()
	if !ok {
		return nil
	}

	switch typed := s.(type) {
	case *setting.Number:
		return m.sendCmd(m.activeID(), typed.AccessID(), typed.Nudge(dir))
	case *setting.Choice:
		return m.sendCmd(m.activeID(), typed.AccessID(), typed.Cycle(dir))
	case *setting.Boolean:
		return m.sendCmd(m.activeID(), typed.AccessID(), !typed.Get())
	}
	return nil
}

// activate toggles booleans and opens the editor for free-form values.
func (m *model) activate() tea.Cmd {
	s, ok := m.selected()
	if !ok {
		return nil
	}

	switch typed := s.(type) {
	case *setting.Boolean:
		return m.sendCmd(m.activeID(), typed.AccessID(), !typed.Get())
	case *setting.Choice:
		return m.sendCmd(m.activeID(), typed.AccessID(), typed.Cycle(1))
	case *setting.Number:
		m.startEditing(fmt.Sprint(typed.Get()))
	default:
		m.startEditing(fmt.Sprint(s.Value()))
	}
	return textinput.Blink
}

func (m *model) startEditing(current string) {
	m.editing = true
	m.input.SetValue(current)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m *model) sendCmd(moduleID, event string, payload ...any) tea.Cmd {
	ctx, handler := m.ctx, m.handler
	return func() tea.Msg {
		if handler == nil {
			return sendResultMsg{moduleID: moduleID, event: event}
		}
		err := handler(ctx, bus.NewMessage(moduleID, event, payload...))
		return sendResultMsg{moduleID: moduleID, event: event, err: err}
	}
}

func (m *model) receive(msg bus.Message) {
	idx := m.indexOf(msg.ModuleID)
	if idx < 0 {
		return
	}

	if msg.EventType == module.EventModuleDetails && len(msg.Payload) > 0 {
		if details, ok := decodeDetails(msg.Payload[0]); ok {
			m.modules[idx].details = &details
		}
	}
	m.appendLog(logLine{
		moduleID: msg.ModuleID,
		event:    msg.EventType,
		body:     formatPayload(msg.Payload),
		isError:  strings.HasSuffix(msg.EventType, "-error"),
	})
}

func (m *model) appendLog(line logLine) {
	m.logs = append(m.logs, line)
	if over := len(m.logs) - maxLogLines; over > 0 {
		m.logs = m.logs[over:]
	}
	m.refreshViewport()
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport()
	}

	header := m.theme.header.Width(m.width - 2).Render("modhost panel")
	meta := m.theme.headerMeta.Render(fmt.Sprintf("modules:%d · events:%d", len(m.modules), len(m.logs)))
	line := m.theme.divider.Render(strings.Repeat("═", max(8, m.width-2)))

	status := m.theme.status.Render("tab module · ↑/↓ select · ←/→ adjust · enter edit · r re-init · q quit")
	if m.editing {
		status = m.theme.status.Render("enter apply · esc cancel")
	}
	if m.lastErr != "" {
		status = m.theme.statusErr.Render("last change failed: " + m.lastErr)
	}

	parts := []string{header, meta, m.renderTabs(), line, m.renderSettings(), m.theme.viewport.Width(m.width - 2).Render(m.viewport.View())}
	if m.editing {
		parts = append(parts, m.theme.input.Width(m.width-2).Render(m.input.View()))
	}
	parts = append(parts, status)

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *model) renderTabs() string {
	if len(m.modules) == 0 {
		return m.theme.hint.Render("no modules loaded")
	}

	tabs := make([]string, 0, len(m.modules))
	for i, v := range m.modules {
		style := m.theme.tab
		switch {
		case i == m.active:
			style = m.theme.tabActive
		case v.details == nil:
			style = m.theme.tabPending
		}
		tabs = append(tabs, style.Render(v.title()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *model) renderSettings() string {
	var rows []string
	if v, ok := m.activeView(); ok && v.details != nil {
		rows = append(rows, m.theme.hint.Render(fmt.Sprintf("id:%s · folder:%s", v.details.ID, v.details.FolderName)))
	}

	flat := 0
	for _, g := range m.groups() {
		if g.Label != "" {
			rows = append(rows, m.theme.group.Render(g.Label))
		}
		for _, s := range g.Settings {
			label := fmt.Sprintf("  %-28s %s", s.Name(), m.theme.value.Render(fmt.Sprint(s.Value())))
			if flat == m.cursor {
				label = m.theme.rowActive.Render(fmt.Sprintf("▸ %-28s %v", s.Name(), s.Value()))
			} else {
				label = m.theme.row.Render(label)
			}
			rows = append(rows, label)
			flat++
		}
	}
	if flat == 0 {
		rows = append(rows, m.theme.hint.Render("no settings registered yet"))
	}

	return m.theme.settings.Width(m.width - 2).Render(strings.Join(rows, "\n"))
}

func (m *model) resizeComponents() {
	w := max(40, m.width-6)
	h := max(5, m.height/3)

	m.viewport.Width = w
	m.viewport.Height = h
	m.input.Width = w - 4
}

func (m *model) refreshViewport() {
	lines := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		name := m.theme.eventName.Render(l.moduleID + " " + l.event)
		if l.isError {
			name = m.theme.eventError.Render(l.moduleID + " " + l.event)
		}
		lines = append(lines, strings.TrimSpace(name+" "+l.body))
	}

	m.viewport.SetContent(strings.Join(lines, "\n"))
	if m.followUp {
		m.viewport.GotoBottom()
	}
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b":
		m.viewport.PageUp()
		m.followUp = false
		return true
	case "pgdown", "ctrl+f":
		m.viewport.PageDown()
		if m.viewport.AtBottom() {
			m.followUp = true
		}
		return true
	case "home":
		m.viewport.GotoTop()
		m.followUp = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followUp = true
		return true
	default:
		return false
	}
}

func (m *model) switchModule(dir int) {
	if len(m.modules) == 0 {
		return
	}
	m.active = ((m.active+dir)%len(m.modules) + len(m.modules)) % len(m.modules)
	m.cursor = 0
}

func (m *model) moveCursor(dir int) {
	n := len(m.flatSettings())
	if n == 0 {
		m.cursor = 0
		return
	}
	m.cursor = min(max(m.cursor+dir, 0), n-1)
}

func (m *model) activeID() string {
	v, _ := m.activeView()
	return v.id
}

func (m *model) activeView() (moduleView, bool) {
	if m.active < 0 || m.active >= len(m.modules) {
		return moduleView{}, false
	}
	return m.modules[m.active], true
}

func (m *model) groups() []settings.Group {
	if m.settings == nil || len(m.modules) == 0 {
		return nil
	}
	return m.settings.Groups(m.activeID())
}

func (m *model) flatSettings() []setting.Setting {
	var out []setting.Setting
	for _, g := range m.groups() {
		out = append(out, g.Settings...)
	}
	return out
}

func (m *model) selected() (setting.Setting, bool) {
	flat := m.flatSettings()
	if m.cursor < 0 || m.cursor >= len(flat) {
		return nil, false
	}
	return flat[m.cursor], true
}

func (m *model) indexOf(moduleID string) int {
	for i, v := range m.modules {
		if v.id == moduleID {
			return i
		}
	}
	return -1
}

// decodeDetails accepts the in-process value as well as its JSON form.
func decodeDetails(v any) (module.Details, bool) {
	if details, ok := v.(module.Details); ok {
		return details, true
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return module.Details{}, false
	}
	var details module.Details
	if err := json.Unmarshal(raw, &details); err != nil || details.ID == "" {
		return module.Details{}, false
	}
	return details, true
}

func formatPayload(payload []any) string {
	if len(payload) == 0 {
		return ""
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprint(payload...)
	}

	const limit = 240
	if len(raw) > limit {
		return string(raw[:limit]) + "…"
	}
	return string(raw)
}
