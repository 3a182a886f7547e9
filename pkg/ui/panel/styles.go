package panel

import "github.com/charmbracelet/lipgloss"

// theme groups reusable styles for panel regions.
type theme struct {
	header     lipgloss.Style
	headerMeta lipgloss.Style
	divider    lipgloss.Style
	tab        lipgloss.Style
	tabActive  lipgloss.Style
	tabPending lipgloss.Style
	group      lipgloss.Style
	row        lipgloss.Style
	rowActive  lipgloss.Style
	value      lipgloss.Style
	settings   lipgloss.Style
	eventName  lipgloss.Style
	eventError lipgloss.Style
	status     lipgloss.Style
	statusErr  lipgloss.Style
	hint       lipgloss.Style
	input      lipgloss.Style
	viewport   lipgloss.Style
}

func defaultTheme() theme {
	return theme{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("24")),
		headerMeta: lipgloss.NewStyle().
			Foreground(lipgloss.Color("153")),
		divider: lipgloss.NewStyle().
			Foreground(lipgloss.Color("67")),
		tab: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Padding(0, 1),
		tabActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("44")).
			Padding(0, 1),
		tabPending: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true).
			Padding(0, 1),
		group: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")),
		row: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		rowActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("214")),
		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")),
		settings: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("109")).
			Padding(0, 1),
		eventName: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("44")),
		eventError: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("203")),
		status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("250")).
			Bold(true),
		statusErr: lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true),
		hint: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("173")).
			Padding(0, 1),
		viewport: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("67")).
			Padding(0, 1),
	}
}
