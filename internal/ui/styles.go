package ui

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette. Teal accent with amber/red state colors.
const (
	colorTeal    = "43"
	colorTealDim = "30"
	colorGray    = "245"
	colorFaint   = "238"
	colorRed     = "203"
	colorAmber   = "214"
)

// Styles is the style set shared by the status renderer, the dashboard,
// and the search result listing.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Good    lipgloss.Style
	Bad     lipgloss.Style
	Warn    lipgloss.Style
	Faint   lipgloss.Style
	Divider lipgloss.Style
	Panel   lipgloss.Style
}

// NewStyles returns the styled or unstyled set depending on noColor.
func NewStyles(noColor bool) Styles {
	if noColor {
		return Styles{
			Panel: lipgloss.NewStyle().Padding(0, 1),
		}
	}
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorTeal)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorTeal)),
		Good:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorTeal)),
		Bad:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorRed)),
		Warn:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorAmber)),
		Faint:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorFaint)),
		Divider: lipgloss.NewStyle().Foreground(lipgloss.Color(colorTealDim)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorFaint)).
			Padding(0, 1),
	}
}
