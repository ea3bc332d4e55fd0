// ABOUTME: Defines lipgloss style constants for the viewer panels, lane bars, and status colors.
// ABOUTME: Provides TaskColorStyle to map palette color names to terminal styles.

package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Panel borders
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	// Title styling
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Task list
	SelectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Bold(true)
	DimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	// Lane bar cells
	LaneIdleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	LaneReachedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	LanePulseStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	// Badges
	LocalBadgeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	DoneBadgeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	ErrorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	// Detail panel labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(10)
)

// paletteColors maps the store's palette color names to terminal colors.
var paletteColors = map[string]lipgloss.Color{
	"red":     lipgloss.Color("196"),
	"orange":  lipgloss.Color("214"),
	"yellow":  lipgloss.Color("226"),
	"green":   lipgloss.Color("42"),
	"teal":    lipgloss.Color("43"),
	"blue":    lipgloss.Color("75"),
	"purple":  lipgloss.Color("135"),
	"magenta": lipgloss.Color("201"),
}

// TaskColorStyle returns a foreground style for a task's palette color name.
// Unknown names fall back to the default foreground.
func TaskColorStyle(name string) lipgloss.Style {
	if c, ok := paletteColors[name]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return lipgloss.NewStyle()
}
