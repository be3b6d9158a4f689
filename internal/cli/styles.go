package cli

import "github.com/charmbracelet/lipgloss"

// styles are the console colors; a plain renderer turns them into no-ops.
type styles struct {
	result  lipgloss.Style
	success lipgloss.Style
	err     lipgloss.Style
	warning lipgloss.Style
	info    lipgloss.Style
	dim     lipgloss.Style
	current lipgloss.Style
	title   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		result:  r.NewStyle().Foreground(lipgloss.Color("#FFE66D")),
		success: r.NewStyle().Foreground(lipgloss.Color("#95E1A3")),
		err:     r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		warning: r.NewStyle().Foreground(lipgloss.Color("#F8B500")),
		info:    r.NewStyle().Foreground(lipgloss.Color("#4ECDC4")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("#6C757D")),
		current: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#95E1A3")),
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
	}
}
