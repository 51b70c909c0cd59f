package cli

import "github.com/charmbracelet/lipgloss"

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// Shared styles for terminal output.
var (
	HeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	ModelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	NumberStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	HintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	SuccessStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	ErrorStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	DimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	SeparatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	LabelStyle     = lipgloss.NewStyle().Width(16)
)
