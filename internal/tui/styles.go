package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles of the view.
type Styles struct {
	Title          lipgloss.Style
	Status         lipgloss.Style
	StatusOK       lipgloss.Style
	StatusErr      lipgloss.Style
	Button         lipgloss.Style
	ButtonFocused  lipgloss.Style
	ButtonDisabled lipgloss.Style
	Panel          lipgloss.Style
	PanelTitle     lipgloss.Style
	Label          lipgloss.Style
	Tips           lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() Styles {
	button := lipgloss.NewStyle().
		Padding(0, 2).
		Border(lipgloss.RoundedBorder())
	return Styles{
		Title:          lipgloss.NewStyle().Bold(true).MarginBottom(1),
		Status:         lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#333333")),
		StatusOK:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#28a745")),
		StatusErr:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#dc3545")),
		Button:         button.BorderForeground(lipgloss.Color("240")),
		ButtonFocused:  button.BorderForeground(lipgloss.Color("63")).Bold(true),
		ButtonDisabled: button.BorderForeground(lipgloss.Color("237")).Foreground(lipgloss.Color("241")).Faint(true),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#dddddd")).
			Padding(0, 2).
			Width(44),
		PanelTitle: lipgloss.NewStyle().Bold(true),
		Label:      lipgloss.NewStyle().Bold(true),
		Tips:       lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).MarginTop(1),
	}
}
