package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
)

// Accent color for RAGLET branding.
const accentBlue = "#4285F4"

// RAGLET ASCII art (filled block style).
var ragletArt = []string{
	"    ██████╗  █████╗  ██████╗ ██╗     ███████╗████████╗",
	"    ██╔══██╗██╔══██╗██╔════╝ ██║     ██╔════╝╚══██╔══╝",
	"    ██████╔╝███████║██║  ███╗██║     █████╗     ██║   ",
	"    ██╔══██╗██╔══██║██║   ██║██║     ██╔══╝     ██║   ",
	"    ██║  ██║██║  ██║╚██████╔╝███████╗███████╗   ██║   ",
	"    ╚═╝  ╚═╝╚═╝  ╚═╝ ╚═════╝ ╚══════╝╚══════╝   ╚═╝   ",
}

// Styles contains all lipgloss styles for the TUI.
type Styles struct {
	Banner    lipgloss.Style
	Header    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Error     lipgloss.Style
	Sources   lipgloss.Style
	Prompt    lipgloss.Style
	Selected  lipgloss.Style
	Dimmed    lipgloss.Style
	Separator lipgloss.Style
	StatusBar lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Banner:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accentBlue)),
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(accentBlue)),
		User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		System:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Sources:   lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245")),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Selected:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")),
		Dimmed:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

// RenderBanner returns the RAGLET ASCII art banner as a styled string.
func (s Styles) RenderBanner() string {
	var b strings.Builder
	for _, line := range ragletArt {
		_, _ = b.WriteString(s.Banner.Render(line))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}
