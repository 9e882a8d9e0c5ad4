package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/ytpa/internal/models"
)

var (
	youtubeRed = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF3344"}
	green      = lipgloss.AdaptiveColor{Light: "#027A48", Dark: "#04B575"}
	amber      = lipgloss.AdaptiveColor{Light: "#B54708", Dark: "#FFA500"}
	grey       = lipgloss.AdaptiveColor{Light: "#667085", Dark: "#626262"}
)

var styles = palette{
	title: lipgloss.NewStyle().Foreground(youtubeRed).Bold(true).MarginBottom(1),
	ok:    lipgloss.NewStyle().Foreground(green).Bold(true),
	err:   lipgloss.NewStyle().Foreground(youtubeRed).Bold(true),
	warn:  lipgloss.NewStyle().Foreground(amber),
	help:  lipgloss.NewStyle().Foreground(grey).Italic(true),
}

type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

// status colors a poll status in the history view.
func (p palette) status(s models.PollStatus) string {
	switch s {
	case models.PollCompleted:
		return p.ok.Render(string(s))
	case models.PollFailed:
		return p.err.Render(string(s))
	case models.PollSkipped:
		return p.warn.Render(string(s))
	default:
		return p.help.Render(string(s))
	}
}
