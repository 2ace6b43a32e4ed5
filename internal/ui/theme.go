package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/mirrorsync/internal/config"
)

// Catppuccin Mocha palette, mutable so config can override.
var (
	ColorGreen  = lipgloss.Color("#a6e3a1")
	ColorBlue   = lipgloss.Color("#89b4fa")
	ColorYellow = lipgloss.Color("#f9e2af")
	ColorRed    = lipgloss.Color("#f38ba8")
	ColorMuted  = lipgloss.Color("#5a6278")
)

// Pre-built styles, rebuilt by rebuildStyles() after color changes.
var (
	styleUpload   lipgloss.Style
	styleDownload lipgloss.Style
	styleDelete   lipgloss.Style
	styleDir      lipgloss.Style
	styleMuted    lipgloss.Style
	styleError    lipgloss.Style
	styleSummary  lipgloss.Style
)

func init() {
	rebuildStyles()
}

func rebuildStyles() {
	styleUpload = lipgloss.NewStyle().Foreground(ColorGreen)
	styleDownload = lipgloss.NewStyle().Foreground(ColorBlue)
	styleDelete = lipgloss.NewStyle().Foreground(ColorRed)
	styleDir = lipgloss.NewStyle().Foreground(ColorYellow)
	styleMuted = lipgloss.NewStyle().Foreground(ColorMuted)
	styleError = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	styleSummary = lipgloss.NewStyle().Bold(true)
}

// ApplyTheme overrides colors from a config ThemeConfig and rebuilds all styles.
func ApplyTheme(tc config.ThemeConfig) {
	if tc.Green != nil {
		ColorGreen = lipgloss.Color(*tc.Green)
	}
	if tc.Blue != nil {
		ColorBlue = lipgloss.Color(*tc.Blue)
	}
	if tc.Yellow != nil {
		ColorYellow = lipgloss.Color(*tc.Yellow)
	}
	if tc.Red != nil {
		ColorRed = lipgloss.Color(*tc.Red)
	}
	if tc.Muted != nil {
		ColorMuted = lipgloss.Color(*tc.Muted)
	}
	rebuildStyles()
}

// actionStyle picks the marker style for a worklist action name.
func actionStyle(action string) lipgloss.Style {
	switch action {
	case "upload":
		return styleUpload
	case "download":
		return styleDownload
	case "delete":
		return styleDelete
	default:
		return styleMuted
	}
}

// actionMarker is the one-character prefix shown for an action.
func actionMarker(action string) string {
	switch action {
	case "upload":
		return "↑"
	case "download":
		return "↓"
	case "delete":
		return "✗"
	default:
		return "?"
	}
}
