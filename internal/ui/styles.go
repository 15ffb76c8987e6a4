package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("#7DD3FC")
	colorText    = lipgloss.Color("#E5E7EB")
	colorDim     = lipgloss.Color("#6B7280")
	colorLocked  = lipgloss.Color("#F87171")
	colorOpen    = lipgloss.Color("#4ADE80")
	colorWarning = lipgloss.Color("#FBBF24")
	colorBar     = lipgloss.Color("#0B1E2D")
)

var (
	styleTitleBar = lipgloss.NewStyle().
			Background(colorBar).
			Foreground(colorAccent).
			Bold(true).
			Padding(0, 1)

	styleKey = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	styleLabel = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(10)

	styleValue = lipgloss.NewStyle().
			Foreground(colorText)

	styleLocked = lipgloss.NewStyle().
			Foreground(colorLocked).
			Bold(true)

	styleUnlocked = lipgloss.NewStyle().
			Foreground(colorOpen).
			Bold(true)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	styleSpark = lipgloss.NewStyle().
			Foreground(colorAccent)

	stylePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)

	styleHelp = lipgloss.NewStyle().
			Foreground(colorDim)
)
