package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			MarginTop(1)

	keyStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	createdStyle = lipgloss.NewStyle().Foreground(colorGreen)
	updatedStyle = lipgloss.NewStyle().Foreground(colorYellow)
	deletedStyle = lipgloss.NewStyle().Foreground(colorRed)
	failedStyle  = lipgloss.NewStyle().Foreground(colorRed)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	createdMark = "[+]"
	updatedMark = "[~]"
	deletedMark = "[-]"
	failedMark  = "[!!]"
	skippedMark = "[  ]"
)
