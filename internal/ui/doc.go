// Package ui renders command results for the terminal with lipgloss.
//
// Colors are dropped automatically when stdout is not a terminal.
package ui
