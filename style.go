package main

import "github.com/charmbracelet/lipgloss"

var (
	keyword   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render
	paragraph = lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render

	plainTime    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Render
	plainCaption = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EE6FF8")).Render
	plainError   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ED567A")).Render
)
