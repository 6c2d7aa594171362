// Package ui provides styled terminal output for the chirpnet CLI.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	cyan    = lipgloss.Color("#00B7C3")
	yellow  = lipgloss.Color("#FFD866")
	red     = lipgloss.Color("#FF6188")
	green   = lipgloss.Color("#A9DC76")
	magenta = lipgloss.Color("#AB9DF2")
	dim     = lipgloss.Color("#727072")

	labelStyle     = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	valueStyle     = lipgloss.NewStyle().Foreground(yellow)
	errorStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	successStyle   = lipgloss.NewStyle().Foreground(green).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(yellow)
	highlightStyle = lipgloss.NewStyle().Foreground(magenta).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(dim)

	headerStyle = lipgloss.NewStyle().
			Foreground(cyan).
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(dim)
)

// Banner printed before a batch download starts
const Banner = `
   _     _                       _
  | |__ (_)_ __ _ __  _ __   ___| |_
  | '_ \| | '__| '_ \| '_ \ / _ \ __|
  | | | | | |  | |_) | | | |  __/ |_
  |_| |_|_|_|  | .__/|_| |_|\___|\__|
               |_|  xeno-canto batch downloader
`

// PrintBanner prints the application banner
func PrintBanner() {
	fmt.Println(dimStyle.Render(Banner))
}

// PrintHeader prints a section header with an underline
func PrintHeader(title string) {
	fmt.Println(headerStyle.Render(title))
}

// PrintInfo prints a labeled value
func PrintInfo(label, value string) {
	fmt.Printf("%s: %s\n", labelStyle.Render(label), valueStyle.Render(value))
}

// PrintError prints an error message, optionally with detail
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Println(errorStyle.Render(msg+":"), fmt.Sprintf("%v", args[0]))
	} else {
		fmt.Println(errorStyle.Render(msg))
	}
}

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	fmt.Println(successStyle.Render(msg))
}

// PrintWarning prints a warning message
func PrintWarning(msg string) {
	fmt.Println(warningStyle.Render(msg))
}

// PrintHighlight prints an emphasized message
func PrintHighlight(msg string) {
	fmt.Println(highlightStyle.Render(msg))
}

// PrintDim prints a de-emphasized message
func PrintDim(msg string) {
	fmt.Println(dimStyle.Render(msg))
}
