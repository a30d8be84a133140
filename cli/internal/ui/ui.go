// Package ui renders CLI output.
package ui

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

var (
	// Out and Err receive all CLI output.
	Out io.Writer = os.Stdout
	Err io.Writer = os.Stderr

	// Colors
	PrimaryColor   = lipgloss.Color("#00D9FF")
	SuccessColor   = lipgloss.Color("#00FF88")
	WarningColor   = lipgloss.Color("#FFB800")
	ErrorColor     = lipgloss.Color("#FF4444")
	InfoColor      = lipgloss.Color("#00D9FF")
	SecondaryColor = lipgloss.Color("#6C757D")

	// Styles
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	SecondaryStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)
)

func width() int {
	if w := pterm.GetTerminalWidth(); w > 0 {
		return w
	}
	return 80
}

// PrintHeader prints a beautiful header
func PrintHeader(title string, subtitle string) {
	header := lipgloss.NewStyle().
		Width(width()).
		Align(lipgloss.Center).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Padding(1, 2).
		Render(
			lipgloss.JoinVertical(
				lipgloss.Center,
				TitleStyle.Render(title),
				SecondaryStyle.Render(subtitle),
			),
		)

	fmt.Fprintln(Out, header)
	fmt.Fprintln(Out)
}

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...any) {
	fmt.Fprintln(Out, SuccessStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// PrintError prints an error message
func PrintError(format string, args ...any) {
	fmt.Fprintln(Err, ErrorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...any) {
	fmt.Fprintln(Out, WarningStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...any) {
	fmt.Fprintln(Out, InfoStyle.Render("ℹ "+fmt.Sprintf(format, args...)))
}

// PrintSection prints a section header
func PrintSection(title string) {
	section := lipgloss.NewStyle().
		Width(width()).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(SecondaryColor).
		Render(title)

	fmt.Fprintln(Out, section)
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Fprintf(Out, "  • %s\n", item)
	}
}

// PrintTable prints a table using pterm
func PrintTable(headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	data = append(data, rows...)
	return pterm.DefaultTable.WithHasHeader().WithWriter(Out).WithData(data).Render()
}

// PrintTree prints a leveled list as a tree.
func PrintTree(items pterm.LeveledList) error {
	root := putils.TreeFromLeveledList(items)
	return pterm.DefaultTree.WithWriter(Out).WithRoot(root).Render()
}

// PrintMarkdown renders markdown content
func PrintMarkdown(content string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width()),
	)
	if err != nil {
		return err
	}

	out, err := r.Render(content)
	if err != nil {
		return err
	}

	fmt.Fprint(Out, out)
	return nil
}

// PrintSpinner creates a spinner and returns it
func PrintSpinner(message string) (*pterm.SpinnerPrinter, error) {
	return pterm.DefaultSpinner.WithWriter(Err).WithRemoveWhenDone(true).Start(message)
}

var (
	sqlKeyword  = regexp.MustCompile(`\b(DECLARE|CREATE|TEMP|TEMPORARY|TABLE|INSERT|INTO|SELECT|DISTINCT|FROM|AS|INNER|JOIN|ON|WHERE|DROP|IF|EXISTS)\b`)
	sqlVariable = regexp.MustCompile(`@\w+`)

	keywordColor  = color.New(color.FgCyan, color.Bold)
	variableColor = color.New(color.FgYellow)
)

// HighlightSQL colors keywords and table variables. Output is unchanged when
// color is disabled.
func HighlightSQL(sql string) string {
	sql = sqlKeyword.ReplaceAllStringFunc(sql, func(s string) string { return keywordColor.Sprint(s) })
	return sqlVariable.ReplaceAllStringFunc(sql, func(s string) string { return variableColor.Sprint(s) })
}

// PrintSQL prints highlighted SQL.
func PrintSQL(sql string) {
	fmt.Fprintln(Out, HighlightSQL(sql))
}
