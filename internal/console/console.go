// Package console prints user-facing progress for a sync run.
package console

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/kriansa/shokz-sync/internal/deps"
)

// Status indicator symbols
const (
	SymbolStep    = "▶"
	SymbolSuccess = "✓"
	SymbolError   = "✗"
)

var (
	stepStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#28A745"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC3545"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C757D"))
)

// Printer writes progress to out and errors to errOut
type Printer struct {
	out    io.Writer
	errOut io.Writer
}

// NewPrinter creates a Printer
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{out: out, errOut: errOut}
}

// Step announces the start of a stage
func (p *Printer) Step(format string, args ...any) {
	fmt.Fprintf(p.out, "\n%s %s\n", stepStyle.Render(SymbolStep), stepStyle.Render(fmt.Sprintf(format, args...)))
}

// Success reports a completed stage
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", successStyle.Render(SymbolSuccess), fmt.Sprintf(format, args...))
}

// Error reports a failure on the error stream
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintf(p.errOut, "%s %s\n", errorStyle.Render(SymbolError), fmt.Sprintf(format, args...))
}

// Info prints an indented detail line
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.out, "  %s\n", fmt.Sprintf(format, args...))
}

// Dependencies prints one status line per tool
func (p *Printer) Dependencies(tools []deps.Tool, status deps.Status) {
	fmt.Fprintln(p.out, "Checking dependencies...")
	for _, t := range tools {
		if status[t.Command] {
			fmt.Fprintf(p.out, "  %s %s\n", successStyle.Render(SymbolSuccess), t.Name)
		} else {
			fmt.Fprintf(p.out, "  %s %s\n", errorStyle.Render(SymbolError), t.Name)
		}
	}
	fmt.Fprintln(p.out)
}

// MissingDependencies lists missing tools with install hints and a single
// command installing all of them
func (p *Printer) MissingDependencies(missing []deps.Tool) {
	fmt.Fprintln(p.errOut, "\nMissing required dependencies:")
	fmt.Fprintln(p.errOut)
	for _, t := range missing {
		fmt.Fprintf(p.errOut, "  • %s\n", t.Name)
		fmt.Fprintf(p.errOut, "    Install: %s\n", t.Install)
	}
	if hint := deps.QuickInstall(missing); hint != "" {
		fmt.Fprintln(p.errOut, "\nQuick install all with Homebrew:")
		fmt.Fprintf(p.errOut, "    %s\n", mutedStyle.Render(hint))
	}
	fmt.Fprintln(p.errOut)
}

// Summary describes a finished sync
type Summary struct {
	Mountpoint  string
	DeviceNode  string
	FilesBefore int
	FilesAfter  int
}

// Summary renders the final report as a table
func (p *Printer) Summary(s Summary) {
	fmt.Fprintf(p.out, "\n%s\n", successStyle.Bold(true).Render(SymbolSuccess+" Sync complete!"))

	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleLight)
	t.AppendRows([]table.Row{
		{"Mountpoint", s.Mountpoint},
		{"Device", s.DeviceNode},
		{"Music files before", s.FilesBefore},
		{"Music files after", s.FilesAfter},
	})
	t.Render()
	fmt.Fprintln(p.out)
}
