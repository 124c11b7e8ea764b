// Package output formats carectl results for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// ColorMode represents color output mode
type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode parses a --color flag value.
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "auto", "":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q: must be auto, always, or never", s)
	}
}

// ResolveColors determines whether to use colors based on mode and environment.
func ResolveColors(mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false
		}
		if os.Getenv("TERM") == "dumb" {
			return false
		}
		return !color.NoColor
	}
}

// Printer handles formatted output to the terminal
type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
	json      bool
}

// NewPrinter creates a printer writing results to out and diagnostics to errOut.
// In JSON mode only machine-readable output goes to out.
func NewPrinter(out, errOut io.Writer, useColors, jsonMode bool) *Printer {
	return &Printer{out: out, err: errOut, useColors: useColors, json: jsonMode}
}

// JSONMode reports whether results are printed as JSON.
func (p *Printer) JSONMode() bool {
	return p.json
}

// Out is the writer results go to.
func (p *Printer) Out() io.Writer {
	return p.out
}

// Info prints an informational message
func (p *Printer) Info(format string, args ...any) {
	if p.json {
		return
	}
	if p.useColors {
		color.New(color.FgCyan).Fprintf(p.out, format+"\n", args...)
	} else {
		fmt.Fprintf(p.out, format+"\n", args...)
	}
}

// Success prints a success message
func (p *Printer) Success(format string, args ...any) {
	if p.json {
		return
	}
	if p.useColors {
		color.New(color.FgGreen).Fprintf(p.out, "✓ "+format+"\n", args...)
	} else {
		fmt.Fprintf(p.out, "[OK] "+format+"\n", args...)
	}
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...any) {
	if p.useColors {
		color.New(color.FgYellow).Fprintf(p.err, "⚠ "+format+"\n", args...)
	} else {
		fmt.Fprintf(p.err, "[WARN] "+format+"\n", args...)
	}
}

// Header prints a section header
func (p *Printer) Header(title string) {
	if p.json {
		return
	}
	if p.useColors {
		color.New(color.FgWhite, color.Bold).Fprintf(p.out, "\n%s\n", title)
		color.New(color.FgWhite).Fprintf(p.out, "%s\n", repeatChar('─', len(title)))
	} else {
		fmt.Fprintf(p.out, "\n%s\n%s\n", title, repeatChar('-', len(title)))
	}
}

// Bold returns text in bold
func (p *Printer) Bold(text string) string {
	if p.useColors {
		return color.New(color.Bold).Sprint(text)
	}
	return text
}

// RoleBadge renders a role name.
func (p *Printer) RoleBadge(role string) string {
	if !p.useColors {
		return role
	}
	switch role {
	case "admin":
		return color.MagentaString(role)
	case "doctor":
		return color.BlueString(role)
	case "patient":
		return color.GreenString(role)
	default:
		return role
	}
}

// JSON writes v as indented JSON.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func repeatChar(char rune, count int) string {
	result := make([]rune, count)
	for i := range result {
		result[i] = char
	}
	return string(result)
}
