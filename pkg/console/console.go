// Package console renders user-facing output. A Printer is built once
// from the global flags and threaded explicitly into every command and
// into the pull pipeline; there is no process-wide output state.
package console

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Format selects the output rendering mode.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatPlain Format = "plain"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatTable, FormatJSON, FormatPlain:
		return Format(s), nil
	}
	return "", fmt.Errorf("invalid output format %q: expected table, json, or plain", s)
}

var (
	successMark = color.New(color.FgGreen).Sprint("✓")
	errorMark   = color.New(color.FgRed).Sprint("✗")
	warnMark    = color.New(color.FgYellow).Sprint("⚠")
	muted       = color.New(color.Faint).SprintFunc()
	bold        = color.New(color.Bold).SprintFunc()
)

// Printer writes command output. Out carries results, Err carries
// diagnostics and error messages.
type Printer struct {
	Out     io.Writer
	Err     io.Writer
	Format  Format
	Quiet   bool
	Verbose bool
}

// New returns a Printer for the given streams and flags.
func New(out, errOut io.Writer, format Format, quiet, verbose bool) *Printer {
	return &Printer{Out: out, Err: errOut, Format: format, Quiet: quiet, Verbose: verbose}
}

// Prose reports whether human-readable output should be emitted at all:
// false in quiet mode and in JSON mode, where only machine payloads and
// essential errors are wanted.
func (p *Printer) Prose() bool {
	return !p.Quiet && p.Format != FormatJSON
}

// JSON writes v as indented JSON to Out, regardless of quiet mode.
func (p *Printer) JSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(p.Err, "encoding output: %v\n", err)
		return
	}
	fmt.Fprintln(p.Out, string(data))
}

// Printf writes formatted prose to Out when prose output is enabled.
func (p *Printer) Printf(format string, args ...any) {
	if p.Prose() {
		fmt.Fprintf(p.Out, format, args...)
	}
}

// Successf writes a green-checked line to Out.
func (p *Printer) Successf(format string, args ...any) {
	p.Printf("  %s  %s\n", successMark, fmt.Sprintf(format, args...))
}

// Mutedf writes a dimmed line to Out.
func (p *Printer) Mutedf(format string, args ...any) {
	p.Printf("  %s\n", muted(fmt.Sprintf(format, args...)))
}

// Errorf writes a red-crossed line to Err. Error output is emitted even
// in quiet mode, but not in JSON mode, where callers report errors
// inside the machine payload instead.
func (p *Printer) Errorf(format string, args ...any) {
	if p.Format == FormatJSON {
		return
	}
	fmt.Fprintf(p.Err, "\n%s %s\n", errorMark, fmt.Sprintf(format, args...))
}

// Warnf writes a yellow warning line to Err, following Errorf's rules.
func (p *Printer) Warnf(format string, args ...any) {
	if p.Format == FormatJSON {
		return
	}
	fmt.Fprintf(p.Err, "\n%s  %s\n", warnMark, fmt.Sprintf(format, args...))
}

// Verbosef writes diagnostic prose to Err when --verbose is set.
func (p *Printer) Verbosef(format string, args ...any) {
	if p.Verbose && p.Prose() {
		fmt.Fprintf(p.Err, format, args...)
	}
}

// Cross returns the red failure mark for inline use in prose lines.
func Cross() string { return errorMark }

// Bold styles s for emphasis inside prose lines.
func Bold(s string) string { return bold(s) }

// Muted styles s as dimmed inside prose lines.
func Muted(s string) string { return muted(s) }
