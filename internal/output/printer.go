package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	styleBold  = "\x1b[1m"
	styleDim   = "\x1b[2m"
	styleReset = "\x1b[0m"
)

// Printer writes user-facing console output. Headings are bold and echoed commands are dim when out is a
// terminal; otherwise text is written plain.
type Printer struct {
	out     io.Writer
	styled  bool
	verbose bool
	last    outputKind
}

type outputKind int

const (
	outputNone outputKind = iota
	outputApp
	outputCommand
)

// NewPrinter creates a Printer writing to out. Command echo is enabled only when verbose is true.
func NewPrinter(out io.Writer, verbose bool) *Printer {
	if out == nil {
		out = io.Discard
	}
	return &Printer{
		out:     out,
		styled:  isTerminal(out),
		verbose: verbose,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// App writes one line of application output.
func (p *Printer) App(text string) error {
	if err := p.ensureGapBeforeApp(); err != nil {
		return err
	}
	_, err := io.WriteString(p.out, ensureTrailingNewline(text))
	p.last = outputApp
	return err
}

func (p *Printer) Appf(format string, args ...any) error {
	return p.App(fmt.Sprintf(format, args...))
}

// Heading writes bold application output.
func (p *Printer) Heading(text string) error {
	if err := p.ensureGapBeforeApp(); err != nil {
		return err
	}
	err := p.writeStyled(styleBold, ensureTrailingNewline(text))
	p.last = outputApp
	return err
}

// Command echoes a command line about to run. It is a no-op unless the printer is verbose.
func (p *Printer) Command(name string, args []string) error {
	if !p.verbose {
		return nil
	}
	if err := p.ensureGapBeforeCommand(); err != nil {
		return err
	}
	err := p.writeStyled(styleDim, ensureTrailingNewline(FormatCommand(name, args)))
	p.last = outputCommand
	return err
}

func (p *Printer) ensureGapBeforeCommand() error {
	switch p.last {
	case outputApp:
		_, err := io.WriteString(p.out, "\n")
		return err
	default:
		return nil
	}
}

func (p *Printer) ensureGapBeforeApp() error {
	if p.last != outputCommand {
		return nil
	}
	_, err := io.WriteString(p.out, "\n")
	return err
}

func (p *Printer) writeStyled(style, text string) error {
	if text == "" {
		return nil
	}
	if !p.styled {
		_, err := io.WriteString(p.out, text)
		return err
	}
	body := strings.TrimSuffix(text, "\n")
	_, err := io.WriteString(p.out, style+body+styleReset+text[len(body):])
	return err
}

func ensureTrailingNewline(text string) string {
	if strings.HasSuffix(text, "\n") {
		return text
	}
	return text + "\n"
}

// FormatCommand renders name and args as a copy-pastable shell command line. Long arguments (system
// prompts, rubrics) are elided to their first 60 characters.
func FormatCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(name))
	for _, arg := range args {
		if len(arg) > 80 {
			arg = arg[:60] + "..."
		}
		parts = append(parts, quoteArg(arg))
	}
	return strings.Join(parts, " ")
}

func quoteArg(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n'\"\\$&|;<>*?[]{}()") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", "'\"'\"'") + "'"
}
