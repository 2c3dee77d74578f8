package utils

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Printer renders the conversation of an agent to a writer. In raw mode, or
// when the writer isn't a color capable terminal, the output is plain text.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
	raw bool

	heading lipgloss.Style
	human   lipgloss.Style
	tool    lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	subtle  lipgloss.Style
}

func NewPrinter(out io.Writer, raw bool, theme Theme) *Printer {
	if out == nil {
		out = os.Stdout
	}
	r := lipgloss.NewRenderer(out)
	style := func(color string) lipgloss.Style {
		if raw || NoColor() {
			return r.NewStyle()
		}
		return r.NewStyle().Foreground(lipgloss.Color(color))
	}
	return &Printer{
		out:     out,
		raw:     raw,
		heading: style(theme.Agent).Bold(!raw),
		human:   style(theme.Human).Bold(!raw),
		tool:    style(theme.Tool),
		warning: style(theme.Warning),
		err:     style(theme.Error),
		subtle:  style(theme.Subtle),
	}
}

func (p *Printer) write(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.out, s)
}

// Heading announces a new turn by who.
func (p *Printer) Heading(who, what string) {
	if p.raw {
		return
	}
	p.write(fmt.Sprintf("%v %v\n", p.heading.Render(who+":"), p.subtle.Render(what)))
}

// Chunk writes a piece of a streamed reply as is.
func (p *Printer) Chunk(s string) {
	if p.raw {
		return
	}
	p.write(s)
}

// EndStream terminates a streamed reply.
func (p *Printer) EndStream() {
	if p.raw {
		return
	}
	p.write("\n")
}

// ToolUse prints a one line summary of a tool call, truncated to the terminal
// width.
func (p *Printer) ToolUse(who, tool string, args map[string]any) {
	if p.raw {
		return
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	params := make([]string, 0, len(keys))
	for _, k := range keys {
		params = append(params, fmt.Sprintf("'%v': '%v'", k, args[k]))
	}
	prefix := fmt.Sprintf("%v: using tool '%v' ", who, tool)
	line := TruncMiddle(fmt.Sprintf("[ %v ]", strings.Join(params, ", ")), TermWidth()-lipgloss.Width(prefix))
	p.write(p.tool.Render(prefix) + line + "\n")
}

// Human prints a message added to the conversation on behalf of the user,
// such as an intervention.
func (p *Printer) Human(who, msg string) {
	if p.raw {
		return
	}
	p.write(fmt.Sprintf("%v %v\n", p.human.Render(who+":"), msg))
}

func (p *Printer) Warn(msg string) {
	if p.raw {
		return
	}
	p.write(p.warning.Render(msg) + "\n")
}

func (p *Printer) Error(msg string) {
	if p.raw {
		return
	}
	p.write(p.err.Render(msg) + "\n")
}

// Result prints the final answer. It is the only output in raw mode.
func (p *Printer) Result(who, msg string) {
	if p.raw {
		p.write(msg + "\n")
		return
	}
	p.write(fmt.Sprintf("%v %v\n", p.heading.Render(who+":"), msg))
}

// TruncMiddle shortens s to at most width cells by replacing its middle with
// ' ... '. Newlines and tabs are escaped so the result stays on one line.
func TruncMiddle(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\t", "\\t")
	const infix = " ... "
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= len(infix) {
		return string(r[:width])
	}
	avail := width - len(infix)
	startLen := avail / 2
	endLen := avail - startLen
	return string(r[:startLen]) + infix + string(r[len(r)-endLen:])
}
