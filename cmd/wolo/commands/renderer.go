package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/wolo-ai/wolo/internal/event"
)

// Output styles.
const (
	styleMinimal = "minimal"
	styleDefault = "default"
	styleVerbose = "verbose"
)

// ANSI sequences, blanked out under --no-color.
type palette struct {
	dim, cyan, green, red, reset string
}

var colorPalette = palette{
	dim:   "\x1b[2m",
	cyan:  "\x1b[36m",
	green: "\x1b[32m",
	red:   "\x1b[31m",
	reset: "\x1b[0m",
}

// renderer turns bus events into terminal output. All printing goes
// through one mutex so interleaved tool and text output stays readable.
type renderer struct {
	mu       sync.Mutex
	out      io.Writer
	style    string
	jsonMode bool
	pal      palette

	midLine bool
}

func newRenderer(out io.Writer, style string, jsonMode, noColor bool) *renderer {
	r := &renderer{out: out, style: style, jsonMode: jsonMode}
	if !noColor {
		r.pal = colorPalette
	}
	return r
}

// Attach subscribes the renderer to the event bus and returns the
// unsubscribe function.
func (r *renderer) Attach() func() {
	return event.SubscribeAll(r.handle)
}

func (r *renderer) handle(ev event.Event) {
	if r.jsonMode {
		r.mu.Lock()
		defer r.mu.Unlock()
		data, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintln(r.out, string(data))
		return
	}

	switch ev.Type {
	case event.TextDelta:
		if d, ok := ev.Data.(event.TextDeltaData); ok {
			r.print(d.Text)
		}
	case event.ReasoningDelta:
		if r.style == styleVerbose {
			if d, ok := ev.Data.(event.ReasoningDeltaData); ok {
				r.print(r.pal.dim + d.Text + r.pal.reset)
			}
		}
	case event.AgentStart:
		if r.style == styleVerbose {
			if d, ok := ev.Data.(event.AgentStartData); ok {
				r.println(fmt.Sprintf("%s[step %d: %s]%s", r.pal.dim, d.Step, d.Agent, r.pal.reset))
			}
		}
	case event.ToolStart:
		if r.style == styleMinimal {
			return
		}
		if d, ok := ev.Data.(event.ToolStartData); ok {
			line := fmt.Sprintf("%s→ %s%s", r.pal.cyan, d.ToolName, r.pal.reset)
			if d.Brief != "" {
				line += " " + d.Brief
			}
			r.println(line)
		}
	case event.ToolComplete:
		if r.style == styleMinimal {
			return
		}
		if d, ok := ev.Data.(event.ToolCompleteData); ok {
			r.println(r.toolCompleteLine(d))
			if r.style == styleVerbose && d.Output != "" {
				r.println(r.pal.dim + indent(snippet(d.Output, 12), "  ") + r.pal.reset)
			}
		}
	case event.Error:
		if d, ok := ev.Data.(event.ErrorData); ok {
			r.println(fmt.Sprintf("%serror (%s): %s%s", r.pal.red, d.Kind, d.Message, r.pal.reset))
		}
	case event.Finish:
		if r.style == styleMinimal {
			r.endLine()
			return
		}
		if d, ok := ev.Data.(event.FinishData); ok {
			r.println(fmt.Sprintf("%s[%s after %d steps]%s", r.pal.dim, d.Reason, d.StepCount, r.pal.reset))
		}
	}
}

func (r *renderer) toolCompleteLine(d event.ToolCompleteData) string {
	mark := r.pal.green + "✓" + r.pal.reset
	if d.Status != "completed" {
		mark = r.pal.red + "✗" + r.pal.reset
	}
	line := fmt.Sprintf("%s %s (%s", mark, d.ToolName, d.Status)
	if d.DurationMS > 0 {
		line += fmt.Sprintf(", %dms", d.DurationMS)
	}
	return line + ")"
}

func (r *renderer) print(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, s)
	r.midLine = !strings.HasSuffix(s, "\n")
}

func (r *renderer) println(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.midLine {
		fmt.Fprintln(r.out)
		r.midLine = false
	}
	fmt.Fprintln(r.out, s)
}

func (r *renderer) endLine() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.midLine {
		fmt.Fprintln(r.out)
		r.midLine = false
	}
}

func snippet(s string, maxLines int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > maxLines {
		lines = append(lines[:maxLines], fmt.Sprintf("… (%d more lines)", len(lines)-maxLines))
	}
	return strings.Join(lines, "\n")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}
