package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/aretw0/parley/pkg/client"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/protocol"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Renderer prints decoded turns for a person at a terminal.
type Renderer struct {
	out      io.Writer
	profile  termenv.Profile
	markdown func(string) (string, error)
}

// NewRenderer renders to out. With tty set, output regions are rendered as markdown
// and tool regions are colored; otherwise everything is printed as plain text.
func NewRenderer(out io.Writer, tty bool) *Renderer {
	r := &Renderer{out: out, profile: termenv.Ascii}
	if !tty {
		return r
	}
	r.profile = termenv.NewOutput(out).ColorProfile()

	// Initialize renderer with standard style, detecting light/dark background
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(0),
	)
	if err == nil {
		r.markdown = md.Render
	}
	return r
}

// Turn prints every message of t. Question regions are rendered by Question instead of
// as raw payload.
func (r *Renderer) Turn(t *client.Turn) {
	for _, m := range t.Messages {
		switch m.Region {
		case protocol.RegionOutput:
			r.output(m.Text)
		case protocol.RegionToolOutput:
			r.styled(m.Text, "", "#94a3b8")
		case protocol.RegionToolWarning:
			r.styled(m.Text, "warning: ", "#facc15")
		case protocol.RegionToolError:
			r.styled(m.Text, "error: ", "#f87171")
		case protocol.RegionConfirm, protocol.RegionPrompt:
		default:
			fmt.Fprint(r.out, m.Text)
		}
	}
	if t.Question != nil {
		r.Question(t.Question)
	}
}

// Question prints q, leaving the cursor on the same line. Confirmation text already carries
// its options; prompts get their default appended.
func (r *Renderer) Question(q *domain.QuestionPayload) {
	if q.Type != domain.QuestionTypePrompt {
		fmt.Fprint(r.out, r.profile.String(q.Text).Bold().String())
		return
	}
	fmt.Fprint(r.out, r.profile.String(strings.TrimSpace(q.Text)).Bold().String())
	if q.Default != "" {
		fmt.Fprint(r.out, r.profile.String(fmt.Sprintf(" [%s]", q.Default)).Foreground(r.profile.Color("#818cf8")).String())
	}
	fmt.Fprint(r.out, " ")
}

func (r *Renderer) output(text string) {
	if r.markdown != nil {
		if rendered, err := r.markdown(text); err == nil {
			fmt.Fprint(r.out, rendered)
			return
		}
	}
	fmt.Fprint(r.out, ensureNewline(text))
}

func (r *Renderer) styled(text, prefix, color string) {
	s := r.profile.String(prefix + strings.TrimRight(text, "\n")).Foreground(r.profile.Color(color))
	fmt.Fprintln(r.out, s.String())
}

func ensureNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
