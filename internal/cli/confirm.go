package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"expenses/internal/core"
	"expenses/internal/i18n"
	"expenses/internal/view"
)

// Ensure interface conformance
var _ view.Confirmer = (*PromptConfirmer)(nil)

// PromptConfirmer asks for delete confirmation on a line-oriented input.
// Only an answer starting with y (or the Arabic ن) approves.
type PromptConfirmer struct {
	in        *bufio.Reader
	out       io.Writer
	msgs      *i18n.Messages
	assumeYes bool
}

// NewPromptConfirmer reads answers from in and writes prompts to out.
// With assumeYes every delete is approved without prompting.
func NewPromptConfirmer(in io.Reader, out io.Writer, msgs *i18n.Messages, assumeYes bool) *PromptConfirmer {
	if msgs == nil {
		msgs = i18n.For(i18n.English)
	}
	return &PromptConfirmer{in: bufio.NewReader(in), out: out, msgs: msgs, assumeYes: assumeYes}
}

// Interactive reports whether f is attached to a terminal.
func Interactive(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

func (p *PromptConfirmer) Confirm(ctx context.Context, e core.Expense) bool {
	if p.assumeYes {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	label := e.Description
	if label == "" {
		label = fmt.Sprintf("#%d", e.ID)
	}
	fmt.Fprintf(p.out, "%s (%s) [y/N]: ", p.msgs.ConfirmDelete, label)

	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return strings.HasPrefix(answer, "y") || strings.HasPrefix(answer, "ن")
}
