package output

import (
	"fmt"
	"io"
)

// Messenger writes short status lines. Status goes to out and warnings to
// errOut, so JSON on out stays parseable.
type Messenger struct {
	out    io.Writer
	errOut io.Writer
	quiet  bool
}

// NewMessenger creates a Messenger. With quiet set, Info and Success are dropped.
func NewMessenger(out, errOut io.Writer, quiet bool) *Messenger {
	return &Messenger{out: out, errOut: errOut, quiet: quiet}
}

// Infof prints an informational line.
func (m *Messenger) Infof(format string, args ...any) {
	if m.quiet {
		return
	}
	_, _ = fmt.Fprintf(m.out, "ℹ️  "+format+"\n", args...)
}

// Warnf prints a warning line to the error stream.
func (m *Messenger) Warnf(format string, args ...any) {
	_, _ = fmt.Fprintf(m.errOut, "⚠️  "+format+"\n", args...)
}

// Successf prints a success line.
func (m *Messenger) Successf(format string, args ...any) {
	if m.quiet {
		return
	}
	_, _ = fmt.Fprintf(m.out, "✅ "+format+"\n", args...)
}
