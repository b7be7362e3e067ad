package bootstrap

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gookit/color"
)

// PasswordSink receives a freshly generated administrator password. It is
// called once per generated password and is the only place the plaintext
// leaves the process.
type PasswordSink interface {
	Emit(username, password string)
}

// SinkFunc adapts a function to PasswordSink.
type SinkFunc func(username, password string)

func (f SinkFunc) Emit(username, password string) { f(username, password) }

// ConsoleSink prints a highlighted banner to W, or stdout when W is nil.
type ConsoleSink struct {
	W io.Writer
}

func (s ConsoleSink) Emit(username, password string) {
	w := s.W
	if w == nil {
		w = os.Stdout
	}
	rule := strings.Repeat("═", 66)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, color.Bold.Sprint("  ADMINISTRATOR CREDENTIALS"))
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "      username: %s\n", color.Cyan.Sprint(username))
	fmt.Fprintf(w, "      password: %s\n", color.Green.Sprint(password))
	fmt.Fprintln(w)
	fmt.Fprintln(w, color.Yellow.Sprint("  WARNING: This password will only be shown once!"))
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
}
