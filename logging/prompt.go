package logging

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoInput is returned by Ask and Confirm when the logger has no input.
var ErrNoInput = errors.New("logging: no input available")

// WithInput sets the reader Ask and Confirm read answers from. The default
// is os.Stdin.
func WithInput(r io.Reader) Option {
	return func(o *options) {
		o.input = r
	}
}

// Ask writes prompt to the console and reads one line. With password set,
// terminal echo is disabled and the debug record carries a masked value.
func (l *StructuredLogger) Ask(prompt string, password bool) (string, error) {
	l.Info("User input requested", Fields{"prompt": prompt})

	answer, err := l.out.readAnswer(prompt+": ", password)
	if err != nil {
		return "", err
	}
	logged := answer
	if password {
		logged = strings.Repeat("*", len(answer))
	}
	l.Debug("User input captured", Fields{"prompt": prompt, "value": logged})
	return answer, nil
}

// Confirm asks a yes/no question. An empty answer returns def; anything
// other than y or yes is a no.
func (l *StructuredLogger) Confirm(prompt string, def bool) (bool, error) {
	suffix := " (y/N)"
	if def {
		suffix = " (Y/n)"
	}
	l.Info("User confirmation requested", Fields{"prompt": prompt})

	answer, err := l.out.readAnswer(prompt+suffix+": ", false)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))

	result := def
	if answer != "" {
		result = answer == "y" || answer == "yes"
	}
	l.Debug("User confirmation captured", Fields{"prompt": prompt, "response": answer, "result": result})
	return result, nil
}

func (s *sinks) readAnswer(prompt string, hidden bool) (string, error) {
	s.inMu.Lock()
	defer s.inMu.Unlock()
	if s.input == nil {
		return "", ErrNoInput
	}

	s.mu.Lock()
	if s.console != nil {
		_, _ = io.WriteString(s.console, prompt)
	}
	s.mu.Unlock()

	if f, ok := s.rawInput.(*os.File); ok && hidden && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		s.mu.Lock()
		if s.console != nil {
			_, _ = io.WriteString(s.console, "\n")
		}
		s.mu.Unlock()
		if err != nil {
			return "", fmt.Errorf("logging: read input: %w", err)
		}
		return string(b), nil
	}

	line, err := s.input.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", fmt.Errorf("logging: read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newInput(r io.Reader) *bufio.Reader {
	if r == nil {
		return nil
	}
	return bufio.NewReader(r)
}
