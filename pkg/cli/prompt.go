// Package cli provides line-oriented terminal prompts for setup commands.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// ErrAborted is returned when input ends before a question is answered.
var ErrAborted = errors.New("input closed")

// Prompter asks questions on Out and reads answers from In.
type Prompter struct {
	In      io.Reader
	Out     io.Writer
	scanner *bufio.Scanner
}

// DefaultPrompter returns a Prompter on stdin and stdout.
func DefaultPrompter() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stdout}
}

func (p *Prompter) readLine() (string, error) {
	if p.scanner == nil {
		p.scanner = bufio.NewScanner(p.In)
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrAborted
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// Ask prints question and returns the answer, or def when the answer is
// blank.
func (p *Prompter) Ask(question, def string) (string, error) {
	if def != "" {
		_, _ = fmt.Fprintf(p.Out, "%s [%s]: ", question, def)
	} else {
		_, _ = fmt.Fprintf(p.Out, "%s: ", question)
	}
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

// AskValid repeats Ask until check accepts the answer.
func (p *Prompter) AskValid(question, def string, check func(string) error) (string, error) {
	for {
		ans, err := p.Ask(question, def)
		if err != nil {
			return "", err
		}
		if err := check(ans); err != nil {
			_, _ = fmt.Fprintf(p.Out, "  %v\n", err)
			continue
		}
		return ans, nil
	}
}

// AskSecret reads an answer without echo when In is a terminal. A blank
// answer keeps current.
func (p *Prompter) AskSecret(question, current string) (string, error) {
	hint := ""
	if current != "" {
		hint = " (blank keeps current)"
	}
	_, _ = fmt.Fprintf(p.Out, "%s%s: ", question, hint)

	var line string
	if f, ok := p.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(p.Out)
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(string(b))
	} else {
		var err error
		if line, err = p.readLine(); err != nil {
			return "", err
		}
	}
	if line == "" {
		return current, nil
	}
	return line, nil
}

// AskInt asks for an integer no smaller than lowest.
func (p *Prompter) AskInt(question string, def, lowest int) (int, error) {
	for {
		ans, err := p.Ask(question, strconv.Itoa(def))
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(ans)
		if err == nil && n >= lowest {
			return n, nil
		}
		_, _ = fmt.Fprintf(p.Out, "  Please enter a whole number of at least %d.\n", lowest)
	}
}

// Choose lists options and returns the one picked by number or by name.
func (p *Prompter) Choose(question string, options []string, defaultIdx int) (string, error) {
	_, _ = fmt.Fprintf(p.Out, "%s\n", question)
	for i, opt := range options {
		marker := "  "
		if i == defaultIdx {
			marker = "> "
		}
		_, _ = fmt.Fprintf(p.Out, "%s%d) %s\n", marker, i+1, opt)
	}

	for {
		ans, err := p.Ask("Choice", strconv.Itoa(defaultIdx+1))
		if err != nil {
			return "", err
		}
		if n, err := strconv.Atoi(ans); err == nil && n >= 1 && n <= len(options) {
			return options[n-1], nil
		}
		for _, opt := range options {
			if strings.EqualFold(ans, opt) {
				return opt, nil
			}
		}
		_, _ = fmt.Fprintf(p.Out, "  Please enter a number between 1 and %d.\n", len(options))
	}
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(question string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}
	ans, err := p.Ask(fmt.Sprintf("%s [%s]", question, hint), "")
	if err != nil {
		return false, err
	}
	if ans == "" {
		return defaultYes, nil
	}
	return strings.HasPrefix(strings.ToLower(ans), "y"), nil
}
