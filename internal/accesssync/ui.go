package accesssync

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// UI is how the sync talks to the operator.
type UI interface {
	Info(msg string)
	Progress(msg string)
	Credentials() (email, password string, err error)
	Confirm(question string) (bool, error)
}

// Tui is a line based terminal UI.
type Tui struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTui returns a Tui reading answers from in and writing to out.
func NewTui(in io.Reader, out io.Writer) *Tui {
	return &Tui{in: bufio.NewReader(in), out: out}
}

func (t *Tui) Info(msg string) {
	fmt.Fprintln(t.out, msg)
}

func (t *Tui) Progress(msg string) {
	fmt.Fprintf(t.out, "... %s\n", msg)
}

// Credentials asks for e-mail and password. The password is echoed.
func (t *Tui) Credentials() (string, string, error) {
	email, err := t.ask("email: ")
	if err != nil {
		return "", "", err
	}
	password, err := t.ask("password: ")
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

// Confirm asks a yes/no question. End of input counts as no and is returned as io.EOF.
func (t *Tui) Confirm(question string) (bool, error) {
	for {
		answer, err := t.ask(question + " [y/n]: ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

func (t *Tui) ask(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	line, err := t.in.ReadString('\n')
	if errors.Is(err, io.EOF) && line != "" {
		err = nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
