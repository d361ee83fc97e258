package game

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// StdinPrompter asks for the goal minute on a line-oriented terminal.
type StdinPrompter struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// NewStdinPrompter reads answers from in and writes questions to out.
func NewStdinPrompter(in io.Reader, out io.Writer) *StdinPrompter {
	return &StdinPrompter{in: bufio.NewReader(in), out: out}
}

// PromptMinute re-asks until it reads an integer or the input ends.
func (p *StdinPrompter) PromptMinute() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		fmt.Fprint(p.out, "When was the goal scored (minute)? ")
		line, err := p.in.ReadString('\n')
		if v, convErr := strconv.Atoi(strings.TrimSpace(line)); convErr == nil {
			return v, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read goal minute: %w", err)
		}
		fmt.Fprintln(p.out, "Goal time must be an integer.")
	}
}
