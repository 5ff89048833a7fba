// Package listener wraps a readline terminal so background results can be
// printed without clobbering the line being typed.
package listener

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

type Session struct {
	rl        *readline.Instance
	out       io.Writer
	mu        sync.Mutex
	holdAsync bool
	heldLines []string
}

// New opens a readline session on the terminal.
func New(prompt string) (*Session, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "",
		EOFPrompt:       "",
	})
	if err != nil {
		return nil, fmt.Errorf("init terminal input: %w", err)
	}
	return &Session{rl: rl, out: os.Stdout}, nil
}

// NewPlain returns a session without a terminal that prints to out. Input
// calls return io.EOF.
func NewPlain(out io.Writer) *Session {
	return &Session{out: out}
}

func (s *Session) Close() {
	if s.rl != nil {
		_ = s.rl.Close()
	}
}

func (s *Session) SetPrompt(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rl != nil {
		s.rl.SetPrompt(p)
	}
}

// BeginInteractive holds async output until EndInteractive.
func (s *Session) BeginInteractive() {
	s.mu.Lock()
	s.holdAsync = true
	s.mu.Unlock()
}

func (s *Session) EndInteractive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdAsync = false
	for _, line := range s.heldLines {
		s.writeLineUnlocked(line)
	}
	s.heldLines = nil
}

func (s *Session) writeLineUnlocked(line string) {
	if s.rl == nil {
		fmt.Fprintln(s.out, line)
		return
	}
	_, _ = s.rl.Write([]byte("\r\n" + line + "\r\n"))
	s.rl.Refresh()
}

func (s *Session) PrintAbove(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLineUnlocked(line)
}

// GetInput reads one trimmed line. io.EOF signals Ctrl+D and
// readline.ErrInterrupt signals Ctrl+C.
func (s *Session) GetInput() (string, error) {
	if s.rl == nil {
		return "", io.EOF
	}
	line, err := s.rl.Readline()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (s *Session) GetConfirmation(prompt string) string {
	if s.rl == nil {
		return ""
	}
	s.mu.Lock()
	old := s.rl.Config.Prompt
	s.rl.SetPrompt(prompt)
	s.mu.Unlock()

	line, err := s.rl.Readline()
	if err != nil {
		line = ""
	}
	ans := strings.TrimSpace(strings.ToLower(line))

	s.mu.Lock()
	s.rl.SetPrompt(old)
	s.mu.Unlock()
	return ans
}

// AsyncPrintln prints line above the prompt, or queues it while an
// interactive exchange is in progress.
func (s *Session) AsyncPrintln(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holdAsync {
		s.heldLines = append(s.heldLines, line)
		return
	}
	s.writeLineUnlocked(line)
}

// AskYesNo repeats question until it gets y/yes or n/no. Without a terminal
// it answers no.
func (s *Session) AskYesNo(question string) bool {
	if s.rl == nil {
		return false
	}
	s.BeginInteractive()
	defer s.EndInteractive()

	s.PrintAbove(question + " [y/n]")

	for {
		ans := s.GetConfirmation("> ")
		if ans == "y" || ans == "yes" {
			return true
		}
		if ans == "n" || ans == "no" {
			return false
		}
		s.PrintAbove("Please answer y/n.")
	}
}
