// Copyright (C) 2025 Dillema AI (dev@dillema.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dillema-ai/dillema/pkg/ux"
)

// InputReader abstracts where chat prompts come from, so the loop works
// the same on a TTY, a pipe, and in tests.
type InputReader interface {
	// ReadLine blocks for the next user line. io.EOF ends the session.
	ReadLine() (string, error)
}

// isExitCommand recognizes the ways users end a chat session.
func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", "/exit", "/quit", ":q":
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// Plain stdin reader (pipes, scripts)
// -----------------------------------------------------------------------------

// StdinReader reads newline-delimited input from stdin. Used when stdin
// is not a terminal.
type StdinReader struct {
	scanner *bufio.Scanner
	prompt  string
}

// NewStdinReader creates a reader over os.Stdin.
func NewStdinReader(prompt string) *StdinReader {
	return &StdinReader{
		scanner: bufio.NewScanner(os.Stdin),
		prompt:  prompt,
	}
}

// ReadLine returns the next input line, or io.EOF when stdin closes.
func (r *StdinReader) ReadLine() (string, error) {
	fmt.Print(r.prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// -----------------------------------------------------------------------------
// Interactive reader (bubbletea)
// -----------------------------------------------------------------------------

// InteractiveReader uses a bubbletea textinput with line history for
// terminal sessions.
type InteractiveReader struct {
	prompt     string
	history    []string
	maxHistory int
	mu         sync.Mutex
}

// NewInteractiveReader creates a terminal reader keeping up to
// maxHistory previous lines (arrow-key recall).
func NewInteractiveReader(prompt string, maxHistory int) *InteractiveReader {
	if maxHistory <= 0 {
		maxHistory = 50
	}
	return &InteractiveReader{prompt: prompt, maxHistory: maxHistory}
}

// ReadLine runs one textinput program and returns the submitted line.
func (r *InteractiveReader) ReadLine() (string, error) {
	ti := textinput.New()
	ti.Prompt = r.prompt
	ti.Focus()
	ti.CharLimit = 4096

	r.mu.Lock()
	history := make([]string, len(r.history))
	copy(history, r.history)
	r.mu.Unlock()

	model := inputModel{textInput: ti, history: history, historyPos: len(history)}
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return "", fmt.Errorf("input failed: %w", err)
	}

	m, ok := final.(inputModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type from bubbletea: %T", final)
	}
	if m.aborted {
		return "", io.EOF
	}

	line := m.textInput.Value()
	if strings.TrimSpace(line) != "" {
		r.addToHistory(line)
	}
	return line, nil
}

func (r *InteractiveReader) addToHistory(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, line)
	if len(r.history) > r.maxHistory {
		r.history = r.history[len(r.history)-r.maxHistory:]
	}
}

// inputModel is the bubbletea model for one input line.
type inputModel struct {
	textInput  textinput.Model
	history    []string
	historyPos int
	submitted  bool
	aborted    bool
}

// Init initializes the bubbletea model.
func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key events: enter submits, Ctrl-C/Ctrl-D abort, and
// up/down walk the history.
func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.submitted = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.aborted = true
			return m, tea.Quit
		case tea.KeyUp:
			if m.historyPos > 0 {
				m.historyPos--
				m.textInput.SetValue(m.history[m.historyPos])
				m.textInput.CursorEnd()
			}
			return m, nil
		case tea.KeyDown:
			if m.historyPos < len(m.history)-1 {
				m.historyPos++
				m.textInput.SetValue(m.history[m.historyPos])
				m.textInput.CursorEnd()
			} else if m.historyPos == len(m.history)-1 {
				m.historyPos++
				m.textInput.SetValue("")
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// View renders the input line.
func (m inputModel) View() string {
	if m.submitted || m.aborted {
		return ""
	}
	return m.textInput.View()
}

// -----------------------------------------------------------------------------
// Mock reader for tests
// -----------------------------------------------------------------------------

// MockInputReader replays scripted inputs and then returns io.EOF.
type MockInputReader struct {
	inputs []string
	pos    int
}

// NewMockInputReader creates a reader over the given lines.
func NewMockInputReader(inputs []string) *MockInputReader {
	return &MockInputReader{inputs: inputs}
}

// ReadLine returns the next scripted line.
func (m *MockInputReader) ReadLine() (string, error) {
	if m.pos >= len(m.inputs) {
		return "", io.EOF
	}
	line := m.inputs[m.pos]
	m.pos++
	return line, nil
}

// newChatReader picks the reader that fits the session's stdin.
func newChatReader() InputReader {
	prompt := ux.Styles.Highlight.Render("you") + " > "
	if ux.PlainMode() {
		prompt = "you > "
	}
	if isattyStdin() {
		return NewInteractiveReader(prompt, 50)
	}
	return NewStdinReader(prompt)
}

// Compile-time interface checks.
var (
	_ InputReader = (*StdinReader)(nil)
	_ InputReader = (*InteractiveReader)(nil)
	_ InputReader = (*MockInputReader)(nil)
)
