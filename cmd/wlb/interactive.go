package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	commandStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// maxEntries bounds the scrollback kept on screen.
const maxEntries = 50

type entry struct {
	err    error
	line   string
	output string
}

type interactiveModel struct {
	sh      *shell
	input   textinput.Model
	entries []entry
	history []string
	histIdx int
	height  int
}

func newInteractiveModel(sh *shell) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render("wlb> ")
	ti.Placeholder = "help"
	ti.Width = 60
	ti.Focus()
	return &interactiveModel{sh: sh, input: ti}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			return m, tea.Quit

		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			if line == "quit" || line == "exit" {
				return m, tea.Quit
			}
			if line == "clear" {
				m.entries = nil
				return m, nil
			}
			m.history = append(m.history, line)
			m.histIdx = len(m.history)
			out, err := m.sh.exec(line)
			m.entries = append(m.entries, entry{line: line, output: out, err: err})
			if len(m.entries) > maxEntries {
				m.entries = m.entries[len(m.entries)-maxEntries:]
			}
			return m, nil

		case "up":
			if m.histIdx > 0 {
				m.histIdx--
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.histIdx < len(m.history)-1 {
				m.histIdx++
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			} else {
				m.histIdx = len(m.history)
				m.input.SetValue("")
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("WLB Bridge"))
	if pid, err := m.sh.bc.Process().ID(); err == nil {
		fmt.Fprintf(&b, " pid %d", pid)
	}
	b.WriteString("\n\n")

	var lines []string
	for _, e := range m.entries {
		lines = append(lines, commandStyle.Render("> "+e.line))
		switch {
		case e.err != nil:
			lines = append(lines, errorStyle.Render(fmt.Sprintf("Error: %v", e.err)))
		case e.output != "":
			lines = append(lines, resultStyle.Render(e.output))
		}
	}
	// Keep the newest output above the prompt.
	if m.height > 6 {
		text := strings.Split(strings.Join(lines, "\n"), "\n")
		if room := m.height - 6; len(text) > room {
			text = text[len(text)-room:]
		}
		lines = text
	}
	if len(lines) > 0 {
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter run • ↑/↓ history • clear • ctrl+c quit"))
	return b.String()
}

func runInteractive(sh *shell) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal")
	}
	p := tea.NewProgram(newInteractiveModel(sh), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
