package repl

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Config wires the playground to an evaluation session.
type Config struct {
	// Evaluate expands one line of input.
	Evaluate func(string) string

	// Names lists the registered macro names offered for completion.
	Names []string
}

// Run starts the interactive playground and blocks until the user quits.
func Run(ctx context.Context, cfg Config) error {
	program := tea.NewProgram(
		newModel(cfg),
		tea.WithContext(ctx),
	)

	_, err := program.Run()

	return err
}

// Styles.
//
//nolint:gochecknoglobals
var (
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	resultStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	suggestStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	pickedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

// exchange is one evaluated input/output pair.
type exchange struct {
	input  string
	output string
}

// model is the bubbletea model for the playground.
type model struct {
	cfg       Config
	input     textinput.Model
	history   []exchange
	completer *completer

	// Completion state: candidates for the current word and the index of
	// the highlighted one. Cleared on any edit.
	candidates []completion
	selected   int
}

func newModel(cfg Config) *model {
	input := textinput.New()
	input.Prompt = promptStyle.Render("mex> ")
	input.Placeholder = "{{…}}"
	input.Focus()

	return &model{
		cfg:       cfg,
		input:     input,
		completer: &completer{names: cfg.Names},
	}
}

// Init implements tea.Model.
func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd

		m.input, cmd = m.input.Update(msg)

		return m, cmd
	}

	switch keyMsg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		m.submit()

		return m, nil

	case tea.KeyTab:
		m.completeNext()

		return m, nil
	}

	// Any other key edits the line and invalidates completion state.
	m.candidates = nil
	m.selected = 0

	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

// submit evaluates the current line and appends it to the history.
func (m *model) submit() {
	line := m.input.Value()
	if strings.TrimSpace(line) == "" {
		return
	}

	m.history = append(m.history, exchange{
		input:  line,
		output: m.cfg.Evaluate(line),
	})

	m.input.SetValue("")
	m.candidates = nil
	m.selected = 0
}

// completeNext applies the next completion candidate for the identifier
// under the cursor, cycling through candidates on repeated presses.
func (m *model) completeNext() {
	if len(m.candidates) == 0 {
		m.candidates = m.completer.complete(m.input.Value(), m.input.Position())
		m.selected = 0
	} else {
		// Cycling: restore the original word bounds from the applied
		// candidate before applying the next one.
		m.selected = (m.selected + 1) % len(m.candidates)
	}

	if len(m.candidates) == 0 {
		return
	}

	m.apply(m.candidates[m.selected])
}

// apply replaces the word under completion with the candidate name.
func (m *model) apply(c completion) {
	value := m.input.Value()

	// Bounds were computed against the value at completion start; when
	// cycling, the value still begins identically up to c.Start, and the
	// previously inserted candidate ends at the cursor.
	end := m.input.Position()
	if end < c.End {
		end = c.End
	}

	next := value[:c.Start] + c.Name + value[end:]
	m.input.SetValue(next)
	m.input.SetCursor(c.Start + len(c.Name))
}

// View implements tea.Model.
func (m *model) View() string {
	var sb strings.Builder

	for _, ex := range m.history {
		sb.WriteString(promptStyle.Render("mex> "))
		sb.WriteString(ex.input)
		sb.WriteByte('\n')
		sb.WriteString(resultStyle.Render(ex.output))
		sb.WriteByte('\n')
	}

	sb.WriteString(m.input.View())
	sb.WriteByte('\n')

	if len(m.candidates) > 0 {
		parts := make([]string, len(m.candidates))

		for i, c := range m.candidates {
			if i == m.selected {
				parts[i] = pickedStyle.Render(c.Name)

				continue
			}

			parts[i] = suggestStyle.Render(c.Name)
		}

		fmt.Fprintf(&sb, "  %s\n", strings.Join(parts, "  "))
	}

	sb.WriteString(helpStyle.Render("enter: expand · tab: complete · esc: quit"))
	sb.WriteByte('\n')

	return sb.String()
}
