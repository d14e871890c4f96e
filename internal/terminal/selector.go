package terminal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/richhaase/consensus-reviewer/internal/github"
)

// ErrSelectionCancelled is returned when the user quits the selector.
var ErrSelectionCancelled = errors.New("selection cancelled")

// ErrNotInteractive is returned when a choice is needed but stdin is not a terminal.
var ErrNotInteractive = errors.New("several pull requests match and stdin is not a terminal")

var (
	selectorTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15"))

	selectorItemStyle = lipgloss.NewStyle().
				PaddingLeft(2)

	selectorCursorStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Background(lipgloss.Color("236"))

	selectorDetailStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("7")).
				PaddingLeft(6)

	selectorHelpStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("8"))
)

// SelectorModel is the bubbletea model for picking one pull request out of
// several search matches.
type SelectorModel struct {
	query     string
	prs       []github.PullRequest
	expanded  map[int]bool // which items show author and URL
	cursor    int
	width     int
	confirmed bool
	quitted   bool
}

// NewSelector creates a selector over prs with the cursor on the first one.
func NewSelector(query string, prs []github.PullRequest) SelectorModel {
	return SelectorModel{
		query:    query,
		prs:      prs,
		expanded: make(map[int]bool),
		width:    GetTerminalWidth(),
	}
}

// Init implements tea.Model.
func (m SelectorModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m SelectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m SelectorModel) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.prs)-1 {
			m.cursor++
		}
	case "tab", "e":
		m.expanded[m.cursor] = !m.expanded[m.cursor]
	case "enter":
		if len(m.prs) == 0 {
			m.quitted = true
			return m, tea.Quit
		}
		m.confirmed = true
		return m, tea.Quit
	case "q", "esc", "ctrl+c":
		m.quitted = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m SelectorModel) View() string {
	if len(m.prs) == 0 {
		return "No pull requests to select.\n"
	}

	var b strings.Builder

	title := fmt.Sprintf("%d open pull requests match %q", len(m.prs), m.query)
	b.WriteString(selectorTitleStyle.Render(title))
	b.WriteString("\n\n")

	for i, pr := range m.prs {
		line := Truncate(fmt.Sprintf("#%d %s (%s)", pr.Number, pr.Title, pr.HeadRefName), m.lineWidth())
		if i == m.cursor {
			b.WriteString(selectorCursorStyle.Render("> " + line))
		} else {
			b.WriteString(selectorItemStyle.Render("  " + line))
		}
		b.WriteString("\n")

		if m.expanded[i] {
			details := fmt.Sprintf("by %s into %s", orUnknown(pr.Author.Login), orUnknown(pr.BaseRefName))
			b.WriteString(selectorDetailStyle.Render(details))
			b.WriteString("\n")
			if pr.URL != "" {
				b.WriteString(selectorDetailStyle.Render(pr.URL))
				b.WriteString("\n")
			}
		}
	}

	b.WriteString("\n")
	b.WriteString(selectorHelpStyle.Render("↑/↓ navigate • tab details • enter review • q quit"))
	b.WriteString("\n")

	return b.String()
}

// lineWidth leaves room for the cursor marker and item padding.
func (m SelectorModel) lineWidth() int {
	return max(m.width-4, 20)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Selected returns the pull request under the cursor.
func (m SelectorModel) Selected() (github.PullRequest, bool) {
	if len(m.prs) == 0 {
		return github.PullRequest{}, false
	}
	return m.prs[m.cursor], true
}

// Confirmed returns true if the user confirmed the selection.
func (m SelectorModel) Confirmed() bool {
	return m.confirmed
}

// Quitted returns true if the user quit without confirming.
func (m SelectorModel) Quitted() bool {
	return m.quitted
}

// PRChooser asks the user to pick a pull request in an interactive terminal UI.
type PRChooser struct {
	// Query is shown in the selector title.
	Query string
}

// Choose runs the selector on stderr and returns the chosen pull request.
func (c PRChooser) Choose(ctx context.Context, candidates []github.PullRequest) (github.PullRequest, error) {
	if !IsTTY(int(os.Stdin.Fd())) || !IsStderrTTY() {
		return github.PullRequest{}, ErrNotInteractive
	}

	p := tea.NewProgram(NewSelector(c.Query, candidates),
		tea.WithContext(ctx),
		tea.WithOutput(os.Stderr),
	)
	final, err := p.Run()
	if err != nil {
		return github.PullRequest{}, fmt.Errorf("pull request selector failed: %w", err)
	}

	m, ok := final.(SelectorModel)
	if !ok || !m.Confirmed() {
		return github.PullRequest{}, ErrSelectionCancelled
	}
	pr, _ := m.Selected()
	return pr, nil
}
