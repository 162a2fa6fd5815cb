package chat

import (
	"context"
	"strings"

	"codescope/cmd/scope/ui"
	"codescope/internal/gateway"
	"codescope/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
)

// stubCompleter is a canned gateway for Update-loop tests.
type stubCompleter struct {
	chunks   []string
	analysis *gateway.RepoAnalysis
	err      error
}

func (s *stubCompleter) StreamCompletion(ctx context.Context, prompt string, history []gateway.Turn, onChunk func(string)) (string, error) {
	for _, c := range s.chunks {
		onChunk(c)
	}
	return strings.Join(s.chunks, ""), nil
}

func (s *stubCompleter) AnalyzeRepository(ctx context.Context, url string) (*gateway.RepoAnalysis, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.analysis, nil
}

// NewTestModel builds a minimal model without a terminal.
func NewTestModel() Model {
	styles := ui.NewStyles(ui.LightTheme())

	ta := textarea.New()
	ta.Focus()

	st := session.NewState()

	m := Model{
		textarea:     ta,
		viewport:     viewport.New(80, 20),
		treeVP:       viewport.New(30, 20),
		spinner:      spinner.New(),
		styles:       styles,
		state:        st,
		focus:        FocusInput,
		showTree:     true,
		client:       &stubCompleter{},
		workspace:    "/tmp/test",
		collapsed:    make(map[string]bool),
		historyIndex: -1,
		ready:        true,
		width:        100,
		height:       40,
	}
	m.treeRows = flattenForest(st.Forest, m.collapsed)
	return m
}
