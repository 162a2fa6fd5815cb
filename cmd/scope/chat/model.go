// Package chat provides the interactive TUI for codescope: a repository
// tree browser alongside a chat narrated by specialist agents.
package chat

import (
	"fmt"
	"sort"

	"codescope/cmd/scope/ui"
	"codescope/internal/gateway"
	"codescope/internal/logging"
	"codescope/internal/repotree"
	"codescope/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// InitChat builds the initial chat model from CLI configuration.
func InitChat(cfg Config) Model {
	styles := ui.DefaultStyles()

	ta := textarea.New()
	ta.Placeholder = "Ask about the repository... (Enter to send, Tab for tree, Ctrl+C to exit)"
	ta.Focus()
	ta.Prompt = "| "
	ta.CharLimit = 4096
	ta.SetWidth(80)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	tvp := viewport.New(30, 20)
	tvp.SetContent("")

	renderer := newRenderer(styles, 80)

	gwCfg := gateway.DefaultConfig(cfg.APIKey)
	if cfg.Model != "" {
		gwCfg.Model = cfg.Model
	}
	if cfg.BaseURL != "" {
		gwCfg.BaseURL = cfg.BaseURL
	}
	client := gateway.NewClientWithConfig(gwCfg)

	st := session.NewState()

	m := Model{
		textarea:     ta,
		viewport:     vp,
		treeVP:       tvp,
		spinner:      sp,
		styles:       styles,
		renderer:     renderer,
		state:        st,
		focus:        FocusInput,
		showTree:     true,
		client:       client,
		workspace:    cfg.Workspace,
		collapsed:    make(map[string]bool),
		historyIndex: -1,
	}
	m.treeRows = flattenForest(st.Forest, m.collapsed)

	if cfg.APIKey == "" {
		warn := session.NewAssistantMessage("", "No API key detected. Set `CODESCOPE_API_KEY` or pass `--api-key`; completions will fail without one.")
		m.state = session.Reduce(m.state, session.Notice{Msg: warn})
	}

	logging.Session("chat initialized: workspace=%s model=%s", cfg.Workspace, gwCfg.Model)
	return m
}

func newRenderer(styles ui.Styles, width int) *glamour.TermRenderer {
	var renderer *glamour.TermRenderer
	if styles.Theme.IsDark {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
	} else {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath("light"),
			glamour.WithWordWrap(width),
		)
	}
	return renderer
}

// Init starts the blink and spinner tickers.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
	)
}

// waitForChunk pumps one streamed fragment out of the chunk channel. A
// closed channel means the stream is done.
func (m Model) waitForChunk() tea.Cmd {
	ch := m.chunkChan
	return func() tea.Msg {
		text, ok := <-ch
		if !ok {
			return streamDoneMsg{}
		}
		return chunkMsg(text)
	}
}

// flattenForest renders the forest into visible rows, depth-first, with
// children sorted directories-first then by name. Children of collapsed
// directories are skipped; collapse state is view-only.
func flattenForest(forest []*repotree.FileNode, collapsed map[string]bool) []treeRow {
	var rows []treeRow
	var walk func(nodes []*repotree.FileNode, depth int)
	walk = func(nodes []*repotree.FileNode, depth int) {
		sorted := make([]*repotree.FileNode, len(nodes))
		copy(sorted, nodes)
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].Kind != sorted[j].Kind {
				return sorted[i].Kind == repotree.KindDirectory
			}
			return sorted[i].Name < sorted[j].Name
		})
		for _, n := range sorted {
			if n == nil {
				continue
			}
			rows = append(rows, treeRow{
				path:  n.Path,
				label: n.Name,
				depth: depth,
				kind:  n.Kind,
			})
			if !collapsed[n.Path] {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(forest, 0)
	return rows
}

// RunInteractiveChat starts the TUI program and blocks until exit.
func RunInteractiveChat(cfg Config) error {
	model := InitChat(cfg)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat program failed: %w", err)
	}
	return nil
}
