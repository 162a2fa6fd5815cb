package chat

import (
	"codescope/internal/logging"
	"codescope/internal/repotree"
	"codescope/internal/session"
	"codescope/internal/workflow"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const treePaneWidth = 32

// Update routes messages to the right handler. Conversation mutations
// all go through session.Reduce so the snapshot swap is the only write.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+t":
			m.showTree = !m.showTree
			if !m.showTree && m.focus == FocusTree {
				m.focus = FocusInput
				m.textarea.Focus()
			}
			m.layout()
			return m, nil
		case "tab":
			if m.showTree {
				if m.focus == FocusInput {
					m.focus = FocusTree
					m.textarea.Blur()
				} else {
					m.focus = FocusInput
					m.textarea.Focus()
				}
				m.syncTree()
			}
			return m, nil
		}

		if m.focus == FocusTree {
			return m.handleTreeKey(msg)
		}
		return m.handleInputKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case chunkMsg:
		m.state = session.Reduce(m.state, session.Chunk{Text: string(msg)})
		m.syncViewport()
		return m, m.waitForChunk()

	case streamDoneMsg:
		m.state = session.Reduce(m.state, session.Complete{})
		m.chunkChan = nil
		m.syncViewport()
		return m, nil

	case agentRevealMsg:
		m.state = session.Reduce(m.state, session.AgentActivated{
			Epoch: msg.epoch,
			Agent: msg.agent,
		})
		return m, nil

	case importDoneMsg:
		return m.handleImportDone(msg)

	case importErrMsg:
		logging.ImportError("import of %s failed: %v", msg.url, msg.err)
		failure := session.NewAssistantMessage(workflow.AgentArchitect,
			"Import failed: "+msg.err.Error())
		m.state = session.Reduce(m.state, session.ImportFailed{Failure: failure})
		m.syncViewport()
		return m, nil

	case spinner.TickMsg:
		m.spinner, spCmd = m.spinner.Update(msg)
		return m, spCmd
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// handleInputKey processes keys while the textarea has focus.
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m.handleSubmit()
	case "ctrl+p":
		if len(m.inputHistory) > 0 {
			if m.historyIndex < 0 {
				m.historyIndex = len(m.inputHistory) - 1
			} else if m.historyIndex > 0 {
				m.historyIndex--
			}
			m.textarea.SetValue(m.inputHistory[m.historyIndex])
		}
		return m, nil
	case "ctrl+n":
		if m.historyIndex >= 0 {
			m.historyIndex++
			if m.historyIndex >= len(m.inputHistory) {
				m.historyIndex = -1
				m.textarea.Reset()
			} else {
				m.textarea.SetValue(m.inputHistory[m.historyIndex])
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// handleTreeKey processes keys while the tree pane has focus.
func (m Model) handleTreeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.treeCursor > 0 {
			m.treeCursor--
		}
	case "down", "j":
		if m.treeCursor < len(m.treeRows)-1 {
			m.treeCursor++
		}
	case "enter":
		if m.treeCursor >= 0 && m.treeCursor < len(m.treeRows) {
			row := m.treeRows[m.treeCursor]
			if row.kind == repotree.KindDirectory {
				m.collapsed[row.path] = !m.collapsed[row.path]
				m.treeRows = flattenForest(m.state.Forest, m.collapsed)
				if m.treeCursor >= len(m.treeRows) {
					m.treeCursor = len(m.treeRows) - 1
				}
			} else {
				m.state = session.Reduce(m.state, session.SelectFile{Path: row.path})
				m.syncViewport()
			}
		}
	case "esc":
		m.focus = FocusInput
		m.textarea.Focus()
	}
	m.syncTree()
	return m, nil
}

// handleImportDone folds a completed analysis into the forest.
func (m Model) handleImportDone(msg importDoneMsg) (tea.Model, tea.Cmd) {
	analysis := msg.analysis

	root := &repotree.FileNode{
		Name:     analysis.Name,
		Path:     analysis.Name,
		Kind:     repotree.KindDirectory,
		Children: repotree.Coerce(analysis.Structure),
	}

	summary := "Imported **" + analysis.Name + "**"
	if analysis.Summary != "" {
		summary += ": " + analysis.Summary
	}
	if len(analysis.Stack) > 0 {
		summary += "\n\nStack: "
		for i, s := range analysis.Stack {
			if i > 0 {
				summary += ", "
			}
			summary += s
		}
	}

	m.state = session.Reduce(m.state, session.ImportSucceeded{
		Root:    root,
		Summary: session.NewAssistantMessage(workflow.AgentArchitect, summary),
	})
	m.treeRows = flattenForest(m.state.Forest, m.collapsed)
	logging.Import("imported %s: %d nodes", analysis.Name, repotree.CountNodes([]*repotree.FileNode{root}))
	m.syncViewport()
	m.syncTree()
	return m, nil
}

// layout recomputes component sizes after a resize or pane toggle.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}

	chatWidth := m.width - 4
	if m.showTree {
		chatWidth -= treePaneWidth
	}
	if chatWidth < 20 {
		chatWidth = 20
	}

	// Header, divider, input box, footer.
	contentHeight := m.height - 8
	if contentHeight < 5 {
		contentHeight = 5
	}

	m.viewport.Width = chatWidth
	m.viewport.Height = contentHeight
	m.treeVP.Width = treePaneWidth - 2
	m.treeVP.Height = contentHeight
	m.textarea.SetWidth(m.width - 6)

	m.renderer = newRenderer(m.styles, chatWidth)
	m.syncViewport()
	m.syncTree()
}

// syncViewport re-renders the conversation into the chat viewport.
func (m *Model) syncViewport() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

// syncTree re-renders the tree pane.
func (m *Model) syncTree() {
	m.treeVP.SetContent(m.renderTree())
}
