// This file contains view rendering for the TUI: history, tree pane,
// header, footer.
package chat

import (
	"fmt"
	"strings"
	"time"

	"codescope/internal/repotree"
	"codescope/internal/session"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.state.Messages {
		switch msg.Role {
		case session.RoleUser:
			userStyle := m.styles.Bold.
				Foreground(m.styles.Theme.Primary).
				MarginTop(1)
			sb.WriteString(userStyle.Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(msg.Content))
			sb.WriteString("\n\n")

		default: // assistant
			name := "codescope"
			if msg.Agent != "" {
				name = msg.Agent.DisplayName()
			}
			agentStyle := m.styles.Bold.
				Foreground(m.styles.Theme.Accent).
				MarginTop(1)
			sb.WriteString(agentStyle.Render(name) + "\n")

			content := msg.Content
			if content == "" && m.state.IsGenerating {
				content = "..."
			}
			sb.WriteString(m.safeRenderMarkdown(content))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			// If glamour panics, return plain text
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

// renderTree formats the flattened forest for the tree pane.
func (m Model) renderTree() string {
	if len(m.treeRows) == 0 {
		return m.styles.Muted.Render("(no repositories)")
	}

	var sb strings.Builder
	for i, row := range m.treeRows {
		indent := strings.Repeat("  ", row.depth)

		glyph := "· "
		style := m.styles.TreeFile
		if row.kind == repotree.KindDirectory {
			glyph = "▾ "
			if m.collapsed[row.path] {
				glyph = "▸ "
			}
			style = m.styles.TreeDir
		}

		line := indent + glyph + row.label
		switch {
		case m.focus == FocusTree && i == m.treeCursor:
			line = m.styles.TreeSelected.Render(line)
		case m.state.CurrentFile != nil && row.path == m.state.CurrentFile.Path:
			line = m.styles.AgentTag.Render(line)
		default:
			line = style.Render(line)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()

	chatView := m.viewport.View()
	if m.showTree {
		treeTitle := m.styles.Title.Render("Repositories")
		treePane := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(m.styles.Theme.Border).
			Padding(0, 1).
			Width(treePaneWidth - 2).
			Render(lipgloss.JoinVertical(lipgloss.Left, treeTitle, m.treeVP.View()))
		chatView = lipgloss.JoinHorizontal(lipgloss.Top, treePane, " ", chatView)
	}
	content := m.styles.Content.Render(chatView)

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Theme.Accent).
		Padding(0, 1)
	inputArea := inputStyle.Render(m.textarea.View())

	footer := m.renderFooter()

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		inputArea,
		footer,
	)
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" codescope ")
	workspace := m.styles.Muted.Render(" " + m.workspace)

	var status string
	switch {
	case m.state.IsGenerating:
		status = lipgloss.JoinHorizontal(lipgloss.Center,
			m.spinner.View(), " ", m.renderAgentBar())
	case m.state.Importing:
		status = lipgloss.JoinHorizontal(lipgloss.Center,
			m.spinner.View(), " ", m.styles.Badge.Render("Importing..."))
	default:
		status = m.styles.Success.Render("Ready")
	}

	headerLine := lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", status)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		headerLine,
		workspace,
		m.styles.RenderDivider(m.width),
	)
}

// renderAgentBar lists the agents revealed so far for the in-flight turn.
func (m Model) renderAgentBar() string {
	names := make([]string, 0, len(m.state.ActiveAgents))
	for _, a := range m.state.ActiveAgents {
		names = append(names, a.DisplayName())
	}
	return m.styles.AgentTag.Render(strings.Join(names, " › "))
}

func (m Model) renderFooter() string {
	focusStr := "Input"
	if m.focus == FocusTree {
		focusStr = "Tree"
	}

	fileIndicator := ""
	if m.state.CurrentFile != nil {
		fileIndicator = " | " + m.state.CurrentFile.Path
	}

	importIndicator := ""
	if m.state.Importing {
		importIndicator = " | importing"
	}

	timestamp := time.Now().Format("15:04")
	hotkeys := "Tab: pane | Ctrl+T: tree | /help"
	help := m.styles.Muted.Render(fmt.Sprintf("%s%s%s | %s | %s",
		focusStr, fileIndicator, importIndicator, timestamp, hotkeys))
	return lipgloss.NewStyle().
		MarginTop(1).
		Render(help)
}
