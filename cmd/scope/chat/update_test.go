// This file tests the Update loop: message routing, the submit path,
// streaming, agent reveal, and the import track.
package chat

import (
	"errors"
	"strings"
	"testing"

	"codescope/internal/gateway"
	"codescope/internal/repotree"
	"codescope/internal/session"
	"codescope/internal/workflow"

	tea "github.com/charmbracelet/bubbletea"
)

func TestUpdate_WindowSize(t *testing.T) {
	t.Parallel()
	m := NewTestModel()

	newModel, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	result := newModel.(Model)

	if result.width != 120 {
		t.Errorf("Expected width 120, got %d", result.width)
	}
	if result.height != 40 {
		t.Errorf("Expected height 40, got %d", result.height)
	}
	if !result.ready {
		t.Error("Expected model to be ready after first resize")
	}
}

func TestUpdate_WindowSize_Zero(t *testing.T) {
	t.Parallel()
	m := NewTestModel()

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Panic on zero window size: %v", r)
		}
	}()

	newModel, _ := m.Update(tea.WindowSizeMsg{Width: 0, Height: 0})
	_ = newModel
}

func TestSubmitStartsStream(t *testing.T) {
	t.Parallel()
	m := NewTestModel()
	m.textarea.SetValue("explain the server package")

	newModel, cmd := m.handleSubmit()
	result := newModel.(Model)

	if !result.state.IsGenerating {
		t.Error("Expected IsGenerating after submit")
	}
	if got := len(result.state.Messages); got != 2 {
		t.Fatalf("Expected user + placeholder, got %d messages", got)
	}
	if result.state.Messages[0].Role != session.RoleUser {
		t.Error("First message should be the user turn")
	}
	if result.state.Messages[1].Agent != workflow.AgentOrchestrator {
		t.Errorf("Placeholder should carry the orchestrator tag, got %q", result.state.Messages[1].Agent)
	}
	if len(result.state.ActiveAgents) != 1 || result.state.ActiveAgents[0] != workflow.AgentOrchestrator {
		t.Errorf("Expected orchestrator-only active set, got %v", result.state.ActiveAgents)
	}
	if cmd == nil {
		t.Error("Expected a batched command to start the stream")
	}
	if result.textarea.Value() != "" {
		t.Error("Textarea should reset after submit")
	}
}

func TestSubmitWhileStreamingKeepsInput(t *testing.T) {
	t.Parallel()
	m := NewTestModel()
	m.textarea.SetValue("first question")
	newModel, _ := m.handleSubmit()
	m = newModel.(Model)

	m.textarea.SetValue("second question")
	newModel, cmd := m.handleSubmit()
	result := newModel.(Model)

	if cmd != nil {
		t.Error("Second submit should be dropped, not started")
	}
	if got := len(result.state.Messages); got != 2 {
		t.Errorf("Second submit should not add messages, got %d", got)
	}
	if result.textarea.Value() != "second question" {
		t.Error("Dropped submit should keep the typed input")
	}
}

func TestStreamChunksAndDone(t *testing.T) {
	t.Parallel()
	m := NewTestModel()
	m.textarea.SetValue("explain this")
	newModel, _ := m.handleSubmit()
	m = newModel.(Model)

	newModel, cmd := m.Update(chunkMsg("Hello, "))
	m = newModel.(Model)
	if cmd == nil {
		t.Error("Chunk handling should re-arm the pump")
	}
	newModel, _ = m.Update(chunkMsg("world"))
	m = newModel.(Model)

	last := session.LastAssistant(m.state)
	if last == nil || last.Content != "Hello, world" {
		t.Fatalf("Expected streamed content, got %+v", last)
	}

	newModel, _ = m.Update(streamDoneMsg{})
	m = newModel.(Model)
	if m.state.IsGenerating {
		t.Error("Stream done should clear IsGenerating")
	}
	if m.state.ActiveAgents != nil {
		t.Error("Stream done should clear the active agent set")
	}
}

func TestAgentReveal(t *testing.T) {
	t.Parallel()
	m := NewTestModel()
	m.textarea.SetValue("audit the architecture")
	newModel, _ := m.handleSubmit()
	m = newModel.(Model)
	epoch := m.state.Epoch

	newModel, _ = m.Update(agentRevealMsg{epoch: epoch, agent: workflow.AgentExplorer})
	m = newModel.(Model)

	if len(m.state.ActiveAgents) != 2 {
		t.Fatalf("Expected orchestrator + explorer, got %v", m.state.ActiveAgents)
	}
}

func TestAgentRevealStaleEpochDropped(t *testing.T) {
	t.Parallel()
	m := NewTestModel()
	m.textarea.SetValue("audit the architecture")
	newModel, _ := m.handleSubmit()
	m = newModel.(Model)

	newModel, _ = m.Update(agentRevealMsg{epoch: m.state.Epoch - 1, agent: workflow.AgentExplorer})
	m = newModel.(Model)

	if len(m.state.ActiveAgents) != 1 {
		t.Errorf("Stale reveal should be dropped, got %v", m.state.ActiveAgents)
	}
}

func TestImportDoneAddsRoot(t *testing.T) {
	t.Parallel()
	m := NewTestModel()
	m.state = session.Reduce(m.state, session.ImportStarted{})
	before := len(m.state.Forest)

	analysis := &gateway.RepoAnalysis{
		Name:    "acme-api",
		Summary: "REST API service",
		Stack:   []string{"Go", "Postgres"},
		Structure: []*repotree.RawNode{
			{Name: "main.go", Path: "acme-api/main.go", Kind: "file"},
		},
	}
	newModel, _ := m.Update(importDoneMsg{analysis: analysis})
	result := newModel.(Model)

	if result.state.Importing {
		t.Error("Import done should clear the busy flag")
	}
	if got := len(result.state.Forest); got != before+1 {
		t.Fatalf("Expected forest to grow by one root, got %d", got)
	}
	root := result.state.Forest[len(result.state.Forest)-1]
	if root.Name != "acme-api" || root.Kind != repotree.KindDirectory {
		t.Errorf("Unexpected root: %+v", root)
	}
	last := session.LastAssistant(result.state)
	if last == nil || last.Agent != workflow.AgentArchitect {
		t.Error("Import summary should be tagged Architect")
	}
	if last != nil && !strings.Contains(last.Content, "acme-api") {
		t.Error("Import summary should name the repository")
	}
}

func TestImportErrLeavesForest(t *testing.T) {
	t.Parallel()
	m := NewTestModel()
	m.state = session.Reduce(m.state, session.ImportStarted{})
	before := len(m.state.Forest)

	newModel, _ := m.Update(importErrMsg{url: "github.com/x/y", err: errors.New("boom")})
	result := newModel.(Model)

	if result.state.Importing {
		t.Error("Import failure should clear the busy flag")
	}
	if got := len(result.state.Forest); got != before {
		t.Errorf("Failed import must not change the forest, got %d roots", got)
	}
	last := session.LastAssistant(result.state)
	if last == nil || !strings.Contains(last.Content, "boom") {
		t.Error("Failure message should carry the error")
	}
}

func TestImportCommandRejectsBadURL(t *testing.T) {
	t.Parallel()
	m := NewTestModel()
	m.textarea.SetValue("/import not a url")

	newModel, cmd := m.handleSubmit()
	result := newModel.(Model)

	if cmd != nil {
		t.Error("Invalid URL should not start an import command")
	}
	if result.state.Importing {
		t.Error("Invalid URL should not flip the import flag")
	}
	last := session.LastAssistant(result.state)
	if last == nil {
		t.Fatal("Expected a usage or failure message")
	}
}

func TestImportCommandStartsAnalysis(t *testing.T) {
	t.Parallel()
	m := NewTestModel()
	m.textarea.SetValue("/import github.com/acme/api")

	newModel, cmd := m.handleSubmit()
	result := newModel.(Model)

	if !result.state.Importing {
		t.Error("Valid import should flip the busy flag")
	}
	if cmd == nil {
		t.Error("Valid import should schedule the analysis command")
	}
}

func TestTreeSelectFile(t *testing.T) {
	t.Parallel()
	m := NewTestModel()

	// Tab moves focus to the tree pane.
	newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = newModel.(Model)
	if m.focus != FocusTree {
		t.Fatal("Tab should focus the tree pane")
	}

	// Walk the cursor to a file row and select it.
	target := -1
	for i, row := range m.treeRows {
		if row.path == "demo-service/cmd/main.go" {
			target = i
			break
		}
	}
	if target < 0 {
		t.Fatal("Seed forest should contain demo-service/cmd/main.go")
	}
	m.treeCursor = target

	newModel, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = newModel.(Model)

	if m.state.CurrentFile == nil || m.state.CurrentFile.Path != "demo-service/cmd/main.go" {
		t.Errorf("Expected main.go selected, got %+v", m.state.CurrentFile)
	}
}

func TestTreeDirectoryCollapseToggle(t *testing.T) {
	t.Parallel()
	m := NewTestModel()
	m.focus = FocusTree
	m.treeCursor = 0 // the demo-service root directory
	total := len(m.treeRows)

	newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	result := newModel.(Model)

	if result.state.CurrentFile != nil {
		t.Errorf("Toggling a directory should not set CurrentFile, got %+v", result.state.CurrentFile)
	}
	if len(result.treeRows) != 1 {
		t.Errorf("Collapsed root should hide its children, got %d rows", len(result.treeRows))
	}

	newModel, _ = result.Update(tea.KeyMsg{Type: tea.KeyEnter})
	reopened := newModel.(Model)
	if len(reopened.treeRows) != total {
		t.Errorf("Re-expanding should restore %d rows, got %d", total, len(reopened.treeRows))
	}
}

func TestToggleTreePane(t *testing.T) {
	t.Parallel()
	m := NewTestModel()
	m.focus = FocusTree

	newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	result := newModel.(Model)

	if result.showTree {
		t.Error("Ctrl+T should hide the tree pane")
	}
	if result.focus != FocusInput {
		t.Error("Hiding the tree should return focus to the input")
	}
}

func TestHelpCommand(t *testing.T) {
	t.Parallel()
	m := NewTestModel()
	m.textarea.SetValue("/help")

	newModel, _ := m.handleSubmit()
	result := newModel.(Model)

	last := session.LastAssistant(result.state)
	if last == nil || !strings.Contains(last.Content, "/import") {
		t.Error("Help should describe the import command")
	}
	if result.state.IsGenerating {
		t.Error("Help must not start a stream")
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()
	m := NewTestModel()
	m.textarea.SetValue("/frobnicate")

	newModel, _ := m.handleSubmit()
	result := newModel.(Model)

	last := session.LastAssistant(result.state)
	if last == nil || !strings.Contains(last.Content, "/frobnicate") {
		t.Error("Unknown command should be echoed back")
	}
}

func TestFlattenForestOrdersDirectoriesFirst(t *testing.T) {
	t.Parallel()
	rows := flattenForest(session.NewState().Forest, nil)

	if len(rows) == 0 {
		t.Fatal("Seed forest should flatten to rows")
	}
	if rows[0].path != "demo-service" || rows[0].kind != repotree.KindDirectory {
		t.Errorf("Expected demo-service root first, got %+v", rows[0])
	}
	// cmd/ and internal/ sort before README.md at depth 1.
	if rows[1].kind != repotree.KindDirectory {
		t.Errorf("Directories should sort before files, got %+v", rows[1])
	}
}
