package chat

import (
	"time"

	"codescope/cmd/scope/ui"
	"codescope/internal/gateway"
	"codescope/internal/repotree"
	"codescope/internal/session"
	"codescope/internal/workflow"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
)

// agentRevealInterval staggers the cosmetic agent activations in the
// status bar while a response streams.
const agentRevealInterval = 450 * time.Millisecond

// Config holds configuration for initializing the chat interface.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	Workspace string
	Debug     bool
}

// FocusArea determines which pane receives key input.
type FocusArea int

const (
	FocusInput FocusArea = iota
	FocusTree
)

// treeRow is one visible line of the flattened repository tree.
type treeRow struct {
	path  string
	label string
	depth int
	kind  repotree.Kind
}

// Model is the main model for the interactive chat interface. All
// conversation state lives in an immutable session.State snapshot;
// Update only swaps the snapshot via session.Reduce.
type Model struct {
	// UI Components
	textarea textarea.Model
	viewport viewport.Model
	treeVP   viewport.Model
	spinner  spinner.Model
	styles   ui.Styles
	renderer *glamour.TermRenderer

	// State
	state      session.State
	focus      FocusArea
	showTree   bool
	treeCursor int
	treeRows   []treeRow
	collapsed  map[string]bool
	width      int
	height     int
	ready      bool

	// Backend
	client    gateway.Completer
	workspace string

	// Streaming: the goroutine feeding chunkChan is paired with a
	// wait-for-chunk command that pumps it back into Update.
	chunkChan chan string

	// Input History
	inputHistory []string
	historyIndex int
}

// Messages for tea updates
type (
	// chunkMsg carries one streamed completion fragment.
	chunkMsg string

	// streamDoneMsg signals the completion stream has drained.
	streamDoneMsg struct{}

	// agentRevealMsg activates one agent tag in the status bar. Epoch
	// pins it to the submission that scheduled it so late timers from
	// an earlier turn are dropped.
	agentRevealMsg struct {
		epoch uint64
		agent workflow.Agent
	}

	// importDoneMsg carries a completed repository analysis.
	importDoneMsg struct {
		analysis *gateway.RepoAnalysis
	}

	// importErrMsg carries a failed repository import.
	importErrMsg struct {
		url string
		err error
	}
)
