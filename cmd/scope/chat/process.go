package chat

import (
	"context"
	"strings"
	"time"

	"codescope/internal/gateway"
	"codescope/internal/logging"
	"codescope/internal/prompt"
	"codescope/internal/session"
	"codescope/internal/workflow"

	tea "github.com/charmbracelet/bubbletea"
)

// importTimeout bounds a single repository analysis round trip.
const importTimeout = 3 * time.Minute

// handleSubmit routes the textarea content: slash commands first, then
// the chat submit path.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	// A second submit while a stream is in flight is dropped, not
	// queued. The input is kept so nothing typed is lost.
	if m.state.IsGenerating {
		return m, nil
	}

	agents := workflow.Dispatch(input)
	logging.Workflow("dispatch %q -> %v", input, agents)

	// History and context blocks are captured before the reduce so the
	// new user turn is not duplicated into the transcript we send.
	history := prompt.History(m.state)
	fullPrompt := prompt.Assemble(input, m.state)

	m.state = session.Reduce(m.state, session.Submit{
		UserMsg:     session.NewUserMessage(input),
		Placeholder: session.NewAssistantMessage(workflow.AgentOrchestrator, ""),
		Workflow:    agents,
	})
	epoch := m.state.Epoch

	ch := make(chan string, 32)
	m.chunkChan = ch

	m.inputHistory = append(m.inputHistory, input)
	m.historyIndex = -1
	m.textarea.Reset()
	m.syncViewport()

	cmds := []tea.Cmd{
		startStream(m.client, fullPrompt, history, ch),
		m.waitForChunk(),
		m.spinner.Tick,
	}
	cmds = append(cmds, agentRevealCmds(epoch, agents)...)
	return m, tea.Batch(cmds...)
}

// handleCommand processes slash commands.
func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/import":
		if len(fields) < 2 {
			note := session.NewAssistantMessage("", "Usage: `/import <repository-url>`")
			m.state = session.Reduce(m.state, session.Notice{Msg: note})
			m.textarea.Reset()
			m.syncViewport()
			return m, nil
		}
		return m.handleImport(fields[1])

	case "/quit", "/exit":
		return m, tea.Quit

	case "/help":
		help := session.NewAssistantMessage("",
			"Commands: `/import <url>` analyze a repository, `/quit` exit.\n\n"+
				"Keys: Tab focuses the tree pane, Enter selects a file, Ctrl+T hides the tree.")
		m.state = session.Reduce(m.state, session.Notice{Msg: help})
		m.textarea.Reset()
		m.syncViewport()
		return m, nil
	}

	note := session.NewAssistantMessage("", "Unknown command: "+fields[0])
	m.state = session.Reduce(m.state, session.Notice{Msg: note})
	m.textarea.Reset()
	m.syncViewport()
	return m, nil
}

// handleImport kicks off repository analysis on the parallel import
// track. Chat submits stay available while it runs.
func (m Model) handleImport(url string) (tea.Model, tea.Cmd) {
	if m.state.Importing {
		return m, nil
	}

	if err := gateway.ValidateRepoURL(url); err != nil {
		failure := session.NewAssistantMessage(workflow.AgentArchitect,
			"Import failed: "+err.Error())
		m.state = session.Reduce(m.state, session.ImportFailed{Failure: failure})
		m.textarea.Reset()
		m.syncViewport()
		return m, nil
	}

	m.state = session.Reduce(m.state, session.ImportStarted{})
	m.textarea.Reset()
	m.syncViewport()
	logging.Import("analyzing %s", url)

	return m, tea.Batch(importRepository(m.client, url), m.spinner.Tick)
}

// startStream runs the completion in a goroutine-backed command that
// feeds the chunk channel. Stream failures surface as in-band fragments
// from the gateway, so there is no error path here; closing the channel
// is the done signal either way.
func startStream(client gateway.Completer, fullPrompt string, history []gateway.Turn, ch chan string) tea.Cmd {
	return func() tea.Msg {
		defer close(ch)
		_, _ = client.StreamCompletion(context.Background(), fullPrompt, history, func(text string) {
			ch <- text
		})
		return nil
	}
}

// agentRevealCmds schedules one staggered activation tick per agent,
// each carrying the epoch of the submit that scheduled it.
func agentRevealCmds(epoch uint64, agents []workflow.Agent) []tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(agents))
	for i, agent := range agents {
		delay := time.Duration(i+1) * agentRevealInterval
		a := agent
		cmds = append(cmds, tea.Tick(delay, func(time.Time) tea.Msg {
			return agentRevealMsg{epoch: epoch, agent: a}
		}))
	}
	return cmds
}

// importRepository analyzes a repository URL and reports the outcome.
func importRepository(client gateway.Completer, url string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		analysis, err := client.AnalyzeRepository(ctx, url)
		if err != nil {
			return importErrMsg{url: url, err: err}
		}
		return importDoneMsg{analysis: analysis}
	}
}
