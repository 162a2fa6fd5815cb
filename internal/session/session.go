// Package session owns the conversation state machine. State is an
// immutable snapshot; every transition goes through Reduce, which takes the
// prior snapshot and returns a new one. The UI layer holds the current
// snapshot and applies events as they arrive; because snapshots are never
// mutated in place, pending async callbacks (stream chunks, reveal timers)
// cannot lose updates against a stale copy.
package session

import (
	"time"

	"github.com/google/uuid"

	"codescope/internal/repotree"
	"codescope/internal/workflow"
)

// Role tags a message as user- or assistant-authored.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat entry. Content is mutable only for the most recent
// assistant message while a stream is in flight, and only via Reduce.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Agent     workflow.Agent // empty for user messages
	Timestamp int64          // epoch millis, set once at creation
}

// NewUserMessage builds a user message. Identity and clock live here so the
// reducer stays a pure function of its inputs.
func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewAssistantMessage builds an assistant message tagged with an agent
// label. Pass empty content for a streaming placeholder.
func NewAssistantMessage(agent workflow.Agent, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		Agent:     agent,
		Timestamp: time.Now().UnixMilli(),
	}
}

// State is the single per-session snapshot.
type State struct {
	Messages     []Message
	IsGenerating bool
	ActiveAgents []workflow.Agent
	CurrentFile  *repotree.FileNode
	Forest       []*repotree.FileNode

	// Importing gates the remote-import track independently of the
	// completion track, so neither can be invoked twice concurrently.
	Importing bool

	// OpenID pins the in-flight placeholder message. The import track and
	// command notices run in parallel with streaming, so a later assistant
	// message can land mid-stream; chunks must target the placeholder by
	// ID, never whatever assistant message happens to be last.
	OpenID string

	// Epoch increments on every submit. Agent-reveal timers carry the epoch
	// they were scheduled under; Reduce drops activations whose epoch no
	// longer matches, so a late timer cannot resurrect a stale indicator
	// after the session has returned to idle.
	Epoch uint64
}

// NewState returns the initial snapshot with the seed forest loaded.
func NewState() State {
	return State{Forest: repotree.Seed()}
}

// Event is a state transition input. Events carry fully constructed
// messages so Reduce itself performs no I/O and reads no clock.
type Event interface{ isEvent() }

// Submit starts a completion turn: records the user message, inserts the
// streaming placeholder, and flips to generating.
type Submit struct {
	UserMsg     Message
	Placeholder Message
	Workflow    []workflow.Agent
}

// Chunk appends streamed text to the in-flight placeholder.
type Chunk struct{ Text string }

// Complete ends the streaming turn and clears the active-agent set.
type Complete struct{}

// AgentActivated reveals one workflow agent in the status indicator. Epoch
// must match the snapshot's epoch or the event is dropped.
type AgentActivated struct {
	Epoch uint64
	Agent workflow.Agent
}

// ImportStarted flips the import busy flag.
type ImportStarted struct{}

// ImportSucceeded appends the imported root and an architect summary.
type ImportSucceeded struct {
	Root    *repotree.FileNode
	Summary Message
}

// ImportFailed appends a failure message and leaves the forest unchanged.
type ImportFailed struct{ Failure Message }

// SelectFile points CurrentFile at the node with the given path, if any.
type SelectFile struct{ Path string }

// Notice appends a one-off message outside the streaming path, such as
// command feedback.
type Notice struct{ Msg Message }

func (Submit) isEvent()          {}
func (Chunk) isEvent()           {}
func (Complete) isEvent()        {}
func (AgentActivated) isEvent()  {}
func (ImportStarted) isEvent()   {}
func (ImportSucceeded) isEvent() {}
func (ImportFailed) isEvent()    {}
func (SelectFile) isEvent()      {}
func (Notice) isEvent()          {}

// Reduce applies one event to a snapshot and returns the next snapshot.
// Invalid events for the current state return the snapshot unchanged; the
// caller never needs to pre-validate.
func Reduce(st State, ev Event) State {
	switch e := ev.(type) {
	case Submit:
		// Only one outstanding submit may be in flight. A second submit is
		// ignored outright, never queued, so two placeholders can never
		// race on chunk appends.
		if st.IsGenerating || e.UserMsg.Content == "" {
			return st
		}
		next := st
		next.Epoch++
		next.Messages = appendMessages(st.Messages, e.UserMsg, e.Placeholder)
		next.IsGenerating = true
		next.OpenID = e.Placeholder.ID
		next.ActiveAgents = []workflow.Agent{workflow.AgentOrchestrator}
		return next

	case Chunk:
		if !st.IsGenerating {
			return st
		}
		idx := messageIndex(st.Messages, st.OpenID)
		if idx < 0 {
			return st
		}
		next := st
		next.Messages = make([]Message, len(st.Messages))
		copy(next.Messages, st.Messages)
		// Same ID, extended content: the placeholder keeps its identity
		// across the whole stream.
		next.Messages[idx].Content += e.Text
		return next

	case Complete:
		if !st.IsGenerating {
			return st
		}
		next := st
		next.IsGenerating = false
		next.OpenID = ""
		next.ActiveAgents = nil
		return next

	case AgentActivated:
		if e.Epoch != st.Epoch || !st.IsGenerating {
			return st
		}
		for _, a := range st.ActiveAgents {
			if a == e.Agent {
				return st
			}
		}
		next := st
		next.ActiveAgents = make([]workflow.Agent, len(st.ActiveAgents), len(st.ActiveAgents)+1)
		copy(next.ActiveAgents, st.ActiveAgents)
		next.ActiveAgents = append(next.ActiveAgents, e.Agent)
		return next

	case ImportStarted:
		if st.Importing {
			return st
		}
		next := st
		next.Importing = true
		return next

	case ImportSucceeded:
		next := st
		next.Importing = false
		if e.Root != nil {
			// Append-only; duplicate roots from repeated imports of the
			// same URL are permitted.
			next.Forest = make([]*repotree.FileNode, len(st.Forest), len(st.Forest)+1)
			copy(next.Forest, st.Forest)
			next.Forest = append(next.Forest, e.Root)
		}
		next.Messages = appendMessages(st.Messages, e.Summary)
		return next

	case ImportFailed:
		next := st
		next.Importing = false
		next.Messages = appendMessages(st.Messages, e.Failure)
		return next

	case Notice:
		next := st
		next.Messages = appendMessages(st.Messages, e.Msg)
		return next

	case SelectFile:
		node := repotree.Find(st.Forest, e.Path)
		if node == nil || node.Kind != repotree.KindFile {
			return st
		}
		next := st
		next.CurrentFile = node
		return next
	}
	return st
}

// LastAssistant returns the most recent assistant message, or nil.
func LastAssistant(st State) *Message {
	if idx := lastAssistantIndex(st.Messages); idx >= 0 {
		m := st.Messages[idx]
		return &m
	}
	return nil
}

func messageIndex(msgs []Message, id string) int {
	if id == "" {
		return -1
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

func lastAssistantIndex(msgs []Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleAssistant {
			return i
		}
	}
	return -1
}

func appendMessages(msgs []Message, add ...Message) []Message {
	out := make([]Message, len(msgs), len(msgs)+len(add))
	copy(out, msgs)
	return append(out, add...)
}
