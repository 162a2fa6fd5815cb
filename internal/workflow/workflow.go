// Package workflow maps free-text user requests to ordered sequences of
// specialist agent labels. Agents carry no behavior; they narrate which
// persona frames a single model call and drive the status indicator.
package workflow

import "strings"

// Agent is a display label for a specialist persona.
type Agent string

const (
	AgentOrchestrator Agent = "orchestrator"
	AgentExplorer     Agent = "explorer"
	AgentExplainer    Agent = "explainer"
	AgentArchitect    Agent = "architect"
	AgentChangeImpact Agent = "change-impact"
	AgentSecurity     Agent = "security"
	AgentGenerator    Agent = "generator"
	AgentRefactorer   Agent = "refactorer"
)

// DisplayName returns the human-facing name shown in the agent status bar.
func (a Agent) DisplayName() string {
	switch a {
	case AgentOrchestrator:
		return "Orchestrator"
	case AgentExplorer:
		return "Explorer"
	case AgentExplainer:
		return "Explainer"
	case AgentArchitect:
		return "Architect"
	case AgentChangeImpact:
		return "Change Impact"
	case AgentSecurity:
		return "Security"
	case AgentGenerator:
		return "Generator"
	case AgentRefactorer:
		return "Refactorer"
	default:
		return string(a)
	}
}

// rule binds a set of trigger substrings to a pre-defined agent sequence.
type rule struct {
	triggers []string
	sequence []Agent
}

// rules is consulted in declaration order; the first rule with any matching
// trigger wins outright. Reordering entries changes dispatch behavior for
// queries that hit multiple buckets, so the order here is a contract.
var rules = []rule{
	{
		triggers: []string{"generate", "create", "write", "build", "implement", "setup"},
		sequence: []Agent{AgentArchitect, AgentGenerator, AgentSecurity},
	},
	{
		triggers: []string{"refactor", "optimize", "improve", "readability"},
		sequence: []Agent{AgentRefactorer, AgentArchitect},
	},
	{
		triggers: []string{"impact", "change"},
		sequence: []Agent{AgentChangeImpact, AgentSecurity, AgentArchitect},
	},
	{
		triggers: []string{"architecture", "structure", "overview", "audit"},
		sequence: []Agent{AgentExplorer, AgentArchitect, AgentExplainer},
	},
	{
		triggers: []string{"explain"},
		sequence: []Agent{AgentExplainer},
	},
}

// structuralTriggers mark queries that want repository-structure context
// prepended to the prompt. Kept in sync with the architecture rule above.
var structuralTriggers = []string{"architecture", "structure", "overview", "audit"}

// Dispatch maps a query to its agent workflow. The result is never empty:
// queries matching no trigger fall back to a lone Explorer. The returned
// slice is a fresh copy; callers may mutate it freely.
func Dispatch(query string) []Agent {
	q := strings.ToLower(query)
	for _, r := range rules {
		for _, t := range r.triggers {
			if strings.Contains(q, t) {
				out := make([]Agent, len(r.sequence))
				copy(out, r.sequence)
				return out
			}
		}
	}
	return []Agent{AgentExplorer}
}

// IsStructural reports whether a query should receive the serialized
// repository forest as prompt context.
func IsStructural(query string) bool {
	q := strings.ToLower(query)
	for _, t := range structuralTriggers {
		if strings.Contains(q, t) {
			return true
		}
	}
	return false
}
