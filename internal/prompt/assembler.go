// Package prompt builds the composite prompt sent to the completion
// gateway. Assembly is a read-only projection of session state: context
// blocks first, the literal query last, history carried separately.
package prompt

import (
	"fmt"
	"strings"

	"codescope/internal/gateway"
	"codescope/internal/logging"
	"codescope/internal/repotree"
	"codescope/internal/session"
	"codescope/internal/workflow"
)

// Assemble composes the prompt for a query against the current snapshot.
// Block order is fixed:
//  1. repository structure JSON (content stripped), structural queries only
//  2. active-file path and content, when a file is selected
//  3. the literal query
//
// A non-structural query with no active file yields exactly "Query: " +
// query, nothing else.
func Assemble(query string, st session.State) string {
	var sb strings.Builder

	if workflow.IsStructural(query) && len(st.Forest) > 0 {
		if data, err := repotree.MarshalStructure(st.Forest); err == nil {
			sb.WriteString("Repository structure (JSON, content omitted):\n")
			sb.Write(data)
			sb.WriteString("\n\n")
		} else {
			// A serialization failure costs the context block, not the turn.
			logging.Get(logging.CategoryAPI).Warn("structure serialization failed: %v", err)
		}
	}

	if st.CurrentFile != nil {
		sb.WriteString(fmt.Sprintf("Active file: %s\n```\n%s\n```\n\n", st.CurrentFile.Path, st.CurrentFile.Content))
	}

	sb.WriteString("Query: ")
	sb.WriteString(query)
	return sb.String()
}

// History projects prior conversation turns for the gateway: every message
// with non-empty content, chronological, roles preserved. The in-flight
// empty placeholder is excluded until it has content.
func History(st session.State) []gateway.Turn {
	turns := make([]gateway.Turn, 0, len(st.Messages))
	for _, m := range st.Messages {
		if m.Content == "" {
			continue
		}
		turns = append(turns, gateway.Turn{Role: string(m.Role), Content: m.Content})
	}
	return turns
}
