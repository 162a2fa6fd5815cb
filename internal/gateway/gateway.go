// Package gateway is the boundary to the hosted chat-completion service.
// The core consumes exactly two operations: a streaming completion and a
// schema-constrained repository analysis. Everything past this boundary is
// the provider's business.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"codescope/internal/repotree"
)

// Turn is one prior conversation entry passed alongside the prompt.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RepoAnalysis is the structured result of analyzing a remote repository.
// Structure arrives as raw boundary nodes; callers must run them through
// repotree.Coerce before merging into the forest.
type RepoAnalysis struct {
	Name      string              `json:"name"`
	Summary   string              `json:"summary"`
	Stack     []string            `json:"stack"`
	Structure []*repotree.RawNode `json:"structure"`
}

// Completer is the gateway surface consumed by the session layer.
//
// StreamCompletion delivers text fragments via onChunk in arrival order and
// returns the full concatenation. It never returns a stream failure as an
// error: failures are converted into a single user-visible error fragment,
// delivered through onChunk, and returned as the full text, so the calling
// state machine always terminates normally.
//
// AnalyzeRepository is the opposite policy: failures propagate as errors
// and the import flow is responsible for catching and surfacing them.
type Completer interface {
	StreamCompletion(ctx context.Context, prompt string, history []Turn, onChunk func(string)) (string, error)
	AnalyzeRepository(ctx context.Context, url string) (*RepoAnalysis, error)
}

// ErrorMarker prefixes the synthesized in-band fragment emitted when a
// stream fails. Tests and the UI both key off it.
const ErrorMarker = "⚠️ completion failed"

// ValidateRepoURL is the advisory pre-flight check for the import input.
// It accepts anything resembling host/owner/repo (optionally behind a
// scheme) and rejects the obviously malformed; it is deliberately not
// exhaustive.
func ValidateRepoURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("repository URL is empty")
	}
	if strings.ContainsAny(trimmed, " \t") {
		return fmt.Errorf("repository URL %q contains whitespace", raw)
	}
	trimmed = strings.TrimPrefix(trimmed, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) < 3 {
		return fmt.Errorf("repository URL %q does not look like host/owner/repo", raw)
	}
	for _, p := range parts[:3] {
		if p == "" {
			return fmt.Errorf("repository URL %q has an empty path segment", raw)
		}
	}
	if !strings.Contains(parts[0], ".") {
		return fmt.Errorf("repository URL %q has no recognizable host", raw)
	}
	return nil
}
