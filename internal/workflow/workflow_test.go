package workflow

import (
	"reflect"
	"testing"
)

func TestDispatch(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []Agent
	}{
		{
			name:  "generate bucket",
			query: "please generate a login handler",
			want:  []Agent{AgentArchitect, AgentGenerator, AgentSecurity},
		},
		{
			name:  "refactor bucket",
			query: "refactor this for readability",
			want:  []Agent{AgentRefactorer, AgentArchitect},
		},
		{
			name:  "impact bucket",
			query: "what is the impact of renaming this package?",
			want:  []Agent{AgentChangeImpact, AgentSecurity, AgentArchitect},
		},
		{
			name:  "architecture bucket",
			query: "give me an overview of the codebase",
			want:  []Agent{AgentExplorer, AgentArchitect, AgentExplainer},
		},
		{
			name:  "explain bucket",
			query: "explain this function",
			want:  []Agent{AgentExplainer},
		},
		{
			name:  "no trigger falls back to explorer",
			query: "hello there",
			want:  []Agent{AgentExplorer},
		},
		{
			name:  "empty query falls back to explorer",
			query: "",
			want:  []Agent{AgentExplorer},
		},
		{
			name:  "case insensitive",
			query: "EXPLAIN the session package",
			want:  []Agent{AgentExplainer},
		},
		{
			name: "two buckets: earlier declaration wins",
			// "write" (bucket 1) beats "refactor" (bucket 2) even though
			// "refactor" appears first in the text.
			query: "refactor then write the tests",
			want:  []Agent{AgentArchitect, AgentGenerator, AgentSecurity},
		},
		{
			name: "explain loses to refactor",
			// Declared order puts the refactor bucket before explain.
			query: "explain how to refactor this",
			want:  []Agent{AgentRefactorer, AgentArchitect},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dispatch(tt.query)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Dispatch(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

// TestDispatchDeterministic pins the pure-function contract: same input,
// same output, and returned slices are independent copies.
func TestDispatchDeterministic(t *testing.T) {
	a := Dispatch("generate a parser")
	b := Dispatch("generate a parser")
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("dispatch not deterministic: %v vs %v", a, b)
	}
	a[0] = AgentExplainer
	c := Dispatch("generate a parser")
	if c[0] != AgentArchitect {
		t.Error("mutating a returned slice leaked into the dispatch table")
	}
}

// TestRuleOrderFixture pins the declared bucket order. If this test fails,
// dispatch behavior changed for multi-bucket queries; update deliberately.
func TestRuleOrderFixture(t *testing.T) {
	wantFirstTriggers := []string{"generate", "refactor", "impact", "architecture", "explain"}
	if len(rules) != len(wantFirstTriggers) {
		t.Fatalf("expected %d rules, got %d", len(wantFirstTriggers), len(rules))
	}
	for i, want := range wantFirstTriggers {
		if rules[i].triggers[0] != want {
			t.Errorf("rule %d leads with %q, want %q", i, rules[i].triggers[0], want)
		}
	}
}

func TestIsStructural(t *testing.T) {
	if !IsStructural("show me the Architecture") {
		t.Error("architecture query should be structural")
	}
	if IsStructural("explain this loop") {
		t.Error("explain query should not be structural")
	}
}
