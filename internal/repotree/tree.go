// Package repotree models the in-memory repository forest shown in the
// tree pane. Nodes are appended by remote imports and never removed or
// mutated in place; a node's path is its identity across the whole forest.
package repotree

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind discriminates files from directories.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// FileNode is one node of the repository forest. Children is populated only
// for directories; Content only for files whose text has been loaded.
type FileNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	Kind     Kind        `json:"kind"`
	Children []*FileNode `json:"children,omitempty"`
	Content  string      `json:"content,omitempty"`
}

// Find walks the forest depth-first and returns the node with the given
// path, or nil if no node matches.
func Find(forest []*FileNode, path string) *FileNode {
	for _, n := range forest {
		if n == nil {
			continue
		}
		if n.Path == path {
			return n
		}
		if found := Find(n.Children, path); found != nil {
			return found
		}
	}
	return nil
}

// structureNode mirrors FileNode minus Content, bounding the payload size
// of structural prompt context.
type structureNode struct {
	Name     string          `json:"name"`
	Path     string          `json:"path"`
	Kind     Kind            `json:"kind"`
	Children []structureNode `json:"children,omitempty"`
}

func toStructure(nodes []*FileNode) []structureNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]structureNode, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		out = append(out, structureNode{
			Name:     n.Name,
			Path:     n.Path,
			Kind:     n.Kind,
			Children: toStructure(n.Children),
		})
	}
	return out
}

// MarshalStructure serializes the forest as indented JSON with all content
// fields stripped.
func MarshalStructure(forest []*FileNode) ([]byte, error) {
	data, err := json.MarshalIndent(toStructure(forest), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize repository structure: %w", err)
	}
	return data, nil
}

// RawNode is the boundary shape of externally supplied structure (the
// repository-analysis payload). Every field is optional; Coerce defaults
// what is missing before anything enters the typed forest.
type RawNode struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Kind     string     `json:"kind"`
	Children []*RawNode `json:"children"`
}

// Coerce validates and converts raw analysis nodes into strict FileNodes.
// Defaulting rules:
//   - nil nodes are dropped
//   - missing name falls back to the last path segment
//   - missing kind: directory when children are present, file otherwise
//   - an absent children array means leaf, never a crash
func Coerce(raw []*RawNode) []*FileNode {
	if len(raw) == 0 {
		return nil
	}
	out := make([]*FileNode, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		n := &FileNode{
			Name: r.Name,
			Path: r.Path,
		}
		if n.Name == "" {
			if i := strings.LastIndex(r.Path, "/"); i >= 0 {
				n.Name = r.Path[i+1:]
			} else {
				n.Name = r.Path
			}
		}
		switch r.Kind {
		case string(KindDirectory):
			n.Kind = KindDirectory
		case string(KindFile):
			n.Kind = KindFile
		default:
			if len(r.Children) > 0 {
				n.Kind = KindDirectory
			} else {
				n.Kind = KindFile
			}
		}
		if n.Kind == KindDirectory {
			n.Children = Coerce(r.Children)
		}
		out = append(out, n)
	}
	return out
}

// CountNodes returns the total node count of a forest, including roots.
func CountNodes(forest []*FileNode) int {
	total := 0
	for _, n := range forest {
		if n == nil {
			continue
		}
		total += 1 + CountNodes(n.Children)
	}
	return total
}
