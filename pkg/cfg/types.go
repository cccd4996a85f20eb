// Package cfg builds simplified, security-tagged control flow graphs for
// function bodies. Nodes are plain string labels held in an arena; edges are
// index pairs into that arena.
package cfg

import (
	"encoding/json"
	"fmt"
)

// Fixed node indices present in every graph.
const (
	EntryIndex = 0
	ExitIndex  = 1

	EntryLabel = "Entry"
	ExitLabel  = "Exit"

	// UserEntryLabel marks a public route handler.
	UserEntryLabel = "USER ENTRY (Nest route)"
)

// EdgeKind classifies a CFG edge (or the tag node behind it).
type EdgeKind int

const (
	EdgeBranch EdgeKind = iota
	EdgeLoop
	EdgeReturn
	EdgeNet
	EdgeDB
	EdgeAuth
	EdgeCrypto
	EdgeSecret
	EdgeLog
	EdgeOther
)

var edgeKindNames = [...]string{
	EdgeBranch: "branch",
	EdgeLoop:   "loop",
	EdgeReturn: "return",
	EdgeNet:    "net",
	EdgeDB:     "db",
	EdgeAuth:   "auth",
	EdgeCrypto: "crypto",
	EdgeSecret: "secret",
	EdgeLog:    "log",
	EdgeOther:  "other",
}

// String returns the snake_case tag used in reports.
func (k EdgeKind) String() string {
	if k < 0 || int(k) >= len(edgeKindNames) {
		return "unknown"
	}
	return edgeKindNames[k]
}

// Prefix returns the label prefix a tag node of this kind carries.
func (k EdgeKind) Prefix() string {
	switch k {
	case EdgeNet:
		return "NET"
	case EdgeDB:
		return "DB"
	case EdgeAuth:
		return "AUTH"
	case EdgeCrypto:
		return "CRYPTO"
	case EdgeSecret:
		return "SECRET"
	case EdgeLog:
		return "LOG"
	default:
		return "OTHER"
	}
}

// MarshalJSON implements json.Marshaler.
func (k EdgeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (k *EdgeKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseEdgeKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseEdgeKind maps a snake_case tag back to its EdgeKind.
func ParseEdgeKind(s string) (EdgeKind, error) {
	for i, name := range edgeKindNames {
		if name == s {
			return EdgeKind(i), nil
		}
	}
	return EdgeOther, fmt.Errorf("unknown edge kind %q", s)
}

// SimpleCFG is the per-function graph: ordered node labels and directed
// (source, destination) index pairs. Nodes[0] is Entry and Nodes[1] is Exit.
type SimpleCFG struct {
	Nodes []string `json:"nodes" msgpack:"nodes"`
	Edges [][2]int `json:"edges" msgpack:"edges"`
}

// NewSimpleCFG returns a graph holding only the Entry and Exit nodes.
func NewSimpleCFG() *SimpleCFG {
	return &SimpleCFG{
		Nodes: []string{EntryLabel, ExitLabel},
		Edges: make([][2]int, 0),
	}
}

// Validate checks the Entry/Exit invariant and edge bounds.
func (g *SimpleCFG) Validate() error {
	if len(g.Nodes) < 2 || g.Nodes[EntryIndex] != EntryLabel || g.Nodes[ExitIndex] != ExitLabel {
		return fmt.Errorf("graph must start with %q and %q", EntryLabel, ExitLabel)
	}
	for i, e := range g.Edges {
		if e[0] < 0 || e[0] >= len(g.Nodes) || e[1] < 0 || e[1] >= len(g.Nodes) {
			return fmt.Errorf("edge %d (%d->%d) out of bounds for %d nodes", i, e[0], e[1], len(g.Nodes))
		}
	}
	return nil
}

// FileCFGs maps qualified function names to their graphs for one file.
type FileCFGs map[string]SimpleCFG
