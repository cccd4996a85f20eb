// Package flow merges per-file CFGs into a repository-wide security flow:
// every edge gets a kind derived from its endpoint labels, duplicates are
// dropped, and summary counters are computed.
package flow

import (
	"sort"
	"strings"

	"github.com/l3aro/casesmith/pkg/cfg"
)

// SensitiveTerms mark an edge as touching personal or secret data.
var SensitiveTerms = []string{"pii", "ssn", "passport", "password", "token", "secret"}

// SecIndex summarizes a SecurityFlow.
type SecIndex struct {
	Functions         int `json:"functions"`
	Edges             int `json:"edges"`
	BoundaryCrossings int `json:"boundary_crossings"`
	PIIEdges          int `json:"pii_edges"`
}

// SecEdge is one deduplicated edge of the repository flow.
type SecEdge struct {
	Func      string       `json:"func"`
	Src       string       `json:"src"`
	Dst       string       `json:"dst"`
	Kind      cfg.EdgeKind `json:"kind"`
	Sensitive bool         `json:"sensitive"`

	// File is the first file the edge was seen in. It is not part of the
	// signature or the JSON report.
	File string `json:"-"`
}

// Signature identifies an edge repository-wide.
func (e SecEdge) Signature() string {
	return e.Func + "|" + e.Kind.String() + "|" + e.Src + "|" + e.Dst
}

// SecurityFlow is the repository report.
type SecurityFlow struct {
	Index SecIndex  `json:"index"`
	Edges []SecEdge `json:"edges"`
}

// DeriveKind classifies an edge from its endpoint labels. First match wins.
func DeriveKind(src, dst string) cfg.EdgeKind {
	either := func(k cfg.EdgeKind) bool {
		p := k.Prefix() + ":"
		return strings.HasPrefix(src, p) || strings.HasPrefix(dst, p)
	}
	switch {
	case either(cfg.EdgeNet):
		return cfg.EdgeNet
	case either(cfg.EdgeDB):
		return cfg.EdgeDB
	case either(cfg.EdgeAuth), strings.Contains(src, "USER ENTRY"), strings.Contains(dst, "USER ENTRY"):
		return cfg.EdgeAuth
	case either(cfg.EdgeCrypto):
		return cfg.EdgeCrypto
	case either(cfg.EdgeSecret):
		return cfg.EdgeSecret
	case either(cfg.EdgeLog):
		return cfg.EdgeLog
	case strings.HasPrefix(src, "Loop"), src == dst:
		return cfg.EdgeLoop
	case strings.HasPrefix(dst, "Return"):
		return cfg.EdgeReturn
	case strings.HasPrefix(src, "If"), strings.HasPrefix(dst, "If"):
		return cfg.EdgeBranch
	}
	return cfg.EdgeOther
}

// IsSensitive reports whether the joined labels mention sensitive data.
func IsSensitive(src, dst string) bool {
	text := strings.ToLower(src + " " + dst)
	for _, term := range SensitiveTerms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// ToSecurityFlow aggregates every file's graphs. Files and functions are
// visited in sorted order, so equal inputs give byte-identical reports.
func ToSecurityFlow(all map[string]cfg.FileCFGs) SecurityFlow {
	out := SecurityFlow{Edges: []SecEdge{}}
	seen := make(map[string]struct{})

	for _, file := range sortedKeys(all) {
		funcs := all[file]
		out.Index.Functions += len(funcs)

		for _, name := range sortedKeys(funcs) {
			g := funcs[name]
			for _, e := range g.Edges {
				if e[0] < 0 || e[1] < 0 || e[0] >= len(g.Nodes) || e[1] >= len(g.Nodes) {
					continue
				}
				src, dst := g.Nodes[e[0]], g.Nodes[e[1]]
				edge := SecEdge{
					File:      file,
					Func:      name,
					Src:       src,
					Dst:       dst,
					Kind:      DeriveKind(src, dst),
					Sensitive: IsSensitive(src, dst),
				}
				sig := edge.Signature()
				if _, dup := seen[sig]; dup {
					continue
				}
				seen[sig] = struct{}{}

				if edge.Kind == cfg.EdgeNet {
					out.Index.BoundaryCrossings++
				}
				if edge.Sensitive {
					out.Index.PIIEdges++
				}
				out.Edges = append(out.Edges, edge)
			}
		}
	}
	out.Index.Edges = len(out.Edges)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
