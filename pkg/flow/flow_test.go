package flow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/casesmith/pkg/cfg"
)

func TestDeriveKind(t *testing.T) {
	tests := []struct {
		name     string
		src, dst string
		want     cfg.EdgeKind
	}{
		{"net dst", "Entry", "NET: fetch(url)", cfg.EdgeNet},
		{"net beats db", "DB: repo.save(x)", "NET: axios.post(u)", cfg.EdgeNet},
		{"db src", "DB: repo.save(x)", "Exit", cfg.EdgeDB},
		{"auth tag", "Entry", "AUTH: jwt.sign(p)", cfg.EdgeAuth},
		{"user entry", "Entry", cfg.UserEntryLabel, cfg.EdgeAuth},
		{"user entry src", cfg.UserEntryLabel, "Exit", cfg.EdgeAuth},
		{"crypto beats log", "LOG: console.log(x)", "CRYPTO: bcrypt.hash(p)", cfg.EdgeCrypto},
		{"secret", "SECRET: token", "Exit", cfg.EdgeSecret},
		{"log", "Entry", "LOG: logger.info(x)", cfg.EdgeLog},
		{"loop src", "Loop: while (a) {}", "Exit", cfg.EdgeLoop},
		{"self edge", "If: if (a) {", "If: if (a) {", cfg.EdgeLoop},
		{"return dst", "Entry", "Return: return 1;", cfg.EdgeReturn},
		{"return src only", "Return: return 1;", "Exit", cfg.EdgeOther},
		{"branch", "Entry", "If: if (a) {", cfg.EdgeBranch},
		{"plain", "Entry", "Exit", cfg.EdgeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveKind(tt.src, tt.dst))
		})
	}
}

func TestIsSensitive(t *testing.T) {
	assert.True(t, IsSensitive("Entry", "SECRET: password"))
	assert.True(t, IsSensitive("AUTH: Passport.authenticate('local')", "Exit"))
	assert.True(t, IsSensitive("DB: users.findBySSN(n)", "Exit"))
	assert.False(t, IsSensitive("Entry", "Exit"))
	assert.False(t, IsSensitive("NET: fetch(url)", "Exit"))
}

func handlerGraph() cfg.SimpleCFG {
	return cfg.SimpleCFG{
		Nodes: []string{cfg.EntryLabel, cfg.ExitLabel, "NET: fetch(url)"},
		Edges: [][2]int{{0, 2}, {2, 1}},
	}
}

func TestToSecurityFlow_DedupesAcrossFiles(t *testing.T) {
	all := map[string]cfg.FileCFGs{
		"src/b.ts": {"handler": handlerGraph()},
		"src/a.ts": {"handler": handlerGraph()},
	}

	got := ToSecurityFlow(all)

	assert.Equal(t, SecIndex{Functions: 2, Edges: 2, BoundaryCrossings: 2}, got.Index)
	require.Len(t, got.Edges, 2)
	assert.Equal(t, SecEdge{Func: "handler", Src: "Entry", Dst: "NET: fetch(url)", Kind: cfg.EdgeNet, File: "src/a.ts"}, got.Edges[0])
	assert.Equal(t, SecEdge{Func: "handler", Src: "NET: fetch(url)", Dst: "Exit", Kind: cfg.EdgeNet, File: "src/a.ts"}, got.Edges[1])
}

func TestToSecurityFlow_Counters(t *testing.T) {
	all := map[string]cfg.FileCFGs{
		"auth.ts": {
			"login": {
				Nodes: []string{cfg.EntryLabel, cfg.ExitLabel, cfg.UserEntryLabel, "SECRET: password", "Loop: for (;;) {"},
				Edges: [][2]int{{0, 2}, {2, 3}, {3, 4}, {4, 4}, {4, 1}},
			},
			"noop": *cfg.NewSimpleCFG(),
		},
	}

	got := ToSecurityFlow(all)

	assert.Equal(t, 2, got.Index.Functions)
	assert.Equal(t, 5, got.Index.Edges)
	assert.Equal(t, 0, got.Index.BoundaryCrossings)
	assert.Equal(t, 2, got.Index.PIIEdges)

	kinds := make([]cfg.EdgeKind, 0, len(got.Edges))
	for _, e := range got.Edges {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []cfg.EdgeKind{cfg.EdgeAuth, cfg.EdgeAuth, cfg.EdgeSecret, cfg.EdgeLoop, cfg.EdgeLoop}, kinds)
}

func TestToSecurityFlow_Empty(t *testing.T) {
	got := ToSecurityFlow(nil)
	assert.Equal(t, SecIndex{}, got.Index)
	assert.NotNil(t, got.Edges)
	assert.Empty(t, got.Edges)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":{"functions":0,"edges":0,"boundary_crossings":0,"pii_edges":0},"edges":[]}`, string(data))
}

func TestToSecurityFlow_SkipsOutOfBoundsEdges(t *testing.T) {
	all := map[string]cfg.FileCFGs{
		"x.ts": {"f": {Nodes: []string{cfg.EntryLabel, cfg.ExitLabel}, Edges: [][2]int{{0, 1}, {0, 9}, {-1, 1}}}},
	}
	got := ToSecurityFlow(all)
	assert.Equal(t, 1, got.Index.Edges)
}

func TestToSecurityFlow_Deterministic(t *testing.T) {
	build := func() map[string]cfg.FileCFGs {
		return map[string]cfg.FileCFGs{
			"z.ts": {"zeta": handlerGraph(), "alpha": handlerGraph()},
			"a.ts": {"mid": {Nodes: []string{cfg.EntryLabel, cfg.ExitLabel, "DB: db.query(q)"}, Edges: [][2]int{{0, 2}, {2, 1}}}},
			"m.ts": {"only": *cfg.NewSimpleCFG()},
		}
	}

	first, err := json.Marshal(ToSecurityFlow(build()))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := json.Marshal(ToSecurityFlow(build()))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestSecEdgeJSON(t *testing.T) {
	e := SecEdge{Func: "f", Src: "Entry", Dst: "SECRET: token", Kind: cfg.EdgeSecret, Sensitive: true, File: "hidden.ts"}
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"func":"f","src":"Entry","dst":"SECRET: token","kind":"secret","sensitive":true}`, string(data))
}

func TestSignature(t *testing.T) {
	e := SecEdge{Func: "f", Src: "a", Dst: "b", Kind: cfg.EdgeLog}
	assert.Equal(t, "f|log|a|b", e.Signature())
}
