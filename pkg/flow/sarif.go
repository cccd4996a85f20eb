package flow

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/l3aro/casesmith/pkg/cfg"
)

const (
	toolName = "casesmith"
	toolURI  = "https://github.com/l3aro/casesmith"

	sensitiveRuleID = "casesmith/sensitive-data"
)

type sarifRule struct {
	id          string
	description string
	level       string
}

var kindRules = map[cfg.EdgeKind]sarifRule{
	cfg.EdgeNet:    {"casesmith/net", "Control flow crosses a network boundary", "note"},
	cfg.EdgeAuth:   {"casesmith/auth", "Authentication or public route entry point", "note"},
	cfg.EdgeCrypto: {"casesmith/crypto", "Cryptographic operation", "note"},
	cfg.EdgeSecret: {"casesmith/secret", "Secret or configuration value is read", "warning"},
}

// ToSARIF converts the report into a SARIF 2.1.0 document. Only edges of
// kind net, auth, crypto or secret and sensitive edges become results.
// relTo, when non-empty, makes artifact URIs relative to that directory.
func ToSARIF(flow SecurityFlow, relTo string) (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, toolURI)
	for _, e := range flow.Edges {
		if r, ok := kindRules[e.Kind]; ok {
			addResult(run, r, e, relTo)
		}
		if e.Sensitive {
			addResult(run, sarifRule{sensitiveRuleID, "Edge touches personal or secret data", "warning"}, e, relTo)
		}
	}
	report.AddRun(run)
	return report, nil
}

func addResult(run *sarif.Run, r sarifRule, e SecEdge, relTo string) {
	rule := run.AddRule(r.id).
		WithDescription(r.description).
		WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: r.level})

	location := sarif.NewLocation().WithPhysicalLocation(
		sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(artifactURI(e.File, relTo))),
	)

	result := sarif.NewRuleResult(rule.ID).
		WithMessage(sarif.NewTextMessage(fmt.Sprintf("%s: %s -> %s", e.Func, e.Src, e.Dst))).
		WithLevel(r.level).
		WithLocations([]*sarif.Location{location})
	run.AddResult(result)
}

func artifactURI(file, relTo string) string {
	if relTo == "" {
		return filepath.ToSlash(file)
	}
	if rel, err := filepath.Rel(relTo, file); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(file)
}

// WriteSARIF writes the SARIF form of flow to w.
func WriteSARIF(w io.Writer, flow SecurityFlow, relTo string) error {
	report, err := ToSARIF(flow, relTo)
	if err != nil {
		return err
	}
	return report.PrettyWrite(w)
}
