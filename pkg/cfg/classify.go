package cfg

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Matcher tests a lower-cased, dotted call name.
type Matcher func(name string) bool

// HasPrefix matches names starting with p.
func HasPrefix(p string) Matcher {
	return func(name string) bool { return strings.HasPrefix(name, p) }
}

// Contains matches names containing s anywhere.
func Contains(s string) Matcher {
	return func(name string) bool { return strings.Contains(name, s) }
}

// Rule assigns Kind to any call name accepted by one of its matchers.
type Rule struct {
	Kind  EdgeKind
	Match []Matcher
}

// Matches reports whether any matcher accepts name.
func (r Rule) Matches(name string) bool {
	for _, m := range r.Match {
		if m(name) {
			return true
		}
	}
	return false
}

// CallRules is evaluated top to bottom and the first matching rule wins.
var CallRules = []Rule{
	{Kind: EdgeNet, Match: []Matcher{
		HasPrefix("axios"), HasPrefix("fetch"),
		Contains("httpservice"), Contains("got."), Contains("grpc."),
	}},
	{Kind: EdgeDB, Match: []Matcher{
		Contains("prisma."), Contains("repository."), Contains("manager."),
		Contains("mongoose."), Contains("model."), Contains("query"),
	}},
	{Kind: EdgeAuth, Match: []Matcher{
		Contains("jwt"), Contains("authguard"), Contains("passport"),
	}},
	{Kind: EdgeCrypto, Match: []Matcher{
		Contains("bcrypt"), Contains("crypto."), Contains("createhash"),
		Contains("createhmac"), Contains("randombytes"), Contains("sign"), Contains("verify"),
	}},
	{Kind: EdgeLog, Match: []Matcher{
		HasPrefix("console."), Contains("logger."), Contains("winston"), Contains("pino"),
	}},
}

// SecretMarkers are the substrings that make a node text look like a
// secret or configuration read.
var SecretMarkers = []string{
	"process.env",
	"configservice.get",
	"secret",
	"privatekey",
	"apikey",
	"token",
}

// RouteDecorators mark a decorated member as a public HTTP entry point.
var RouteDecorators = []string{"@get", "@post", "@put", "@delete", "@patch", "@all"}

// GuardMarkers mark a decorator as an authentication guard.
var GuardMarkers = []string{"useguards", "auth"}

// RulesVersion changes whenever a rule table above changes, invalidating
// cached extraction results.
const RulesVersion = "rules-v1"

// ClassifyCall returns the security kind of a call_expression, if any.
func ClassifyCall(source []byte, call *sitter.Node) (EdgeKind, bool) {
	name := strings.ToLower(CallName(source, call))
	if name == "" {
		return EdgeOther, false
	}
	return ClassifyName(name)
}

// ClassifyName applies CallRules to an already lower-cased call name.
func ClassifyName(name string) (EdgeKind, bool) {
	for _, r := range CallRules {
		if r.Matches(name) {
			return r.Kind, true
		}
	}
	return EdgeOther, false
}

// CallName flattens a call target such as prisma.user.findMany into a dotted
// name. Unrecognized target shapes fall back to their first line of text.
func CallName(source []byte, call *sitter.Node) string {
	if call == nil {
		return ""
	}
	fn := call.ChildByFieldName(FieldFunction)
	if fn == nil {
		return ""
	}
	var parts []string
	flattenTarget(source, fn, &parts)
	return strings.Join(parts, ".")
}

func flattenTarget(source []byte, n *sitter.Node, out *[]string) {
	switch n.Type() {
	case NodeIdentifier:
		*out = append(*out, Snippet(source, n))
	case NodeMemberExpression:
		if obj := n.ChildByFieldName(FieldObject); obj != nil {
			flattenTarget(source, obj, out)
		}
		if prop := n.ChildByFieldName(FieldProperty); prop != nil {
			*out = append(*out, Snippet(source, prop))
		}
	default:
		*out = append(*out, Snippet(source, n))
	}
}

// IsSecretish reports whether the node's text reads like a secret or
// configuration lookup.
func IsSecretish(source []byte, n *sitter.Node) bool {
	return containsAny(strings.ToLower(Snippet(source, n)), SecretMarkers)
}

// IsRouteDecorator reports whether a lower-cased decorator text declares an
// HTTP route handler.
func IsRouteDecorator(deco string) bool {
	for _, p := range RouteDecorators {
		if strings.HasPrefix(deco, p) {
			return true
		}
	}
	return false
}

// IsGuardDecorator reports whether a lower-cased decorator text applies an
// authentication guard.
func IsGuardDecorator(deco string) bool {
	return containsAny(deco, GuardMarkers)
}

// Snippet returns the first physical line of the node's text, trimmed.
func Snippet(source []byte, n *sitter.Node) string {
	text := NodeText(source, n)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// NodeText returns the full source text covered by n.
func NodeText(source []byte, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	start, end := n.StartByte(), n.EndByte()
	if end > uint32(len(source)) {
		end = uint32(len(source))
	}
	if start >= end {
		return ""
	}
	return string(source[start:end])
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
