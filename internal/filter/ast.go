// Package filter implements the catalog's boolean query language. A query
// such as
//
//	tag:prod AND NOT (group:legacy.* OR responsible:%empty%)
//
// is parsed into an Expr tree and evaluated against service records.
package filter

import (
	"regexp"
	"strings"
)

// EmptyValue is the special query value matching an absent field, an empty
// string or an empty array.
const EmptyValue = "%empty%"

// Expr is a node of a parsed filter. The concrete types are And, Or, Not
// and KeyValue; an Expr is never modified after parsing.
type Expr interface {
	String() string
	expr()
}

// And matches when both sides match.
type And struct{ Left, Right Expr }

// Or matches when either side matches.
type Or struct{ Left, Right Expr }

// Not inverts its operand.
type Not struct{ Operand Expr }

// KeyValue matches one record field against a value pattern.
type KeyValue struct {
	Key   string
	Value string

	field   field
	pattern *regexp.Regexp // nil for EmptyValue
}

func (And) expr()       {}
func (Or) expr()        {}
func (Not) expr()       {}
func (*KeyValue) expr() {}

func (e And) String() string { return "(" + e.Left.String() + " AND " + e.Right.String() + ")" }
func (e Or) String() string  { return "(" + e.Left.String() + " OR " + e.Right.String() + ")" }
func (e Not) String() string { return "NOT " + e.Operand.String() }

func (e *KeyValue) String() string {
	if strings.ContainsAny(e.Value, " \t\"():!") {
		return e.Key + `:"` + strings.ReplaceAll(e.Value, `"`, `\"`) + `"`
	}
	return e.Key + ":" + e.Value
}

// NewKeyValue builds a term, resolving key against the field allow-list and
// compiling the value pattern. It fails for unknown keys.
func NewKeyValue(key, value string) (*KeyValue, error) {
	f, err := lookupField(key)
	if err != nil {
		return nil, err
	}
	kv := &KeyValue{Key: key, Value: value, field: f}
	if value != EmptyValue {
		kv.pattern = wildcardPattern(value)
	}
	return kv, nil
}

// wildcardPattern turns a query value into a whole-string, case-insensitive
// regexp in which `*` matches any run of characters and every other
// character is literal.
func wildcardPattern(value string) *regexp.Regexp {
	parts := strings.Split(value, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("(?is)^" + strings.Join(parts, ".*") + "$")
}
