package filter

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
)

// ---------------------------------------------------------------------------
// Grammar
// ---------------------------------------------------------------------------

// queryLexer splits a query into quoted strings, operators and bare words.
// The unnamed whitespace group is matched and discarded.
var queryLexer = lexer.Must(lexer.Regexp(
	`(\s+)` +
		`|(?P<String>"(?:\\.|[^"\\])*")` +
		`|(?P<Operator>&&|\|\||[!():])` +
		`|(?P<Word>[^\s!():"&|]+)`,
))

type orAST struct {
	Left  *andAST   `parser:"@@"`
	Right []*andAST `parser:"( ( \"OR\" | \"or\" | \"||\" ) @@ )*"`
}

type andAST struct {
	Left  *unaryAST   `parser:"@@"`
	Right []*unaryAST `parser:"( ( \"AND\" | \"and\" | \"&&\" ) @@ )*"`
}

type unaryAST struct {
	Not  *unaryAST `parser:"  ( \"NOT\" | \"not\" | \"!\" ) @@"`
	Sub  *orAST    `parser:"| \"(\" @@ \")\""`
	Term *termAST  `parser:"| @@"`
}

type termAST struct {
	Pos   lexer.Position
	Key   string `parser:"@Word \":\""`
	Value string `parser:"@( String | Word ) ( @\":\" @Word )*"`
}

var queryParser = participle.MustBuild(&orAST{},
	participle.Lexer(queryLexer),
	participle.Unquote("String"),
)

// ---------------------------------------------------------------------------
// Parse
// ---------------------------------------------------------------------------

// SyntaxError carries every problem found in a query as human readable
// messages. Parse reports all unknown keys, not just the first.
type SyntaxError struct {
	Query    string   `json:"query"`
	Messages []string `json:"messages"`
}

func (e *SyntaxError) Error() string {
	return "filter: " + strings.Join(e.Messages, "; ")
}

// Parse turns a query into an expression tree. A blank query yields a nil
// Expr, which matches every record. Failures are always *SyntaxError.
func Parse(query string) (Expr, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	ast := &orAST{}
	if err := queryParser.ParseString(query, ast); err != nil {
		return nil, &SyntaxError{Query: query, Messages: []string{err.Error()}}
	}

	c := &converter{}
	expr := c.or(ast)
	if len(c.messages) > 0 {
		return nil, &SyntaxError{Query: query, Messages: c.messages}
	}
	return expr, nil
}

// MustParse is Parse for queries known to be valid; it panics otherwise.
func MustParse(query string) Expr {
	e, err := Parse(query)
	if err != nil {
		panic(err)
	}
	return e
}

// converter lowers the grammar structs into Expr nodes, collecting key
// errors instead of stopping at the first.
type converter struct {
	messages []string
}

func (c *converter) or(n *orAST) Expr {
	left := c.and(n.Left)
	for _, r := range n.Right {
		left = Or{Left: left, Right: c.and(r)}
	}
	return left
}

func (c *converter) and(n *andAST) Expr {
	left := c.unary(n.Left)
	for _, r := range n.Right {
		left = And{Left: left, Right: c.unary(r)}
	}
	return left
}

func (c *converter) unary(n *unaryAST) Expr {
	switch {
	case n.Not != nil:
		return Not{Operand: c.unary(n.Not)}
	case n.Sub != nil:
		return c.or(n.Sub)
	default:
		return c.term(n.Term)
	}
}

func (c *converter) term(n *termAST) Expr {
	kv, err := NewKeyValue(n.Key, n.Value)
	if err != nil {
		c.messages = append(c.messages, fmt.Sprintf("column %d: %v", n.Pos.Column, err))
		return &KeyValue{Key: n.Key, Value: n.Value}
	}
	return kv
}
