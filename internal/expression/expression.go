// Package expression implements the small boolean/string DSL used for
// group conditions, dynamic-fetch exit conditions and stream filters.
package expression

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/file"
	"github.com/expr-lang/expr/vm"

	"github.com/tomfle18/aiostreams/core"
	"github.com/tomfle18/aiostreams/internal/stream"
)

type Resolution string

func (r Resolution) Order() int64 {
	return getResolutionRank(string(r))
}

type Quality string

func (q Quality) Order() int64 {
	return getQualityRank(string(q))
}

type ValuePatcher struct{}

func toOrderable(node ast.Node, converter string) ast.Node {
	return &ast.CallNode{
		Callee: &ast.MemberNode{
			Node: &ast.CallNode{
				Callee: &ast.IdentifierNode{
					Value: converter,
				},
				Arguments: []ast.Node{node},
			},
			Property: &ast.StringNode{Value: "Order"},
			Method:   true,
		},
		Arguments: []ast.Node{},
	}
}

var orderableConverter = map[string]string{
	"resolution": "__Resolution__",
	"quality":    "__Quality__",
}

func (ValuePatcher) Visit(node *ast.Node) {
	bin, ok := (*node).(*ast.BinaryNode)
	if !ok {
		return
	}
	switch bin.Operator {
	case "<", "<=", ">", ">=":
	default:
		return
	}
	for _, side := range []*ast.Node{&bin.Left, &bin.Right} {
		if ident, ok := (*side).(*ast.IdentifierNode); ok {
			if converter, exists := orderableConverter[ident.Value]; exists {
				ast.Patch(&bin.Left, toOrderable(bin.Left, converter))
				ast.Patch(&bin.Right, toOrderable(bin.Right, converter))
				return
			}
		}
	}
}

// sizeLiteralPattern rewrites convenience size literals (8gb, 1.5GiB)
// into byte counts before the program is compiled.
var sizeLiteralPattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(kb|mb|gb|tb|kib|mib|gib|tib)\b`)

// bareEqualsPattern upgrades a single `=` comparator to `==`.
var bareEqualsPattern = regexp.MustCompile(`([^<>!=])=([^=])`)

func preprocess(blob string) string {
	blob = sizeLiteralPattern.ReplaceAllStringFunc(blob, func(m string) string {
		size, err := humanize.ParseBytes(m)
		if err != nil {
			return m
		}
		return strconv.FormatUint(size, 10)
	})
	return bareEqualsPattern.ReplaceAllString(blob, "$1==$2")
}

func compileOptions(extra ...expr.Option) []expr.Option {
	options := []expr.Option{
		expr.AllowUndefinedVariables(),
		expr.Function("__Resolution__", func(val ...any) (any, error) {
			s, _ := val[0].(string)
			return Resolution(s), nil
		}, new(func(string) Resolution)),
		expr.Function("__Quality__", func(val ...any) (any, error) {
			s, _ := val[0].(string)
			return Quality(s), nil
		}, new(func(string) Quality)),
		expr.Patch(ValuePatcher{}),
	}
	return append(options, extra...)
}

func invalidExpression(blob string, err error) error {
	msg := "invalid expression"
	var ferr *file.Error
	if errors.As(err, &ferr) {
		msg = fmt.Sprintf("invalid expression at %d:%d: %s", ferr.Line, ferr.Column, ferr.Message)
	}
	return core.NewError(core.ErrorCodeInvalidExpression, msg).WithCause(err)
}

func typeError(blob string, value any) error {
	return core.NewError(core.ErrorCodeTypeError,
		fmt.Sprintf("expression %q evaluated to %T, expected a different kind", blob, value))
}

// ConditionBlob is a user-supplied expression that must evaluate to a
// boolean over a stream collection.
type ConditionBlob string

type Condition struct {
	Blob    ConditionBlob
	program *vm.Program
}

func (cb ConditionBlob) Parse() (*Condition, error) {
	c := &Condition{Blob: cb}
	if cb == "" {
		return c, nil
	}
	program, err := expr.Compile(preprocess(string(cb)), compileOptions(expr.AsBool())...)
	if err != nil {
		return c, invalidExpression(string(cb), err)
	}
	c.program = program
	return c, nil
}

// Eval runs the condition against the candidate collection. An empty
// condition is true.
func (c *Condition) Eval(streams []*stream.ParsedStream) (bool, error) {
	if c == nil || c.program == nil {
		return true, nil
	}
	output, err := expr.Run(c.program, CollectionEnv(streams))
	if err != nil {
		return false, invalidExpression(string(c.Blob), err)
	}
	matched, ok := output.(bool)
	if !ok {
		return false, typeError(string(c.Blob), output)
	}
	return matched, nil
}

// SelectorBlob is a user-supplied expression that selects streams,
// either as a per-stream boolean or as a list expression over the
// bound `streams` variable.
type SelectorBlob string

type Selector struct {
	Blob    SelectorBlob
	program *vm.Program
}

func (sb SelectorBlob) Parse() (*Selector, error) {
	s := &Selector{Blob: sb}
	if sb == "" {
		return s, nil
	}
	program, err := expr.Compile(preprocess(string(sb)), compileOptions()...)
	if err != nil {
		return s, invalidExpression(string(sb), err)
	}
	// Dry run against a zero stream: a selector must yield a per-stream
	// boolean or a stream list, and wrong kinds should fail at config
	// time, not per request. Runtime errors on the zero env are ignored.
	if output, err := expr.Run(program, StreamEnv(&stream.ParsedStream{}, nil)); err == nil {
		switch output.(type) {
		case bool, []any:
		default:
			return s, typeError(string(sb), output)
		}
	}
	s.program = program
	return s, nil
}

// Select returns the matching subset in input order.
func (s *Selector) Select(streams []*stream.ParsedStream) ([]*stream.ParsedStream, error) {
	if s == nil || s.program == nil {
		return nil, nil
	}

	byID := make(map[string]*stream.ParsedStream, len(streams))
	for _, st := range streams {
		byID[st.ID] = st
	}

	resolveList := func(items []any) ([]*stream.ParsedStream, error) {
		selected := make([]*stream.ParsedStream, 0, len(items))
		for _, item := range items {
			env, ok := item.(map[string]any)
			if !ok {
				return nil, typeError(string(s.Blob), item)
			}
			id, _ := env["id"].(string)
			if st, ok := byID[id]; ok {
				selected = append(selected, st)
			}
		}
		return selected, nil
	}

	selected := make([]*stream.ParsedStream, 0, len(streams))
	for _, st := range streams {
		output, err := expr.Run(s.program, StreamEnv(st, streams))
		if err != nil {
			return nil, invalidExpression(string(s.Blob), err)
		}
		switch v := output.(type) {
		case bool:
			// Per-stream boolean form.
			if v {
				selected = append(selected, st)
			}
		case []any:
			// List form over the bound `streams` variable; the result
			// does not depend on the current stream.
			return resolveList(v)
		default:
			return nil, typeError(string(s.Blob), output)
		}
	}
	return selected, nil
}
