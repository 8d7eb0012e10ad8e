package gqlrequest

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// Analysis stores parsed and derived GraphQL request metadata.
type Analysis struct {
	Envelope               Envelope
	RequestedOperationName string

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition

	OperationName string
	OperationType string

	FieldCount     int
	AliasCount     int
	SelectionDepth int
	VariableCount  int

	CanonicalOperation string
	OperationHash      string

	DecodeError     error
	ParseError      error
	SelectionError  error
	CanonicalizeErr error
}

// AnalyzeRequest decodes and analyzes a GraphQL request payload.
func AnalyzeRequest(r *http.Request) *Analysis {
	env, err := DecodeEnvelope(r)
	analysis := AnalyzeEnvelope(env)
	if err != nil {
		analysis.DecodeError = err
	}
	return analysis
}

// AnalyzeEnvelope parses and analyzes a normalized request envelope. Errors hit
// along the way are recorded on the result rather than returned; each stage fills
// in as much metadata as the document allowed.
func AnalyzeEnvelope(env Envelope) *Analysis {
	analysis := &Analysis{
		Envelope:               env,
		RequestedOperationName: env.OperationName,
		Fragments:              map[string]*ast.FragmentDefinition{},
	}

	if strings.TrimSpace(env.Query) == "" {
		return analysis
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(env.Query),
			Name: "graphql",
		}),
	})
	if err != nil {
		analysis.ParseError = err
		return analysis
	}
	analysis.Document = doc
	analysis.Fragments = fragmentIndex(doc)

	op, err := pickOperation(doc, env.OperationName)
	if err != nil {
		analysis.SelectionError = err
		return analysis
	}
	if op == nil {
		analysis.SelectionError = fmt.Errorf("no operation selected")
		return analysis
	}

	analysis.Operation = op
	analysis.OperationName = effectiveOperationName(op)
	analysis.OperationType = string(op.Operation)
	analysis.VariableCount = len(op.VariableDefinitions)

	counter := &selectionCounter{
		fragments: analysis.Fragments,
		visited:   map[string]bool{},
		inFlight:  map[string]bool{},
	}
	analysis.FieldCount, analysis.AliasCount, analysis.SelectionDepth = counter.count(op.SelectionSet, 1)

	canonical, hash, err := canonicalOperationAndHash(op, analysis.Fragments)
	if err != nil {
		analysis.CanonicalizeErr = err
		return analysis
	}
	analysis.CanonicalOperation = canonical
	analysis.OperationHash = hash

	return analysis
}

// fragmentIndex collects named fragment definitions keyed by fragment name.
func fragmentIndex(doc *ast.Document) map[string]*ast.FragmentDefinition {
	fragments := map[string]*ast.FragmentDefinition{}
	if doc == nil {
		return fragments
	}
	for _, def := range doc.Definitions {
		frag, ok := def.(*ast.FragmentDefinition)
		if ok && frag != nil && frag.Name != nil && frag.Name.Value != "" {
			fragments[frag.Name.Value] = frag
		}
	}
	return fragments
}

// pickOperation resolves which operation in the document this request executes,
// following the GraphQL-over-HTTP rules for operationName.
func pickOperation(doc *ast.Document, operationName string) (*ast.OperationDefinition, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	var ops []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok && op != nil {
			ops = append(ops, op)
		}
	}

	if operationName != "" {
		for _, op := range ops {
			if op.Name != nil && op.Name.Value == operationName {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", operationName)
	}

	switch len(ops) {
	case 0:
		return nil, fmt.Errorf("request does not include an operation")
	case 1:
		return ops[0], nil
	default:
		return nil, fmt.Errorf("operationName is required when request has multiple operations")
	}
}

// selectionCounter walks a selection tree tallying fields, aliases, and depth.
// Each named fragment is expanded at most once; inFlight breaks spread cycles.
type selectionCounter struct {
	fragments map[string]*ast.FragmentDefinition
	visited   map[string]bool
	inFlight  map[string]bool
}

func (c *selectionCounter) count(set *ast.SelectionSet, depth int) (fields, aliases, maxDepth int) {
	if set == nil {
		return 0, 0, depth - 1
	}

	maxDepth = depth
	merge := func(f, a, d int) {
		fields += f
		aliases += a
		if d > maxDepth {
			maxDepth = d
		}
	}

	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			if sel.Alias != nil && sel.Alias.Value != "" {
				aliases++
			}
			if sel.SelectionSet != nil {
				merge(c.count(sel.SelectionSet, depth+1))
			}
		case *ast.InlineFragment:
			// Inline fragments add no depth of their own.
			merge(c.count(sel.SelectionSet, depth))
		case *ast.FragmentSpread:
			name := ""
			if sel.Name != nil {
				name = sel.Name.Value
			}
			if name == "" || c.inFlight[name] || c.visited[name] {
				continue
			}
			c.inFlight[name] = true
			c.visited[name] = true
			if frag := c.fragments[name]; frag != nil {
				merge(c.count(frag.SelectionSet, depth))
			}
			delete(c.inFlight, name)
		}
	}

	return fields, aliases, maxDepth
}
