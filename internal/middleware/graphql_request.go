package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// queryShape summarizes an operation for metrics and tracing without
// executing it.
type queryShape struct {
	operationType  string
	fieldCount     int
	selectionDepth int
	variableCount  int
}

// peekGraphQLRequest pulls the query and operation name out of a request
// without consuming it: POST bodies are restored for the downstream handler.
func peekGraphQLRequest(r *http.Request) (query, operationName string) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		return q.Get("query"), q.Get("operationName")
	case http.MethodPost:
	default:
		return "", ""
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", ""
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if strings.Contains(r.Header.Get("Content-Type"), "application/graphql") {
		return string(body), ""
	}

	var payload struct {
		Query         string `json:"query"`
		OperationName string `json:"operationName"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", ""
	}
	return payload.Query, payload.OperationName
}

// measureQuery parses the query and computes the shape of the selected
// operation. Returns (nil, nil) when the query is empty or names an
// operation that does not exist.
func measureQuery(query, operationName string) (*queryShape, error) {
	if query == "" {
		return nil, nil
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{
			Body: []byte(query),
			Name: "graphql",
		}),
	})
	if err != nil {
		return nil, err
	}

	fragments := make(map[string]*ast.FragmentDefinition)
	var ops []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.FragmentDefinition:
			fragments[d.Name.Value] = d
		case *ast.OperationDefinition:
			ops = append(ops, d)
		}
	}

	op := selectOperation(ops, operationName)
	if op == nil {
		return nil, nil
	}

	shape := &queryShape{
		operationType: string(op.Operation),
		variableCount: len(op.VariableDefinitions),
	}
	if op.SelectionSet != nil {
		walker := &shapeWalker{fragments: fragments, seen: map[string]bool{}, inFlight: map[string]bool{}}
		shape.fieldCount, shape.selectionDepth = walker.walk(op.SelectionSet, 1)
	}
	return shape, nil
}

func selectOperation(ops []*ast.OperationDefinition, name string) *ast.OperationDefinition {
	if name == "" {
		if len(ops) == 0 {
			return nil
		}
		return ops[0]
	}
	for _, op := range ops {
		if op.Name != nil && op.Name.Value == name {
			return op
		}
	}
	return nil
}

// shapeWalker counts fields and tracks the deepest selection while expanding
// fragment spreads at most once each. inFlight breaks cycles; seen prevents
// double-counting a fragment referenced from multiple places.
type shapeWalker struct {
	fragments map[string]*ast.FragmentDefinition
	seen      map[string]bool
	inFlight  map[string]bool
}

func (sw *shapeWalker) walk(set *ast.SelectionSet, depth int) (fields, maxDepth int) {
	if set == nil {
		return 0, depth - 1
	}

	maxDepth = depth
	for _, selection := range set.Selections {
		var nf, nd int
		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			if sel.SelectionSet == nil {
				continue
			}
			nf, nd = sw.walk(sel.SelectionSet, depth+1)

		case *ast.InlineFragment:
			nf, nd = sw.walk(sel.SelectionSet, depth)

		case *ast.FragmentSpread:
			name := sel.Name.Value
			if sw.inFlight[name] || sw.seen[name] {
				continue
			}
			sw.inFlight[name] = true
			sw.seen[name] = true
			if frag, ok := sw.fragments[name]; ok {
				nf, nd = sw.walk(frag.SelectionSet, depth)
			}
			delete(sw.inFlight, name)
		}
		fields += nf
		if nd > maxDepth {
			maxDepth = nd
		}
	}
	return fields, maxDepth
}
