// Package introspect answers __schema, __type, and __typename selections
// from a catalog snapshot. Meta queries never touch the database and are
// never cached as prepared plans: every answer is computed against the
// snapshot serving the request, so a catalog swap is immediately visible.
package introspect

import (
	"context"
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"mysql-graphql/internal/catalog"
)

// Resolver executes meta selections against one catalog snapshot.
type Resolver struct {
	schema graphql.Schema
}

// New builds the meta schema for a snapshot. The returned resolver is
// immutable and safe for concurrent use; build a new one per snapshot.
func New(cat *catalog.Catalog) (*Resolver, error) {
	if cat == nil {
		return nil, fmt.Errorf("no catalog snapshot")
	}
	schema, err := buildSchema(cat)
	if err != nil {
		return nil, fmt.Errorf("build meta schema: %w", err)
	}
	return &Resolver{schema: schema}, nil
}

// Resolve answers the meta fields of one operation. fields holds the
// top-level selections routed here; doc supplies the fragment definitions
// those selections may spread. The result maps response keys to values, with
// any validation or execution failures returned as plain messages.
func (r *Resolver) Resolve(ctx context.Context, doc *ast.Document, op *ast.OperationDefinition, fields []*ast.Field, vars map[string]interface{}) (map[string]interface{}, []string) {
	if len(fields) == 0 {
		return map[string]interface{}{}, nil
	}

	metaDoc := r.metaDocument(doc, op, fields)

	vr := graphql.ValidateDocument(&r.schema, metaDoc, nil)
	if !vr.IsValid {
		msgs := make([]string, 0, len(vr.Errors))
		for _, e := range vr.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, msgs
	}

	result := graphql.Execute(graphql.ExecuteParams{
		Schema:  r.schema,
		AST:     metaDoc,
		Args:    vars,
		Context: ctx,
	})
	var msgs []string
	for _, e := range result.Errors {
		msgs = append(msgs, e.Message)
	}
	data, _ := result.Data.(map[string]interface{})
	return data, msgs
}

// metaDocument rebuilds the operation around the meta fields only. Variable
// definitions and fragment definitions are pruned to those the meta fields
// actually reach, so validation does not trip over declarations that belong
// to the data half of the operation.
func (r *Resolver) metaDocument(doc *ast.Document, op *ast.OperationDefinition, fields []*ast.Field) *ast.Document {
	frags := fragmentIndex(doc)
	usedVars := map[string]bool{}
	usedFrags := map[string]bool{}
	for _, f := range fields {
		collectUsage(f, frags, usedVars, usedFrags)
	}

	var varDefs []*ast.VariableDefinition
	for _, vd := range op.VariableDefinitions {
		if vd == nil || vd.Variable == nil || vd.Variable.Name == nil {
			continue
		}
		if usedVars[vd.Variable.Name.Value] {
			varDefs = append(varDefs, vd)
		}
	}

	selections := make([]ast.Selection, 0, len(fields))
	for _, f := range fields {
		selections = append(selections, f)
	}

	metaOp := ast.NewOperationDefinition(&ast.OperationDefinition{
		Operation:           op.Operation,
		Name:                op.Name,
		VariableDefinitions: varDefs,
		SelectionSet:        ast.NewSelectionSet(&ast.SelectionSet{Selections: selections}),
	})

	defs := []ast.Node{metaOp}
	if doc != nil {
		for _, d := range doc.Definitions {
			fd, ok := d.(*ast.FragmentDefinition)
			if !ok || fd.Name == nil {
				continue
			}
			if usedFrags[fd.Name.Value] {
				defs = append(defs, fd)
			}
		}
	}
	return ast.NewDocument(&ast.Document{Definitions: defs})
}

func fragmentIndex(doc *ast.Document) map[string]*ast.FragmentDefinition {
	frags := map[string]*ast.FragmentDefinition{}
	if doc == nil {
		return frags
	}
	for _, d := range doc.Definitions {
		if fd, ok := d.(*ast.FragmentDefinition); ok && fd.Name != nil {
			frags[fd.Name.Value] = fd
		}
	}
	return frags
}

// collectUsage walks a selection recording variable and fragment names. The
// usedFrags map doubles as the visited set, so fragment cycles terminate here
// and surface as validation errors instead of infinite walks.
func collectUsage(sel ast.Selection, frags map[string]*ast.FragmentDefinition, usedVars, usedFrags map[string]bool) {
	switch s := sel.(type) {
	case *ast.Field:
		for _, arg := range s.Arguments {
			if arg != nil {
				collectValueUsage(arg.Value, usedVars)
			}
		}
		collectDirectiveUsage(s.Directives, usedVars)
		if s.SelectionSet != nil {
			for _, sub := range s.SelectionSet.Selections {
				collectUsage(sub, frags, usedVars, usedFrags)
			}
		}
	case *ast.InlineFragment:
		collectDirectiveUsage(s.Directives, usedVars)
		if s.SelectionSet != nil {
			for _, sub := range s.SelectionSet.Selections {
				collectUsage(sub, frags, usedVars, usedFrags)
			}
		}
	case *ast.FragmentSpread:
		if s.Name == nil {
			return
		}
		collectDirectiveUsage(s.Directives, usedVars)
		name := s.Name.Value
		if usedFrags[name] {
			return
		}
		usedFrags[name] = true
		fd, ok := frags[name]
		if !ok {
			return
		}
		collectDirectiveUsage(fd.Directives, usedVars)
		if fd.SelectionSet != nil {
			for _, sub := range fd.SelectionSet.Selections {
				collectUsage(sub, frags, usedVars, usedFrags)
			}
		}
	}
}

func collectDirectiveUsage(directives []*ast.Directive, usedVars map[string]bool) {
	for _, d := range directives {
		if d == nil {
			continue
		}
		for _, arg := range d.Arguments {
			if arg != nil {
				collectValueUsage(arg.Value, usedVars)
			}
		}
	}
}

func collectValueUsage(value ast.Value, usedVars map[string]bool) {
	switch v := value.(type) {
	case *ast.Variable:
		if v.Name != nil {
			usedVars[v.Name.Value] = true
		}
	case *ast.ListValue:
		for _, item := range v.Values {
			collectValueUsage(item, usedVars)
		}
	case *ast.ObjectValue:
		for _, f := range v.Fields {
			if f != nil {
				collectValueUsage(f.Value, usedVars)
			}
		}
	}
}
