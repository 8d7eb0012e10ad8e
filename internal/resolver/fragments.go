package resolver

import (
	"fmt"

	"github.com/graphql-go/graphql/language/ast"

	"mysql-graphql/internal/catalog"
)

// inliner rewrites an operation's selection sets with every fragment spread
// and inline fragment spliced in place, so the compiler only ever sees plain
// fields. Type conditions are checked against the catalog: with no interface
// or union types in the exposed schema, a condition either names the
// enclosing type or can never match. @skip and @include are evaluated here
// and pruned selections never reach compilation.
type inliner struct {
	catalog   *catalog.Catalog
	fragments map[string]*ast.FragmentDefinition
	vars      map[string]interface{}

	// variableConditions reports that a @skip/@include condition read a
	// variable, which makes the selection shape request-dependent.
	variableConditions bool
}

func newInliner(cat *catalog.Catalog, fragments map[string]*ast.FragmentDefinition, vars map[string]interface{}) *inliner {
	if fragments == nil {
		fragments = map[string]*ast.FragmentDefinition{}
	}
	if vars == nil {
		vars = map[string]interface{}{}
	}
	return &inliner{catalog: cat, fragments: fragments, vars: vars}
}

// topLevelFields flattens the operation's root selections into plain fields.
// Nested selection sets are left untouched: meta fields keep their original
// subtrees for the introspection path, and data subtrees are inlined later
// by dataOperation.
func (inl *inliner) topLevelFields(op *ast.OperationDefinition) ([]*ast.Field, error) {
	queryName := ""
	if qt := inl.catalog.QueryType(); qt != nil {
		queryName = qt.Name
	}

	var out []*ast.Field
	var walk func(set *ast.SelectionSet, inFlight map[string]bool) error
	walk = func(set *ast.SelectionSet, inFlight map[string]bool) error {
		if set == nil {
			return nil
		}
		for _, sel := range set.Selections {
			switch s := sel.(type) {
			case *ast.Field:
				keep, err := inl.includeByDirectives(s.Directives)
				if err != nil {
					return err
				}
				if keep {
					out = append(out, s)
				}
			case *ast.InlineFragment:
				keep, err := inl.includeByDirectives(s.Directives)
				if err != nil {
					return err
				}
				if !keep {
					continue
				}
				if err := checkTypeCondition(s.TypeCondition, queryName); err != nil {
					return err
				}
				if err := walk(s.SelectionSet, inFlight); err != nil {
					return err
				}
			case *ast.FragmentSpread:
				keep, err := inl.includeByDirectives(s.Directives)
				if err != nil {
					return err
				}
				if !keep {
					continue
				}
				name := spreadName(s)
				frag, ok := inl.fragments[name]
				if !ok {
					return fmt.Errorf("unknown fragment '%s'", name)
				}
				if inFlight[name] {
					return fmt.Errorf("fragment cycle involving '%s'", name)
				}
				if err := checkTypeCondition(frag.TypeCondition, queryName); err != nil {
					return err
				}
				inFlight[name] = true
				if err := walk(frag.SelectionSet, inFlight); err != nil {
					return err
				}
				delete(inFlight, name)
			}
		}
		return nil
	}
	if err := walk(op.SelectionSet, map[string]bool{}); err != nil {
		return nil, err
	}
	return out, nil
}

// dataOperation rebuilds the operation around fully inlined copies of the
// given root fields, ready for compilation.
func (inl *inliner) dataOperation(op *ast.OperationDefinition, fields []*ast.Field) (*ast.OperationDefinition, error) {
	queryType := inl.catalog.QueryType()
	selections := make([]ast.Selection, 0, len(fields))
	for _, field := range fields {
		rebuilt, err := inl.field(queryType, field)
		if err != nil {
			return nil, err
		}
		selections = append(selections, rebuilt)
	}
	return ast.NewOperationDefinition(&ast.OperationDefinition{
		Operation:           op.Operation,
		Name:                op.Name,
		VariableDefinitions: op.VariableDefinitions,
		SelectionSet:        ast.NewSelectionSet(&ast.SelectionSet{Selections: selections}),
	}), nil
}

// field inlines one field's subtree. Fields the catalog does not know pass
// through untouched so the compiler reports them with its own message.
func (inl *inliner) field(parent *catalog.Type, field *ast.Field) (*ast.Field, error) {
	if field.SelectionSet == nil || parent == nil {
		return field, nil
	}
	name := selectionFieldName(field)
	pf, ok := parent.Field(name)
	if !ok {
		return field, nil
	}
	childType, ok := inl.catalog.Type(pf.Type.Name)
	if !ok {
		return field, nil
	}
	set, err := inl.selectionSet(childType, field.SelectionSet, map[string]bool{})
	if err != nil {
		return nil, err
	}
	return ast.NewField(&ast.Field{
		Alias:        field.Alias,
		Name:         field.Name,
		Arguments:    field.Arguments,
		Directives:   field.Directives,
		SelectionSet: set,
	}), nil
}

func (inl *inliner) selectionSet(typ *catalog.Type, set *ast.SelectionSet, inFlight map[string]bool) (*ast.SelectionSet, error) {
	out := make([]ast.Selection, 0, len(set.Selections))
	for _, sel := range set.Selections {
		switch s := sel.(type) {
		case *ast.Field:
			keep, err := inl.includeByDirectives(s.Directives)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
			rebuilt, err := inl.field(typ, s)
			if err != nil {
				return nil, err
			}
			out = append(out, rebuilt)
		case *ast.InlineFragment:
			keep, err := inl.includeByDirectives(s.Directives)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
			if err := checkTypeCondition(s.TypeCondition, typ.Name); err != nil {
				return nil, err
			}
			spliced, err := inl.selectionSet(typ, s.SelectionSet, inFlight)
			if err != nil {
				return nil, err
			}
			out = append(out, spliced.Selections...)
		case *ast.FragmentSpread:
			keep, err := inl.includeByDirectives(s.Directives)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
			name := spreadName(s)
			frag, ok := inl.fragments[name]
			if !ok {
				return nil, fmt.Errorf("unknown fragment '%s'", name)
			}
			if inFlight[name] {
				return nil, fmt.Errorf("fragment cycle involving '%s'", name)
			}
			if err := checkTypeCondition(frag.TypeCondition, typ.Name); err != nil {
				return nil, err
			}
			inFlight[name] = true
			spliced, err := inl.selectionSet(typ, frag.SelectionSet, inFlight)
			if err != nil {
				return nil, err
			}
			delete(inFlight, name)
			out = append(out, spliced.Selections...)
		}
	}
	return ast.NewSelectionSet(&ast.SelectionSet{Selections: out}), nil
}

// includeByDirectives evaluates @skip and @include. Any other directive is
// rejected.
func (inl *inliner) includeByDirectives(directives []*ast.Directive) (bool, error) {
	include := true
	for _, dir := range directives {
		if dir == nil || dir.Name == nil {
			continue
		}
		name := dir.Name.Value
		if name != "skip" && name != "include" {
			return false, fmt.Errorf("unknown directive '@%s'", name)
		}
		cond, err := inl.directiveCondition(name, dir)
		if err != nil {
			return false, err
		}
		if name == "skip" && cond {
			include = false
		}
		if name == "include" && !cond {
			include = false
		}
	}
	return include, nil
}

func (inl *inliner) directiveCondition(name string, dir *ast.Directive) (bool, error) {
	for _, arg := range dir.Arguments {
		if arg == nil || arg.Name == nil || arg.Name.Value != "if" {
			continue
		}
		switch v := arg.Value.(type) {
		case *ast.BooleanValue:
			return v.Value, nil
		case *ast.Variable:
			inl.variableConditions = true
			varName := ""
			if v.Name != nil {
				varName = v.Name.Value
			}
			raw, ok := inl.vars[varName]
			if !ok {
				return false, fmt.Errorf("variable '$%s' is not defined", varName)
			}
			b, ok := raw.(bool)
			if !ok {
				return false, fmt.Errorf("argument 'if' on directive '@%s' must be a Boolean", name)
			}
			return b, nil
		default:
			return false, fmt.Errorf("argument 'if' on directive '@%s' must be a Boolean", name)
		}
	}
	return false, fmt.Errorf("directive '@%s' requires argument 'if'", name)
}

// checkTypeCondition rejects a fragment whose condition can never match the
// enclosing type. A nil condition always applies.
func checkTypeCondition(cond *ast.Named, typeName string) error {
	if cond == nil || cond.Name == nil {
		return nil
	}
	if cond.Name.Value != typeName {
		return fmt.Errorf("fragment on '%s' can never apply to type '%s'", cond.Name.Value, typeName)
	}
	return nil
}

func selectionFieldName(field *ast.Field) string {
	if field == nil || field.Name == nil {
		return ""
	}
	return field.Name.Value
}

func spreadName(s *ast.FragmentSpread) string {
	if s == nil || s.Name == nil {
		return ""
	}
	return s.Name.Value
}
