package compiler

import (
	"fmt"
	"strings"

	"mysql-graphql/internal/catalog"
	"mysql-graphql/internal/sqlmeta"
	"mysql-graphql/internal/sqlutil"

	"github.com/graphql-go/graphql/language/ast"
)

// orderTerm is one column of the effective ordering in forward presentation
// direction.
type orderTerm struct {
	column *sqlmeta.Column
	desc   bool
}

// parseOrderBy resolves the orderBy argument into explicit order terms.
// Entries are single-field objects mapping an orderable column to ASC or
// DESC; a lone object is accepted as a one-entry list.
func (c *compile) parseOrderBy(arg *catalog.Arg, value ast.Value, objType *catalog.Type) ([]orderTerm, error) {
	orderType, ok := c.cat.Type(arg.Type.Name)
	if !ok {
		return nil, fmt.Errorf("unknown type '%s'", arg.Type.Name)
	}

	switch v := value.(type) {
	case *ast.Variable:
		raw, err := c.lookupVar(variableName(v))
		if err != nil {
			return nil, err
		}
		return c.resolvedOrderBy(orderType, objType, raw)
	case *ast.ListValue:
		terms := make([]orderTerm, 0, len(v.Values))
		for _, entry := range v.Values {
			term, err := c.orderEntry(orderType, objType, entry)
			if err != nil {
				return nil, err
			}
			terms = append(terms, term)
		}
		return terms, nil
	case *ast.ObjectValue:
		term, err := c.orderEntry(orderType, objType, v)
		if err != nil {
			return nil, err
		}
		return []orderTerm{term}, nil
	default:
		return nil, fmt.Errorf("orderBy must be a list of single-field objects")
	}
}

func (c *compile) orderEntry(orderType, objType *catalog.Type, value ast.Value) (orderTerm, error) {
	obj, ok := value.(*ast.ObjectValue)
	if !ok {
		return orderTerm{}, fmt.Errorf("orderBy must be a list of single-field objects")
	}
	if len(obj.Fields) != 1 {
		return orderTerm{}, fmt.Errorf("orderBy entries must contain exactly one field")
	}
	entry := obj.Fields[0]
	name := ""
	if entry.Name != nil {
		name = entry.Name.Value
	}

	column, err := orderColumn(orderType, objType, name)
	if err != nil {
		return orderTerm{}, err
	}

	var dir string
	switch d := entry.Value.(type) {
	case *ast.EnumValue:
		dir = d.Value
	case *ast.Variable:
		raw, lookErr := c.lookupVar(variableName(d))
		if lookErr != nil {
			return orderTerm{}, lookErr
		}
		s, ok := raw.(string)
		if !ok {
			return orderTerm{}, fmt.Errorf("orderBy direction must be ASC or DESC")
		}
		dir = s
	default:
		return orderTerm{}, fmt.Errorf("orderBy direction must be ASC or DESC")
	}
	desc, err := parseDirection(dir)
	if err != nil {
		return orderTerm{}, err
	}
	return orderTerm{column: column, desc: desc}, nil
}

// resolvedOrderBy handles an orderBy value supplied through a variable, after
// JSON decoding: a list of single-entry maps, or one bare map.
func (c *compile) resolvedOrderBy(orderType, objType *catalog.Type, raw interface{}) ([]orderTerm, error) {
	if raw == nil {
		return nil, nil
	}
	var entries []interface{}
	switch v := raw.(type) {
	case []interface{}:
		entries = v
	case map[string]interface{}:
		entries = []interface{}{v}
	default:
		return nil, fmt.Errorf("orderBy must be a list of single-field objects")
	}

	terms := make([]orderTerm, 0, len(entries))
	for _, entry := range entries {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("orderBy must be a list of single-field objects")
		}
		if len(m) != 1 {
			return nil, fmt.Errorf("orderBy entries must contain exactly one field")
		}
		for name, dirRaw := range m {
			column, err := orderColumn(orderType, objType, name)
			if err != nil {
				return nil, err
			}
			dir, ok := dirRaw.(string)
			if !ok {
				return nil, fmt.Errorf("orderBy direction must be ASC or DESC")
			}
			desc, err := parseDirection(dir)
			if err != nil {
				return nil, err
			}
			terms = append(terms, orderTerm{column: column, desc: desc})
		}
	}
	return terms, nil
}

func orderColumn(orderType, objType *catalog.Type, name string) (*sqlmeta.Column, error) {
	if _, ok := orderType.InputField(name); !ok {
		return nil, fmt.Errorf("Unknown field '%s' on type '%s'", name, orderType.Name)
	}
	f, ok := objType.Field(name)
	if !ok || f.Column == nil {
		return nil, fmt.Errorf("Unknown field '%s' on type '%s'", name, orderType.Name)
	}
	return f.Column, nil
}

func parseDirection(dir string) (bool, error) {
	switch dir {
	case "ASC":
		return false, nil
	case "DESC":
		return true, nil
	default:
		return false, fmt.Errorf("orderBy direction must be ASC or DESC")
	}
}

// effectiveOrder appends the entity key columns to the requested terms so
// the ordering is total. With a uniform requested direction the keys follow
// it, keeping seek predicates a single tuple comparison; otherwise the keys
// tie-break ascending.
func effectiveOrder(requested []orderTerm, keys []sqlmeta.Column) []orderTerm {
	terms := make([]orderTerm, 0, len(requested)+len(keys))
	terms = append(terms, requested...)

	keyDesc := false
	if len(requested) > 0 && uniformDirection(requested) {
		keyDesc = requested[0].desc
	}
	for i := range keys {
		key := keys[i]
		present := false
		for _, t := range requested {
			if t.column.Name == key.Name {
				present = true
				break
			}
		}
		if !present {
			terms = append(terms, orderTerm{column: &keys[i], desc: keyDesc})
		}
	}
	return terms
}

func uniformDirection(terms []orderTerm) bool {
	if len(terms) == 0 {
		return true
	}
	for _, t := range terms[1:] {
		if t.desc != terms[0].desc {
			return false
		}
	}
	return true
}

// orderSQL renders an ORDER BY column list over alias; reverse flips every
// direction.
func orderSQL(alias string, terms []orderTerm, reverse bool) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		dir := " ASC"
		if t.desc != reverse {
			dir = " DESC"
		}
		parts[i] = sqlutil.QualifyColumn(alias, t.column.Name) + dir
	}
	return strings.Join(parts, ", ")
}
