// Package compiler translates parsed GraphQL operations into single
// parameterized SQL statements against a catalog snapshot.
//
// One operation compiles to one SELECT returning one row with one JSON
// column; the database assembles the whole response payload. MySQL derived
// tables cannot reference outer query aliases, and LATERAL cannot be relied
// on across supported versions, so every connection is compiled as scalar
// subqueries over a self-contained ROW_NUMBER window, with the parent
// correlation and the page cap applied outside the derived table.
package compiler

import (
	"fmt"
	"strings"

	"mysql-graphql/internal/catalog"
	"mysql-graphql/internal/sqlmeta"
	"mysql-graphql/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
	"github.com/graphql-go/graphql/language/ast"
)

const (
	// DefaultPageSize applies when a connection names no first/last argument.
	DefaultPageSize = 10
	// MaxPageSize caps any requested page size.
	MaxPageSize = 100
)

// Limits bounds connection page sizes during compilation. Zero fields fall
// back to the package defaults.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

func (l Limits) defaultSize() int {
	if l.DefaultPageSize > 0 {
		return l.DefaultPageSize
	}
	return DefaultPageSize
}

func (l Limits) maxSize() int {
	if l.MaxPageSize > 0 {
		return l.MaxPageSize
	}
	return MaxPageSize
}

// VarIndex resolves operation variables during compilation. Arguments that
// shape the statement (page sizes, filters, order) are resolved eagerly;
// everything else becomes a bind slot resolved per execution.
type VarIndex interface {
	Lookup(name string) (interface{}, bool)
}

// MapVars adapts a plain variable map to VarIndex.
type MapVars map[string]interface{}

// Lookup implements VarIndex.
func (m MapVars) Lookup(name string) (interface{}, bool) {
	v, ok := m[name]
	return v, ok
}

// Slot describes one bind argument of a compiled statement, in placeholder
// order. Var names the operation variable the value comes from at bind time;
// literal arguments carry their coerced Value directly.
type Slot struct {
	Var   string
	Value interface{}
	// Arg names the GraphQL argument the slot serves, for bind errors.
	Arg string
	// Enum translates exposed enum value names to stored SQL values.
	Enum *catalog.Type
	// Column drives wire-to-driver coercion of variable values.
	Column *sqlmeta.Column
	// Cursor names the entity type an opaque identifier must decode to;
	// CursorKeys is the expected key arity.
	Cursor     string
	CursorKeys int
}

// Plan is a compiled statement ready for execution. Fields lists the
// top-level response keys in selection order; the statement returns one row
// with one JSON object column keyed by them. Cacheable reports whether the
// statement text is reusable across requests with different variables.
type Plan struct {
	SQL       string
	Slots     []Slot
	Fields    []string
	Cacheable bool
}

type compile struct {
	cat       *catalog.Catalog
	vars      VarIndex
	limits    Limits
	aliases   int
	cacheable bool
}

// Compile translates one query operation into a single SQL statement.
// Fragment spreads and inline fragments must already be inlined into the
// selection sets.
func Compile(cat *catalog.Catalog, op *ast.OperationDefinition, vars VarIndex, limits Limits) (*Plan, error) {
	if cat == nil {
		return nil, fmt.Errorf("no catalog snapshot")
	}
	if op == nil || op.SelectionSet == nil || len(op.SelectionSet.Selections) == 0 {
		return nil, fmt.Errorf("operation has no selections")
	}
	if op.Operation != "" && op.Operation != "query" {
		return nil, fmt.Errorf("unsupported operation type %q", op.Operation)
	}
	if vars == nil {
		vars = MapVars{}
	}

	c := &compile{cat: cat, vars: vars, limits: limits, cacheable: true}
	query := cat.QueryType()

	fields := make([]string, 0, len(op.SelectionSet.Selections))
	object := make([]interface{}, 0, len(op.SelectionSet.Selections)*3)
	for _, sel := range op.SelectionSet.Selections {
		field, ok := sel.(*ast.Field)
		if !ok {
			return nil, fmt.Errorf("fragments must be inlined before compilation")
		}
		name := fieldName(field)
		if strings.HasPrefix(name, "__") {
			// Root meta fields are answered from the catalog, not the
			// database.
			continue
		}
		qf, ok := query.Field(name)
		if !ok {
			return nil, fmt.Errorf("Unknown field '%s' on type 'Query'", name)
		}

		var expr sq.Sqlizer
		var err error
		switch qf.Class {
		case catalog.ClassRootConnection:
			expr, err = c.connection(qf, field, "")
		case catalog.ClassRootNode:
			expr, err = c.rootNode(qf, field)
		default:
			err = fmt.Errorf("field '%s' cannot be compiled at the query root", name)
		}
		if err != nil {
			return nil, err
		}

		key := responseKey(field)
		if len(fields) > 0 {
			object = append(object, ", ")
		}
		object = append(object, sqlutil.QuoteString(key)+", ", expr)
		fields = append(fields, key)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("operation selects no data fields")
	}

	parts := make([]interface{}, 0, len(object)+2)
	parts = append(parts, "SELECT JSON_OBJECT(")
	parts = append(parts, object...)
	parts = append(parts, ")")

	sqlText, args, err := concatExpr(parts...).ToSql()
	if err != nil {
		return nil, err
	}
	slots := make([]Slot, len(args))
	for i, arg := range args {
		slot, ok := arg.(Slot)
		if !ok {
			return nil, fmt.Errorf("statement argument %d is not a bind slot", i)
		}
		slots[i] = slot
	}

	return &Plan{SQL: sqlText, Slots: slots, Fields: fields, Cacheable: c.cacheable}, nil
}

func (c *compile) nextAlias() string {
	c.aliases++
	return fmt.Sprintf("a%d", c.aliases)
}

func fieldName(field *ast.Field) string {
	if field == nil || field.Name == nil {
		return ""
	}
	return field.Name.Value
}

func responseKey(field *ast.Field) string {
	if field.Alias != nil && field.Alias.Value != "" {
		return field.Alias.Value
	}
	return fieldName(field)
}

func argumentName(arg *ast.Argument) string {
	if arg == nil || arg.Name == nil {
		return ""
	}
	return arg.Name.Value
}

func variableName(v *ast.Variable) string {
	if v == nil || v.Name == nil {
		return ""
	}
	return v.Name.Value
}

// lookupVar resolves an eagerly evaluated variable and marks the plan
// uncacheable, since the variable's value shapes the statement text.
func (c *compile) lookupVar(name string) (interface{}, error) {
	raw, ok := c.vars.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("variable '$%s' is not defined", name)
	}
	c.cacheable = false
	return raw, nil
}

func (c *compile) noArguments(field *ast.Field) error {
	if len(field.Arguments) == 0 {
		return nil
	}
	return fmt.Errorf("unknown argument '%s' on field '%s'", argumentName(field.Arguments[0]), fieldName(field))
}

func noSelection(field *ast.Field, typeName string) error {
	if field.SelectionSet == nil {
		return nil
	}
	return fmt.Errorf("field '%s' on type '%s' does not take a selection set", fieldName(field), typeName)
}

func requireSelection(field *ast.Field, typeName string) error {
	if field.SelectionSet != nil && len(field.SelectionSet.Selections) > 0 {
		return nil
	}
	return fmt.Errorf("field '%s' on type '%s' requires a selection set", fieldName(field), typeName)
}

// concatExpr builds an expression from string fragments, nested expressions,
// and bind slots. String fragments must not contain placeholders; fragments
// that do must be wrapped in sq.Expr with their slots first.
func concatExpr(parts ...interface{}) sq.Sqlizer {
	var sb strings.Builder
	var args []interface{}
	for _, part := range parts {
		switch v := part.(type) {
		case string:
			sb.WriteString(v)
		case sq.Sqlizer:
			sb.WriteString("?")
			args = append(args, v)
		default:
			sb.WriteString("?")
			args = append(args, v)
		}
	}
	return sq.Expr(sb.String(), args...)
}
