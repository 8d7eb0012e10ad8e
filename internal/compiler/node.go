package compiler

import (
	"fmt"

	"mysql-graphql/internal/catalog"
	"mysql-graphql/internal/cursor"
	"mysql-graphql/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
	"github.com/graphql-go/graphql/language/ast"
)

// rootNode compiles a single-row lookup such as account(nodeId: ...) into a
// scalar subquery returning the node object, or NULL when no row matches.
func (c *compile) rootNode(qf *catalog.Field, field *ast.Field) (sq.Sqlizer, error) {
	objType, ok := c.cat.Type(qf.Type.Name)
	if !ok || objType.Entity == nil {
		return nil, fmt.Errorf("field '%s' has no backing entity", fieldName(field))
	}
	entity := objType.Entity
	if err := requireSelection(field, objType.Name); err != nil {
		return nil, err
	}

	var idValue ast.Value
	for _, arg := range field.Arguments {
		if argumentName(arg) != "nodeId" {
			return nil, fmt.Errorf("unknown argument '%s' on field '%s'", argumentName(arg), fieldName(field))
		}
		idValue = arg.Value
	}
	if idValue == nil {
		return nil, fmt.Errorf("field '%s' requires the 'nodeId' argument", fieldName(field))
	}
	slot, err := c.opaqueIDSlot(idValue, "nodeId", entity)
	if err != nil {
		return nil, err
	}

	alias := c.nextAlias()
	obj, err := c.nodeObject(objType, alias, field.SelectionSet)
	if err != nil {
		return nil, err
	}

	conds := make([]sq.Sqlizer, 0, len(entity.KeyColumns)+1)
	conds = append(conds, sq.Expr(fmt.Sprintf(
		"JSON_UNQUOTE(JSON_EXTRACT(CONVERT(FROM_BASE64(?) USING utf8mb4), '$[0]')) = %s",
		sqlutil.QuoteString(entity.TypeName),
	), slot))
	for i, key := range entity.KeyColumns {
		conds = append(conds, sq.Expr(fmt.Sprintf(
			"%s = %s",
			sqlutil.QualifyColumn(alias, key.Name),
			cursor.DecodeElementExpr("?", i, key),
		), slot))
	}

	return concatExpr(
		"(SELECT ", obj,
		" FROM "+sqlutil.QuoteIdentifier(entity.Table)+" AS "+sqlutil.QuoteIdentifier(alias),
		" WHERE ", sq.And(conds),
		" LIMIT 1)",
	), nil
}

// opaqueIDSlot validates an opaque identifier argument and returns its bind
// slot. Literal identifiers are checked at compile time; variables carry the
// expected type and arity so binding checks them on every execution.
func (c *compile) opaqueIDSlot(value ast.Value, arg string, entity *catalog.Entity) (Slot, error) {
	slot := Slot{Arg: arg, Cursor: entity.TypeName, CursorKeys: len(entity.KeyColumns)}
	switch v := value.(type) {
	case *ast.Variable:
		slot.Var = variableName(v)
		return slot, nil
	case *ast.StringValue:
		if err := validateOpaqueID(v.Value, arg, entity.TypeName, len(entity.KeyColumns)); err != nil {
			return Slot{}, err
		}
		slot.Value = v.Value
		return slot, nil
	default:
		return Slot{}, fmt.Errorf("%s must be a string", arg)
	}
}

func validateOpaqueID(raw, arg, typeName string, keys int) error {
	decoded, values, err := cursor.Decode(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", arg, err)
	}
	if decoded != typeName {
		return fmt.Errorf("invalid %s: expected an identifier for type '%s'", arg, typeName)
	}
	if len(values) != keys {
		return fmt.Errorf("invalid %s: got %d key elements, want %d", arg, len(values), keys)
	}
	return nil
}

// nodeObject renders the JSON object for one row of objType addressed by
// alias. Every selected field becomes a key; nested relationships recurse
// into correlated subqueries.
func (c *compile) nodeObject(objType *catalog.Type, alias string, selections *ast.SelectionSet) (sq.Sqlizer, error) {
	parts := []interface{}{"JSON_OBJECT("}
	n := 0
	for _, sel := range selections.Selections {
		field, ok := sel.(*ast.Field)
		if !ok {
			return nil, fmt.Errorf("fragments must be inlined before compilation")
		}
		name := fieldName(field)
		f, ok := objType.Field(name)
		if !ok {
			return nil, fmt.Errorf("Unknown field '%s' on type '%s'", name, objType.Name)
		}
		expr, err := c.objectField(objType, f, field, alias)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			parts = append(parts, ", ")
		}
		parts = append(parts, sqlutil.QuoteString(responseKey(field))+", ", expr)
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("type '%s' requires at least one selected field", objType.Name)
	}
	parts = append(parts, ")")
	return concatExpr(parts...), nil
}

func (c *compile) objectField(objType *catalog.Type, f *catalog.Field, field *ast.Field, alias string) (sq.Sqlizer, error) {
	switch f.Class {
	case catalog.ClassTypename:
		if err := c.noArguments(field); err != nil {
			return nil, err
		}
		if err := noSelection(field, objType.Name); err != nil {
			return nil, err
		}
		return sq.Expr(sqlutil.QuoteString(objType.Name)), nil

	case catalog.ClassNodeID:
		if err := c.noArguments(field); err != nil {
			return nil, err
		}
		if err := noSelection(field, objType.Name); err != nil {
			return nil, err
		}
		return sq.Expr(rowCursorExpr(alias, objType.Entity)), nil

	case catalog.ClassColumn:
		if err := c.noArguments(field); err != nil {
			return nil, err
		}
		if err := noSelection(field, objType.Name); err != nil {
			return nil, err
		}
		return sq.Expr(c.columnJSONExpr(alias, f)), nil

	case catalog.ClassManyToOne:
		if err := c.noArguments(field); err != nil {
			return nil, err
		}
		return c.manyToOne(f, field, alias)

	case catalog.ClassOneToMany:
		return c.connection(f, field, alias)

	default:
		return nil, fmt.Errorf("Unknown field '%s' on type '%s'", f.Name, objType.Name)
	}
}

// manyToOne compiles a forward relationship into a correlated scalar
// subquery. The result is NULL when the joining columns are NULL or the
// referenced row is not visible to the active role.
func (c *compile) manyToOne(f *catalog.Field, field *ast.Field, parentAlias string) (sq.Sqlizer, error) {
	remoteType, ok := c.cat.Type(f.Type.Name)
	if !ok || remoteType.Entity == nil {
		return nil, fmt.Errorf("field '%s' has no backing entity", f.Name)
	}
	remote := remoteType.Entity
	if err := requireSelection(field, remoteType.Name); err != nil {
		return nil, err
	}

	alias := c.nextAlias()
	obj, err := c.nodeObject(remoteType, alias, field.SelectionSet)
	if err != nil {
		return nil, err
	}

	return concatExpr(
		"(SELECT ", obj,
		" FROM "+sqlutil.QuoteIdentifier(remote.Table)+" AS "+sqlutil.QuoteIdentifier(alias),
		" WHERE ", sq.And(joinConds(f.Join, alias, parentAlias)),
		" LIMIT 1)",
	), nil
}

// joinConds equates the remote side of a relationship with the local side:
// remoteAlias.RemoteColumns[i] = localAlias.LocalColumns[i].
func joinConds(join *catalog.Join, remoteAlias, localAlias string) []sq.Sqlizer {
	conds := make([]sq.Sqlizer, len(join.LocalColumns))
	for i := range join.LocalColumns {
		conds[i] = sq.Expr(fmt.Sprintf(
			"%s = %s",
			sqlutil.QualifyColumn(remoteAlias, join.RemoteColumns[i]),
			sqlutil.QualifyColumn(localAlias, join.LocalColumns[i]),
		))
	}
	return conds
}
