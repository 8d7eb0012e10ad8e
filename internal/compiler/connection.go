package compiler

import (
	"fmt"
	"strings"

	"mysql-graphql/internal/catalog"
	"mysql-graphql/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
	"github.com/graphql-go/graphql/language/ast"
)

// connState carries the pieces the connection builders share: the resolved
// types, the parent correlation, and the parsed window arguments.
type connState struct {
	connType *catalog.Type
	objType  *catalog.Type
	entity   *catalog.Entity
	// parentAlias correlates a nested connection; empty at the root.
	parentAlias string
	join        *catalog.Join
	filter      *filterSpec
	// order is the effective ordering; the first requested entries came
	// from the caller, the entity keys are appended after them.
	order     []orderTerm
	requested int
	bounds    []cursorBound
	limit     int
	backward  bool
	rnCol     string
}

// connection compiles a connection field into a JSON object expression.
// Every selected piece (edges, pageInfo fields, totalCount) becomes its own
// scalar subquery over the same window definition.
func (c *compile) connection(qf *catalog.Field, field *ast.Field, parentAlias string) (sq.Sqlizer, error) {
	connType, ok := c.cat.Type(qf.Type.Name)
	if !ok || connType.Entity == nil {
		return nil, fmt.Errorf("field '%s' has no backing entity", fieldName(field))
	}
	entity := connType.Entity
	objType, ok := c.cat.Type(entity.TypeName)
	if !ok {
		return nil, fmt.Errorf("unknown type '%s'", entity.TypeName)
	}
	if err := requireSelection(field, connType.Name); err != nil {
		return nil, err
	}

	st := &connState{
		connType:    connType,
		objType:     objType,
		entity:      entity,
		parentAlias: parentAlias,
		join:        qf.Join,
	}

	var (
		firstSet, lastSet bool
		limit             int
		requested         []orderTerm
	)
	for _, arg := range field.Arguments {
		name := argumentName(arg)
		argSpec, known := qf.Arg(name)
		if !known {
			return nil, fmt.Errorf("unknown argument '%s' on field '%s'", name, fieldName(field))
		}
		switch name {
		case "first", "last":
			n, present, err := c.parseCount(name, arg.Value)
			if err != nil {
				return nil, err
			}
			if !present {
				continue
			}
			if name == "first" {
				firstSet = true
			} else {
				lastSet = true
			}
			limit = n
		case "after", "before":
			slot, err := c.opaqueIDSlot(arg.Value, name, entity)
			if err != nil {
				return nil, err
			}
			st.bounds = append(st.bounds, cursorBound{slot: slot, after: name == "after"})
		case "filter":
			fs, err := c.parseFilter(argSpec, arg.Value, objType)
			if err != nil {
				return nil, err
			}
			st.filter = fs
		case "orderBy":
			terms, err := c.parseOrderBy(argSpec, arg.Value, objType)
			if err != nil {
				return nil, err
			}
			requested = terms
		default:
			return nil, fmt.Errorf("unknown argument '%s' on field '%s'", name, fieldName(field))
		}
	}
	if firstSet && lastSet {
		return nil, fmt.Errorf("cannot use both first and last")
	}
	if !firstSet && !lastSet {
		limit = c.limits.defaultSize()
	}
	st.backward = lastSet
	st.limit = limit
	st.requested = len(requested)
	st.order = effectiveOrder(requested, entity.KeyColumns)
	if len(st.bounds) > 0 && !uniformDirection(st.order) {
		return nil, fmt.Errorf("cursor pagination requires a single orderBy direction")
	}
	st.rnCol = rnColumnName(entity)

	parts := []interface{}{"JSON_OBJECT("}
	n := 0
	for _, sel := range field.SelectionSet.Selections {
		sub, ok := sel.(*ast.Field)
		if !ok {
			return nil, fmt.Errorf("fragments must be inlined before compilation")
		}
		name := fieldName(sub)
		f, ok := connType.Field(name)
		if !ok {
			return nil, fmt.Errorf("Unknown field '%s' on type '%s'", name, connType.Name)
		}

		var expr sq.Sqlizer
		var err error
		switch f.Class {
		case catalog.ClassTypename:
			if err = c.noArguments(sub); err == nil {
				err = noSelection(sub, connType.Name)
			}
			if err == nil {
				expr = sq.Expr(sqlutil.QuoteString(connType.Name))
			}
		case catalog.ClassEdges:
			expr, err = c.edgesExpr(st, f, sub)
		case catalog.ClassPageInfo:
			expr, err = c.pageInfoExpr(st, sub)
		case catalog.ClassTotalCount:
			if err = c.noArguments(sub); err == nil {
				err = noSelection(sub, connType.Name)
			}
			if err == nil {
				expr = c.totalCountExpr(st)
			}
		default:
			err = fmt.Errorf("Unknown field '%s' on type '%s'", name, connType.Name)
		}
		if err != nil {
			return nil, err
		}

		if n > 0 {
			parts = append(parts, ", ")
		}
		parts = append(parts, sqlutil.QuoteString(responseKey(sub))+", ", expr)
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("type '%s' requires at least one selected field", connType.Name)
	}
	parts = append(parts, ")")
	return concatExpr(parts...), nil
}

// edgesExpr aggregates the window rows into an ordered JSON array of edges.
// JSON_ARRAYAGG cannot order its elements, so the edges are concatenated
// with GROUP_CONCAT in row-number order and reparsed as JSON.
func (c *compile) edgesExpr(st *connState, f *catalog.Field, field *ast.Field) (sq.Sqlizer, error) {
	if err := c.noArguments(field); err != nil {
		return nil, err
	}
	if err := requireSelection(field, f.Type.Name); err != nil {
		return nil, err
	}
	edgeType, ok := c.cat.Type(f.Type.Name)
	if !ok {
		return nil, fmt.Errorf("unknown type '%s'", f.Type.Name)
	}

	w := c.nextAlias()
	edge := []interface{}{"JSON_OBJECT("}
	n := 0
	for _, sel := range field.SelectionSet.Selections {
		sub, ok := sel.(*ast.Field)
		if !ok {
			return nil, fmt.Errorf("fragments must be inlined before compilation")
		}
		name := fieldName(sub)
		ef, ok := edgeType.Field(name)
		if !ok {
			return nil, fmt.Errorf("Unknown field '%s' on type '%s'", name, edgeType.Name)
		}

		var expr sq.Sqlizer
		var err error
		switch ef.Class {
		case catalog.ClassTypename:
			if err = c.noArguments(sub); err == nil {
				err = noSelection(sub, edgeType.Name)
			}
			if err == nil {
				expr = sq.Expr(sqlutil.QuoteString(edgeType.Name))
			}
		case catalog.ClassEdgeCursor:
			if err = c.noArguments(sub); err == nil {
				err = noSelection(sub, edgeType.Name)
			}
			if err == nil {
				expr = sq.Expr(rowCursorExpr(w, st.entity))
			}
		case catalog.ClassEdgeNode:
			if err = c.noArguments(sub); err == nil {
				err = requireSelection(sub, st.objType.Name)
			}
			if err == nil {
				expr, err = c.nodeObject(st.objType, w, sub.SelectionSet)
			}
		default:
			err = fmt.Errorf("Unknown field '%s' on type '%s'", name, edgeType.Name)
		}
		if err != nil {
			return nil, err
		}

		if n > 0 {
			edge = append(edge, ", ")
		}
		edge = append(edge, sqlutil.QuoteString(responseKey(sub))+", ", expr)
		n++
	}
	if n == 0 {
		return nil, fmt.Errorf("type '%s' requires at least one selected field", edgeType.Name)
	}
	edge = append(edge, ")")

	window, err := c.windowSelect(st)
	if err != nil {
		return nil, err
	}
	dir := ""
	if st.backward {
		dir = " DESC"
	}

	parts := []interface{}{"COALESCE((SELECT CAST(CONCAT('[', GROUP_CONCAT(", concatExpr(edge...)}
	parts = append(parts, fmt.Sprintf(" ORDER BY %s%s SEPARATOR ','), ']') AS JSON)", sqlutil.QualifyColumn(w, st.rnCol), dir))
	parts = append(parts,
		" FROM ", window, " AS "+sqlutil.QuoteIdentifier(w),
		" WHERE ", sq.And(c.windowScope(st, w)),
		"), JSON_ARRAY())",
	)
	return concatExpr(parts...), nil
}

// windowSelect builds the self-contained derived table enumerating candidate
// rows: every visible column plus a row number computed within the parent
// key partition. The parent correlation cannot appear inside a derived
// table; consumers apply it through windowScope.
func (c *compile) windowSelect(st *connState) (sq.Sqlizer, error) {
	inner := c.nextAlias()
	var sb strings.Builder
	sb.WriteString("(SELECT ")
	for _, col := range st.entity.Columns {
		sb.WriteString(sqlutil.QualifyColumn(inner, col.Name))
		sb.WriteString(", ")
	}
	sb.WriteString("ROW_NUMBER() OVER (")
	if st.join != nil {
		sb.WriteString("PARTITION BY ")
		for i, col := range st.join.RemoteColumns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(sqlutil.QualifyColumn(inner, col))
		}
		sb.WriteString(" ")
	}
	sb.WriteString("ORDER BY ")
	sb.WriteString(orderSQL(inner, st.order, st.backward))
	sb.WriteString(") AS ")
	sb.WriteString(sqlutil.QuoteIdentifier(st.rnCol))
	sb.WriteString(" FROM ")
	sb.WriteString(sqlutil.QuoteIdentifier(st.entity.Table) + " AS " + sqlutil.QuoteIdentifier(inner))

	conds := c.rowConds(st, inner, true)
	if len(conds) == 0 {
		sb.WriteString(")")
		return sq.Expr(sb.String()), nil
	}
	return concatExpr(sb.String()+" WHERE ", sq.And(conds), ")"), nil
}

// rowConds returns the per-row conditions a window member must satisfy:
// the filter, and optionally the cursor seek predicates. The parent join is
// never part of them.
func (c *compile) rowConds(st *connState, alias string, withKeyset bool) []sq.Sqlizer {
	var conds []sq.Sqlizer
	if st.filter != nil {
		conds = append(conds, st.filter.conds(alias)...)
	}
	if withKeyset {
		for _, bound := range st.bounds {
			conds = append(conds, c.keysetCond(alias, bound, st))
		}
	}
	return conds
}

// windowScope applies what the derived window could not express itself: the
// parent join and the page cap.
func (c *compile) windowScope(st *connState, w string) []sq.Sqlizer {
	var conds []sq.Sqlizer
	if st.join != nil {
		conds = append(conds, joinConds(st.join, w, st.parentAlias)...)
	}
	conds = append(conds, sq.Expr(fmt.Sprintf("%s <= %d", sqlutil.QualifyColumn(w, st.rnCol), st.limit)))
	return conds
}

// totalCountExpr counts the full set under join and filter only; pagination
// arguments do not affect it.
func (c *compile) totalCountExpr(st *connState) sq.Sqlizer {
	a := c.nextAlias()
	var conds []sq.Sqlizer
	if st.join != nil {
		conds = append(conds, joinConds(st.join, a, st.parentAlias)...)
	}
	conds = append(conds, c.rowConds(st, a, false)...)

	head := "(SELECT COUNT(*) FROM " + sqlutil.QuoteIdentifier(st.entity.Table) + " AS " + sqlutil.QuoteIdentifier(a)
	if len(conds) == 0 {
		return sq.Expr(head + ")")
	}
	return concatExpr(head+" WHERE ", sq.And(conds), ")")
}

func (c *compile) pageInfoExpr(st *connState, field *ast.Field) (sq.Sqlizer, error) {
	if err := c.noArguments(field); err != nil {
		return nil, err
	}
	piType, ok := c.cat.Type("PageInfo")
	if !ok {
		return nil, fmt.Errorf("unknown type 'PageInfo'")
	}
	if err := requireSelection(field, piType.Name); err != nil {
		return nil, err
	}

	parts := []interface{}{"JSON_OBJECT("}
	n := 0
	for _, sel := range field.SelectionSet.Selections {
		sub, ok := sel.(*ast.Field)
		if !ok {
			return nil, fmt.Errorf("fragments must be inlined before compilation")
		}
		name := fieldName(sub)
		f, ok := piType.Field(name)
		if !ok {
			return nil, fmt.Errorf("Unknown field '%s' on type '%s'", name, piType.Name)
		}
		if err := c.noArguments(sub); err != nil {
			return nil, err
		}
		if err := noSelection(sub, piType.Name); err != nil {
			return nil, err
		}

		var expr sq.Sqlizer
		var err error
		switch f.Class {
		case catalog.ClassTypename:
			expr = sq.Expr(sqlutil.QuoteString(piType.Name))
		case catalog.ClassPageInfoCursor:
			expr, err = c.windowBoundary(st, name == "startCursor")
		case catalog.ClassPageInfoFlag:
			expr, err = c.pageFlag(st, name == "hasPreviousPage")
		default:
			err = fmt.Errorf("Unknown field '%s' on type '%s'", name, piType.Name)
		}
		if err != nil {
			return nil, err
		}

		if n > 0 {
			parts = append(parts, ", ")
		}
		parts = append(parts, sqlutil.QuoteString(responseKey(sub))+", ", expr)
		n++
	}
	parts = append(parts, ")")
	return concatExpr(parts...), nil
}

// windowBoundary returns the cursor of the window's start or end row. The
// near edge in numbering order comes from a direct seek query; the far edge
// replays the window and takes its highest row number.
func (c *compile) windowBoundary(st *connState, start bool) (sq.Sqlizer, error) {
	if st.limit == 0 {
		return sq.Expr("NULL"), nil
	}
	if start != st.backward {
		return c.boundaryNear(st), nil
	}
	return c.boundaryFar(st)
}

func (c *compile) boundaryNear(st *connState) sq.Sqlizer {
	a := c.nextAlias()
	var conds []sq.Sqlizer
	if st.join != nil {
		conds = append(conds, joinConds(st.join, a, st.parentAlias)...)
	}
	conds = append(conds, c.rowConds(st, a, true)...)

	head := "(SELECT " + rowCursorExpr(a, st.entity) +
		" FROM " + sqlutil.QuoteIdentifier(st.entity.Table) + " AS " + sqlutil.QuoteIdentifier(a)
	tail := " ORDER BY " + orderSQL(a, st.order, st.backward) + " LIMIT 1)"
	if len(conds) == 0 {
		return sq.Expr(head + tail)
	}
	return concatExpr(head+" WHERE ", sq.And(conds), tail)
}

func (c *compile) boundaryFar(st *connState) (sq.Sqlizer, error) {
	w := c.nextAlias()
	window, err := c.windowSelect(st)
	if err != nil {
		return nil, err
	}
	return concatExpr(
		"(SELECT "+rowCursorExpr(w, st.entity),
		" FROM ", window, " AS "+sqlutil.QuoteIdentifier(w),
		" WHERE ", sq.And(c.windowScope(st, w)),
		" ORDER BY "+sqlutil.QualifyColumn(w, st.rnCol)+" DESC LIMIT 1)",
	), nil
}

// fullBoundary returns the cursor of the first or last row of the full set
// (join and filter only), anchoring the has-more-pages comparisons.
func (c *compile) fullBoundary(st *connState, last bool) sq.Sqlizer {
	a := c.nextAlias()
	var conds []sq.Sqlizer
	if st.join != nil {
		conds = append(conds, joinConds(st.join, a, st.parentAlias)...)
	}
	conds = append(conds, c.rowConds(st, a, false)...)

	head := "(SELECT " + rowCursorExpr(a, st.entity) +
		" FROM " + sqlutil.QuoteIdentifier(st.entity.Table) + " AS " + sqlutil.QuoteIdentifier(a)
	tail := " ORDER BY " + orderSQL(a, st.order, last) + " LIMIT 1)"
	if len(conds) == 0 {
		return sq.Expr(head + tail)
	}
	return concatExpr(head+" WHERE ", sq.And(conds), tail)
}

// pageFlag compares a window boundary cursor against the matching full-set
// boundary: more pages exist exactly when they differ. NULL comparisons
// (empty window or empty set) collapse to FALSE.
func (c *compile) pageFlag(st *connState, previous bool) (sq.Sqlizer, error) {
	win, err := c.windowBoundary(st, previous)
	if err != nil {
		return nil, err
	}
	full := c.fullBoundary(st, !previous)
	return concatExpr("COALESCE(", win, " <> ", full, ", FALSE)"), nil
}

// rnColumnName picks the derived table's row-number column, stepping around
// any real column of the entity.
func rnColumnName(entity *catalog.Entity) string {
	name := "rn"
	for i := 2; ; i++ {
		if _, ok := entity.Column(name); !ok {
			return name
		}
		name = fmt.Sprintf("rn%d", i)
	}
}
