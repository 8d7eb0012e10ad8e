package compiler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"mysql-graphql/internal/cursor"
	"mysql-graphql/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
	"github.com/graphql-go/graphql/language/ast"
)

// cursorBound anchors a connection window at one side of an opaque cursor.
type cursorBound struct {
	slot  Slot
	after bool
}

// parseCount resolves a first/last argument. A null variable counts as
// absent; values above the configured maximum clamp silently.
func (c *compile) parseCount(name string, value ast.Value) (int, bool, error) {
	var n int
	switch v := value.(type) {
	case *ast.Variable:
		raw, err := c.lookupVar(variableName(v))
		if err != nil {
			return 0, false, err
		}
		if raw == nil {
			return 0, false, nil
		}
		parsed, err := countValue(name, raw)
		if err != nil {
			return 0, false, err
		}
		n = parsed
	case *ast.IntValue:
		parsed, err := strconv.Atoi(v.Value)
		if err != nil {
			return 0, false, fmt.Errorf("%s must be an integer", name)
		}
		n = parsed
	default:
		return 0, false, fmt.Errorf("%s must be an integer", name)
	}
	if n < 0 {
		return 0, false, fmt.Errorf("%s must be non-negative", name)
	}
	if max := c.limits.maxSize(); n > max {
		n = max
	}
	return n, true, nil
}

func countValue(name string, raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", name)
		}
		return int(parsed), nil
	default:
		return 0, fmt.Errorf("%s must be an integer", name)
	}
}

// keysetCond builds the seek predicate anchoring a window at a cursor bound,
// evaluated against alias. With a bare key ordering the decoded elements
// compare directly as a tuple; with a requested ordering the anchor row is
// fetched by key and the full order tuple compares against it, so the
// predicate stays valid for non-unique order columns. Variable-bound cursors
// get a null guard: binding NULL leaves the window unbounded.
func (c *compile) keysetCond(alias string, bound cursorBound, st *connState) sq.Sqlizer {
	keys := st.entity.KeyColumns
	op := ">"
	if bound.after == st.order[0].desc {
		op = "<"
	}

	var sb strings.Builder
	var args []interface{}
	if bound.slot.Var != "" {
		sb.WriteString("(? IS NULL OR ")
		args = append(args, bound.slot)
	}

	sb.WriteString("(")
	if st.requested == 0 {
		for i, key := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(sqlutil.QualifyColumn(alias, key.Name))
		}
		sb.WriteString(") " + op + " (")
		for i := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(cursor.DecodeElementExpr("?", i, keys[i]))
			args = append(args, bound.slot)
		}
		sb.WriteString(")")
	} else {
		anchor := c.nextAlias()
		for i, t := range st.order {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(sqlutil.QualifyColumn(alias, t.column.Name))
		}
		sb.WriteString(") " + op + " (SELECT ")
		for i, t := range st.order {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(sqlutil.QualifyColumn(anchor, t.column.Name))
		}
		sb.WriteString(" FROM " + sqlutil.QuoteIdentifier(st.entity.Table) + " AS " + sqlutil.QuoteIdentifier(anchor) + " WHERE ")
		for i, key := range keys {
			if i > 0 {
				sb.WriteString(" AND ")
			}
			sb.WriteString(sqlutil.QualifyColumn(anchor, key.Name) + " = " + cursor.DecodeElementExpr("?", i, key))
			args = append(args, bound.slot)
		}
		sb.WriteString(" LIMIT 1)")
	}

	if bound.slot.Var != "" {
		sb.WriteString(")")
	}
	return sq.Expr(sb.String(), args...)
}
