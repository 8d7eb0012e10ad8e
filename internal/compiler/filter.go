package compiler

import (
	"fmt"
	"sort"

	"mysql-graphql/internal/catalog"
	"mysql-graphql/internal/cursor"
	"mysql-graphql/internal/sqlmeta"
	"mysql-graphql/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
	"github.com/graphql-go/graphql/language/ast"
)

// filterSpec is a parsed filter argument, replayable against any table
// alias. Entries AND together.
type filterSpec struct {
	entries []filterEntry
}

type filterEntry struct {
	column *sqlmeta.Column
	op     string
	slot   Slot
	slots  []Slot
	isNull bool
}

// conds renders the filter against one table alias. Each call re-emits the
// slots, so every occurrence of the filter binds its own arguments.
func (s *filterSpec) conds(alias string) []sq.Sqlizer {
	out := make([]sq.Sqlizer, 0, len(s.entries))
	for _, e := range s.entries {
		qualified := sqlutil.QualifyColumn(alias, e.column.Name)
		switch e.op {
		case "eq":
			out = append(out, sq.Eq{qualified: e.slot})
		case "neq":
			out = append(out, sq.NotEq{qualified: e.slot})
		case "gt":
			out = append(out, sq.Gt{qualified: e.slot})
		case "gte":
			out = append(out, sq.GtOrEq{qualified: e.slot})
		case "lt":
			out = append(out, sq.Lt{qualified: e.slot})
		case "lte":
			out = append(out, sq.LtOrEq{qualified: e.slot})
		case "like":
			out = append(out, sq.Like{qualified: e.slot})
		case "in":
			if len(e.slots) == 0 {
				out = append(out, sq.Expr("1=0"))
				continue
			}
			values := make([]interface{}, len(e.slots))
			for i, slot := range e.slots {
				values[i] = slot
			}
			out = append(out, sq.Eq{qualified: values})
		case "isNull":
			if e.isNull {
				out = append(out, sq.Eq{qualified: nil})
			} else {
				out = append(out, sq.NotEq{qualified: nil})
			}
		}
	}
	return out
}

// parseFilter validates a filter argument against the entity's filter input
// type and captures its comparisons. A null filter matches everything.
func (c *compile) parseFilter(arg *catalog.Arg, value ast.Value, objType *catalog.Type) (*filterSpec, error) {
	filterType, ok := c.cat.Type(arg.Type.Name)
	if !ok {
		return nil, fmt.Errorf("unknown type '%s'", arg.Type.Name)
	}

	switch v := value.(type) {
	case *ast.Variable:
		raw, err := c.lookupVar(variableName(v))
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, nil
		}
		m, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("filter must be an object")
		}
		return c.resolvedFilter(filterType, objType, m)
	case *ast.ObjectValue:
		return c.literalFilter(filterType, objType, v)
	default:
		return nil, fmt.Errorf("filter must be an object")
	}
}

func (c *compile) literalFilter(filterType, objType *catalog.Type, obj *ast.ObjectValue) (*filterSpec, error) {
	spec := &filterSpec{}
	for _, entry := range obj.Fields {
		name := objectFieldName(entry)
		f, opType, enumType, err := c.filterColumn(filterType, objType, name)
		if err != nil {
			return nil, err
		}
		switch ops := entry.Value.(type) {
		case *ast.ObjectValue:
			for _, opEntry := range ops.Fields {
				opName := objectFieldName(opEntry)
				if _, ok := opType.InputField(opName); !ok {
					return nil, fmt.Errorf("Unknown field '%s' on type '%s'", opName, opType.Name)
				}
				fe, err := c.literalFilterOp(f.Column, enumType, opName, opEntry.Value)
				if err != nil {
					return nil, err
				}
				spec.entries = append(spec.entries, fe)
			}
		case *ast.Variable:
			raw, err := c.lookupVar(variableName(ops))
			if err != nil {
				return nil, err
			}
			if raw == nil {
				continue
			}
			m, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("filter for %s must be an object", name)
			}
			entries, err := c.resolvedFilterOps(f.Column, opType, enumType, m)
			if err != nil {
				return nil, err
			}
			spec.entries = append(spec.entries, entries...)
		default:
			return nil, fmt.Errorf("filter for %s must be an object", name)
		}
	}
	if len(spec.entries) == 0 {
		return nil, nil
	}
	return spec, nil
}

// resolvedFilter handles a filter supplied through a variable, after JSON
// decoding. Map keys are walked in sorted order so the statement text stays
// deterministic.
func (c *compile) resolvedFilter(filterType, objType *catalog.Type, m map[string]interface{}) (*filterSpec, error) {
	spec := &filterSpec{}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, opType, enumType, err := c.filterColumn(filterType, objType, name)
		if err != nil {
			return nil, err
		}
		ops, ok := m[name].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("filter for %s must be an object", name)
		}
		entries, err := c.resolvedFilterOps(f.Column, opType, enumType, ops)
		if err != nil {
			return nil, err
		}
		spec.entries = append(spec.entries, entries...)
	}
	if len(spec.entries) == 0 {
		return nil, nil
	}
	return spec, nil
}

// filterColumn resolves one filter entry to its backing column field, the
// operator input type, and the enum type when the column is an enum.
func (c *compile) filterColumn(filterType, objType *catalog.Type, name string) (*catalog.Field, *catalog.Type, *catalog.Type, error) {
	input, ok := filterType.InputField(name)
	if !ok {
		return nil, nil, nil, fmt.Errorf("Unknown field '%s' on type '%s'", name, filterType.Name)
	}
	f, ok := objType.Field(name)
	if !ok || f.Column == nil {
		return nil, nil, nil, fmt.Errorf("Unknown field '%s' on type '%s'", name, filterType.Name)
	}
	opType, ok := c.cat.Type(input.Type.Name)
	if !ok {
		return nil, nil, nil, fmt.Errorf("unknown type '%s'", input.Type.Name)
	}
	var enumType *catalog.Type
	if t, ok := c.cat.Type(f.Type.Name); ok && t.Kind == catalog.KindEnum {
		enumType = t
	}
	return f, opType, enumType, nil
}

func (c *compile) literalFilterOp(col *sqlmeta.Column, enumType *catalog.Type, op string, value ast.Value) (filterEntry, error) {
	entry := filterEntry{column: col, op: op}
	switch op {
	case "isNull":
		switch v := value.(type) {
		case *ast.BooleanValue:
			entry.isNull = v.Value
		case *ast.Variable:
			raw, err := c.lookupVar(variableName(v))
			if err != nil {
				return filterEntry{}, err
			}
			b, ok := raw.(bool)
			if !ok {
				return filterEntry{}, fmt.Errorf("isNull must be a boolean")
			}
			entry.isNull = b
		default:
			return filterEntry{}, fmt.Errorf("isNull must be a boolean")
		}
	case "in":
		switch v := value.(type) {
		case *ast.ListValue:
			for _, item := range v.Values {
				slot, err := c.leafSlot(col, enumType, op, item)
				if err != nil {
					return filterEntry{}, err
				}
				entry.slots = append(entry.slots, slot)
			}
		case *ast.Variable:
			raw, err := c.lookupVar(variableName(v))
			if err != nil {
				return filterEntry{}, err
			}
			arr, ok := raw.([]interface{})
			if !ok {
				return filterEntry{}, fmt.Errorf("in operator requires an array")
			}
			for _, item := range arr {
				slot, err := resolvedLeafSlot(col, enumType, op, item)
				if err != nil {
					return filterEntry{}, err
				}
				entry.slots = append(entry.slots, slot)
			}
		default:
			return filterEntry{}, fmt.Errorf("in operator requires an array")
		}
	default:
		slot, err := c.leafSlot(col, enumType, op, value)
		if err != nil {
			return filterEntry{}, err
		}
		entry.slot = slot
	}
	return entry, nil
}

// resolvedFilterOps walks one column's operator map in sorted key order so
// the statement text stays deterministic.
func (c *compile) resolvedFilterOps(col *sqlmeta.Column, opType, enumType *catalog.Type, ops map[string]interface{}) ([]filterEntry, error) {
	opNames := make([]string, 0, len(ops))
	for opName := range ops {
		opNames = append(opNames, opName)
	}
	sort.Strings(opNames)

	entries := make([]filterEntry, 0, len(ops))
	for _, opName := range opNames {
		if _, ok := opType.InputField(opName); !ok {
			return nil, fmt.Errorf("Unknown field '%s' on type '%s'", opName, opType.Name)
		}
		fe, err := c.resolvedFilterOp(col, enumType, opName, ops[opName])
		if err != nil {
			return nil, err
		}
		entries = append(entries, fe)
	}
	return entries, nil
}

func (c *compile) resolvedFilterOp(col *sqlmeta.Column, enumType *catalog.Type, op string, raw interface{}) (filterEntry, error) {
	entry := filterEntry{column: col, op: op}
	switch op {
	case "isNull":
		b, ok := raw.(bool)
		if !ok {
			return filterEntry{}, fmt.Errorf("isNull must be a boolean")
		}
		entry.isNull = b
	case "in":
		arr, ok := raw.([]interface{})
		if !ok {
			return filterEntry{}, fmt.Errorf("in operator requires an array")
		}
		for _, item := range arr {
			slot, err := resolvedLeafSlot(col, enumType, op, item)
			if err != nil {
				return filterEntry{}, err
			}
			entry.slots = append(entry.slots, slot)
		}
	default:
		slot, err := resolvedLeafSlot(col, enumType, op, raw)
		if err != nil {
			return filterEntry{}, err
		}
		entry.slot = slot
	}
	return entry, nil
}

// leafSlot turns one comparison operand into a bind slot. Variables defer
// coercion to bind time; literals coerce immediately.
func (c *compile) leafSlot(col *sqlmeta.Column, enumType *catalog.Type, op string, value ast.Value) (Slot, error) {
	if v, ok := value.(*ast.Variable); ok {
		return Slot{Var: variableName(v), Arg: op, Enum: enumType, Column: col}, nil
	}
	if enumType != nil {
		ev, ok := value.(*ast.EnumValue)
		if !ok {
			return Slot{}, fmt.Errorf("expected a '%s' enum value", enumType.Name)
		}
		return resolvedLeafSlot(col, enumType, op, ev.Value)
	}
	raw, err := literalValue(op, value)
	if err != nil {
		return Slot{}, err
	}
	return resolvedLeafSlot(col, nil, op, raw)
}

// resolvedLeafSlot coerces an in-hand operand for a column and wraps it as a
// literal slot.
func resolvedLeafSlot(col *sqlmeta.Column, enumType *catalog.Type, op string, raw interface{}) (Slot, error) {
	if raw == nil {
		return Slot{}, fmt.Errorf("operator '%s' does not accept null", op)
	}
	if enumType != nil {
		s, ok := raw.(string)
		if !ok {
			return Slot{}, fmt.Errorf("unknown enum value for type '%s'", enumType.Name)
		}
		ev, ok := enumType.EnumValueByName(s)
		if !ok {
			return Slot{}, fmt.Errorf("unknown enum value '%s' for type '%s'", s, enumType.Name)
		}
		return Slot{Value: ev.Value, Arg: op}, nil
	}
	v, err := cursor.ParsePKValue(*col, raw)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Value: v, Arg: op}, nil
}

// literalValue extracts the raw operand from a scalar literal. Numeric
// literals keep their source text; column coercion decides the final type.
func literalValue(op string, value ast.Value) (interface{}, error) {
	switch v := value.(type) {
	case *ast.IntValue:
		return v.Value, nil
	case *ast.FloatValue:
		return v.Value, nil
	case *ast.StringValue:
		return v.Value, nil
	case *ast.BooleanValue:
		return v.Value, nil
	default:
		return nil, fmt.Errorf("invalid value for operator '%s'", op)
	}
}

func objectFieldName(f *ast.ObjectField) string {
	if f == nil || f.Name == nil {
		return ""
	}
	return f.Name.Value
}
