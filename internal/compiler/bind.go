package compiler

import (
	"fmt"

	"mysql-graphql/internal/cursor"
)

// BindSlots resolves a plan's bind slots against one request's variables and
// returns the driver argument list, in statement order. Literal slots were
// coerced at compile time and pass straight through; variable slots coerce
// here, so a cached plan revalidates every request's values.
func BindSlots(slots []Slot, vars VarIndex) ([]interface{}, error) {
	if vars == nil {
		vars = MapVars{}
	}
	args := make([]interface{}, len(slots))
	for i, slot := range slots {
		v, err := bindSlot(slot, vars)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func bindSlot(slot Slot, vars VarIndex) (interface{}, error) {
	if slot.Var == "" {
		return slot.Value, nil
	}
	raw, ok := vars.Lookup(slot.Var)
	if !ok {
		return nil, fmt.Errorf("variable '$%s' is not defined", slot.Var)
	}
	if raw == nil {
		// Null cursors widen the window to unbounded; the statement guards
		// them with an IS NULL escape. Comparison operands have no such
		// guard and cannot be null.
		if slot.Cursor != "" {
			return nil, nil
		}
		return nil, fmt.Errorf("argument '%s' must not be null", slot.Arg)
	}
	switch {
	case slot.Cursor != "":
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s must be a string", slot.Arg)
		}
		if err := validateOpaqueID(s, slot.Arg, slot.Cursor, slot.CursorKeys); err != nil {
			return nil, err
		}
		return s, nil
	case slot.Enum != nil:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("unknown enum value for type '%s'", slot.Enum.Name)
		}
		ev, ok := slot.Enum.EnumValueByName(s)
		if !ok {
			return nil, fmt.Errorf("unknown enum value '%s' for type '%s'", s, slot.Enum.Name)
		}
		return ev.Value, nil
	case slot.Column != nil:
		return cursor.ParsePKValue(*slot.Column, raw)
	}
	return raw, nil
}
