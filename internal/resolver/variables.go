package resolver

import (
	"fmt"
	"strconv"

	"github.com/graphql-go/graphql/language/ast"
)

// effectiveVariables materializes the operation's declared variables:
// provided values win, declaration defaults fill gaps, and declared but
// unprovided nullable variables materialize as explicit nulls so binding can
// tell them from undeclared names. Provided values for undeclared variables
// are dropped.
func effectiveVariables(op *ast.OperationDefinition, provided map[string]interface{}) (map[string]interface{}, error) {
	vars := make(map[string]interface{}, len(op.VariableDefinitions))
	for _, vd := range op.VariableDefinitions {
		if vd == nil || vd.Variable == nil || vd.Variable.Name == nil {
			continue
		}
		name := vd.Variable.Name.Value
		if raw, ok := provided[name]; ok {
			if raw == nil && isNonNullType(vd.Type) {
				return nil, fmt.Errorf("variable '$%s' of required type '%s' must not be null", name, renderType(vd.Type))
			}
			vars[name] = raw
			continue
		}
		if vd.DefaultValue != nil {
			v, err := literalGoValue(vd.DefaultValue)
			if err != nil {
				return nil, fmt.Errorf("variable '$%s' has an invalid default value: %v", name, err)
			}
			vars[name] = v
			continue
		}
		if isNonNullType(vd.Type) {
			return nil, fmt.Errorf("variable '$%s' of required type '%s' was not provided", name, renderType(vd.Type))
		}
		vars[name] = nil
	}
	return vars, nil
}

func isNonNullType(t ast.Type) bool {
	_, ok := t.(*ast.NonNull)
	return ok
}

// renderType prints a type reference in GraphQL notation.
func renderType(t ast.Type) string {
	switch v := t.(type) {
	case *ast.Named:
		if v.Name == nil {
			return ""
		}
		return v.Name.Value
	case *ast.List:
		return "[" + renderType(v.Type) + "]"
	case *ast.NonNull:
		return renderType(v.Type) + "!"
	default:
		return ""
	}
}

// literalGoValue converts a constant literal to its Go value. Integer
// literals become int64, floats float64, enum names strings; input objects
// and lists convert recursively.
func literalGoValue(value ast.Value) (interface{}, error) {
	switch v := value.(type) {
	case *ast.IntValue:
		n, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer literal '%s'", v.Value)
		}
		return n, nil
	case *ast.FloatValue:
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float literal '%s'", v.Value)
		}
		return f, nil
	case *ast.StringValue:
		return v.Value, nil
	case *ast.BooleanValue:
		return v.Value, nil
	case *ast.EnumValue:
		return v.Value, nil
	case *ast.ListValue:
		out := make([]interface{}, 0, len(v.Values))
		for _, item := range v.Values {
			gv, err := literalGoValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, gv)
		}
		return out, nil
	case *ast.ObjectValue:
		out := make(map[string]interface{}, len(v.Fields))
		for _, f := range v.Fields {
			if f == nil || f.Name == nil {
				continue
			}
			gv, err := literalGoValue(f.Value)
			if err != nil {
				return nil, err
			}
			out[f.Name.Value] = gv
		}
		return out, nil
	case *ast.Variable:
		return nil, fmt.Errorf("default values cannot reference variables")
	default:
		return nil, fmt.Errorf("unsupported literal kind")
	}
}
