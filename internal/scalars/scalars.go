package scalars

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"mysql-graphql/internal/uuidutil"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
	timeLayout     = "15:04:05"
)

func BigInt() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "BigInt",
		Description: "64-bit integer, serialized as a string to avoid precision loss.",
		Serialize: func(value interface{}) interface{} {
			if parsed, ok := coerceInt64(value); ok {
				return strconv.FormatInt(parsed, 10)
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if parsed, ok := coerceInt64(value); ok {
				return parsed
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.IntValue:
				parsed, err := strconv.ParseInt(v.Value, 10, 64)
				if err != nil {
					return nil
				}
				return parsed
			case *ast.StringValue:
				parsed, err := strconv.ParseInt(v.Value, 10, 64)
				if err != nil {
					return nil
				}
				return parsed
			default:
				return nil
			}
		},
	})
}

func Decimal() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Decimal",
		Description: "Fixed-point number, serialized as a string.",
		Serialize:   coerceDecimal,
		ParseValue:  coerceDecimal,
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.StringValue:
				return coerceDecimal(v.Value)
			case *ast.IntValue:
				return v.Value
			case *ast.FloatValue:
				return v.Value
			default:
				return nil
			}
		},
	})
}

func Date() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Date",
		Description: "Calendar date in YYYY-MM-DD form.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v.Format(dateLayout)
			case *time.Time:
				if v == nil {
					return nil
				}
				return v.Format(dateLayout)
			case string:
				if _, err := time.Parse(dateLayout, v); err == nil {
					return v
				}
				return nil
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v
			case string:
				return parseDateString(v)
			default:
				return nil
			}
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				return parseDateString(sv.Value)
			}
			return nil
		},
	})
}

func Datetime() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Datetime",
		Description: "Timestamp in YYYY-MM-DD HH:MM:SS[.ffffff] form.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v.Format(datetimeLayout)
			case *time.Time:
				if v == nil {
					return nil
				}
				return v.Format(datetimeLayout)
			case string:
				if _, err := time.Parse(datetimeLayout, v); err == nil {
					return v
				}
				return nil
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v
			case string:
				return parseDatetimeString(v)
			default:
				return nil
			}
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				return parseDatetimeString(sv.Value)
			}
			return nil
		},
	})
}

func Time() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Time",
		Description: "Time of day in HH:MM:SS[.ffffff] form.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v.Format(timeLayout)
			case string:
				return v
			case []byte:
				return string(v)
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			if s, ok := value.(string); ok {
				return s
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				return sv.Value
			}
			return nil
		},
	})
}

func JSON() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "JSON",
		Description: "Arbitrary JSON value.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case []byte:
				return decodeJSONText(string(v))
			case string:
				return decodeJSONText(v)
			default:
				return v
			}
		},
		ParseValue: func(value interface{}) interface{} {
			return value
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				return decodeJSONText(sv.Value)
			}
			return nil
		},
	})
}

func UUID() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "UUID",
		Description: "UUID in canonical lowercase text form.",
		Serialize:   coerceUUID,
		ParseValue:  coerceUUID,
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				return coerceUUID(sv.Value)
			}
			return nil
		},
	})
}

func Base64Bytes() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Base64Bytes",
		Description: "Binary value, serialized as base64 text.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case []byte:
				return base64.StdEncoding.EncodeToString(v)
			case string:
				if _, err := base64.StdEncoding.DecodeString(v); err == nil {
					return v
				}
				return nil
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			switch v := value.(type) {
			case []byte:
				return v
			case string:
				decoded, err := base64.StdEncoding.DecodeString(v)
				if err != nil {
					return nil
				}
				return decoded
			default:
				return nil
			}
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				decoded, err := base64.StdEncoding.DecodeString(sv.Value)
				if err != nil {
					return nil
				}
				return decoded
			}
			return nil
		},
	})
}

func coerceInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case []byte:
		parsed, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func coerceDecimal(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return nil
		}
		return v
	case []byte:
		return coerceDecimal(string(v))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return stringifyNumber(v)
	case float32, float64:
		return stringifyNumber(v)
	default:
		return nil
	}
}

func stringifyNumber(v interface{}) string {
	out, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(out)
}

func coerceUUID(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		_, normalized, err := uuidutil.ParseString(v)
		if err != nil {
			return nil
		}
		return normalized
	case []byte:
		if len(v) == 16 {
			_, normalized, err := uuidutil.ParseBytes(v)
			if err != nil {
				return nil
			}
			return normalized
		}
		_, normalized, err := uuidutil.ParseString(string(v))
		if err != nil {
			return nil
		}
		return normalized
	default:
		return nil
	}
}

func decodeJSONText(text string) interface{} {
	var out interface{}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil
	}
	return out
}

func parseDateString(v string) interface{} {
	if parsed, err := time.Parse(dateLayout, v); err == nil {
		return parsed
	}
	if parsed, err := time.Parse(time.RFC3339, v); err == nil {
		return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
	}
	return nil
}

func parseDatetimeString(v string) interface{} {
	if parsed, err := time.Parse(datetimeLayout, v); err == nil {
		return parsed
	}
	if parsed, err := time.Parse(time.RFC3339, v); err == nil {
		return parsed
	}
	return nil
}
