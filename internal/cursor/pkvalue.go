package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"mysql-graphql/internal/sqlmeta"
	"mysql-graphql/internal/sqltype"
	"mysql-graphql/internal/uuidutil"
)

const (
	dateLayout = "2006-01-02"
	// MySQL renders temporal values in JSON using its own layouts, not RFC3339.
	mysqlDateTimeLayout      = "2006-01-02 15:04:05"
	mysqlDateTimeMicroLayout = "2006-01-02 15:04:05.999999"
	mysqlTimeLayout          = "15:04:05"
	mysqlTimeMicroLayout     = "15:04:05.999999"
)

// ParsePKValue converts a decoded JSON value into the Go type expected by a
// PK column, suitable for binding as a statement argument.
func ParsePKValue(col sqlmeta.Column, raw interface{}) (interface{}, error) {
	if raw == nil {
		return nil, fmt.Errorf("missing primary key value for %s", col.Name)
	}

	switch sqlmeta.EffectiveType(col) {
	case sqltype.TypeInt, sqltype.TypeBigInt:
		switch v := raw.(type) {
		case float64:
			if v != math.Trunc(v) || v >= float64(math.MaxInt64) || v < float64(math.MinInt64) {
				return nil, fmt.Errorf("invalid integer value for %s", col.Name)
			}
			return int64(v), nil
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case uint:
			return int64(v), nil
		case uint32:
			return int64(v), nil
		case uint64:
			if v > math.MaxInt64 {
				return nil, fmt.Errorf("invalid integer value for %s", col.Name)
			}
			return int64(v), nil
		case json.Number:
			return parseIntString(v.String(), col.Name)
		case string:
			return parseIntString(v, col.Name)
		default:
			return nil, fmt.Errorf("invalid integer value for %s", col.Name)
		}
	case sqltype.TypeFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case json.Number:
			parsed, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("invalid float value for %s", col.Name)
			}
			return parsed, nil
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid float value for %s", col.Name)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("invalid float value for %s", col.Name)
		}
	case sqltype.TypeDecimal:
		switch v := raw.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case json.Number:
			return v.String(), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case float32:
			return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	case sqltype.TypeBoolean:
		// TINYINT(1) keys arrive as JSON numbers; nonzero means true.
		switch v := raw.(type) {
		case bool:
			return v, nil
		case float64:
			return v != 0, nil
		case json.Number:
			parsed, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("invalid boolean value for %s", col.Name)
			}
			return parsed != 0, nil
		case string:
			if parsed, err := strconv.ParseBool(v); err == nil {
				return parsed, nil
			}
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed != 0, nil
			}
			return nil, fmt.Errorf("invalid boolean value for %s", col.Name)
		default:
			return nil, fmt.Errorf("invalid boolean value for %s", col.Name)
		}
	case sqltype.TypeDate:
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case string:
			if parsed, err := time.Parse(dateLayout, v); err == nil {
				return parsed, nil
			}
			if parsed, err := time.Parse(time.RFC3339, v); err == nil {
				return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), nil
			}
			return nil, fmt.Errorf("invalid date value for %s", col.Name)
		default:
			return nil, fmt.Errorf("invalid date value for %s", col.Name)
		}
	case sqltype.TypeDateTime:
		switch v := raw.(type) {
		case time.Time:
			return v, nil
		case string:
			if parsed, err := time.Parse(time.RFC3339, v); err == nil {
				return parsed, nil
			}
			if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
				return parsed, nil
			}
			if parsed, err := time.Parse(mysqlDateTimeMicroLayout, v); err == nil {
				return parsed, nil
			}
			if parsed, err := time.Parse(mysqlDateTimeLayout, v); err == nil {
				return parsed, nil
			}
			return nil, fmt.Errorf("invalid datetime value for %s", col.Name)
		default:
			return nil, fmt.Errorf("invalid datetime value for %s", col.Name)
		}
	case sqltype.TypeTime:
		switch v := raw.(type) {
		case string:
			if _, err := time.Parse(mysqlTimeMicroLayout, v); err == nil {
				return v, nil
			}
			if _, err := time.Parse(mysqlTimeLayout, v); err == nil {
				return v, nil
			}
			return nil, fmt.Errorf("invalid time value for %s", col.Name)
		default:
			return nil, fmt.Errorf("invalid time value for %s", col.Name)
		}
	case sqltype.TypeUUID:
		switch v := raw.(type) {
		case string:
			parsed, canonical, err := uuidutil.ParseString(v)
			if err != nil {
				return nil, fmt.Errorf("invalid UUID value for %s", col.Name)
			}
			if sqlmeta.UUIDBinaryStorage(col) {
				return uuidutil.ToBytes(parsed), nil
			}
			return canonical, nil
		case []byte:
			if sqlmeta.UUIDBinaryStorage(col) {
				return v, nil
			}
			_, canonical, err := uuidutil.ParseBytes(v)
			if err != nil {
				return nil, fmt.Errorf("invalid UUID value for %s", col.Name)
			}
			return canonical, nil
		default:
			return nil, fmt.Errorf("invalid UUID value for %s", col.Name)
		}
	case sqltype.TypeBytes:
		switch v := raw.(type) {
		case string:
			decoded, err := base64.StdEncoding.DecodeString(v)
			if err != nil {
				return nil, fmt.Errorf("invalid bytes value for %s", col.Name)
			}
			return decoded, nil
		case []byte:
			return v, nil
		default:
			return nil, fmt.Errorf("invalid bytes value for %s", col.Name)
		}
	default:
		switch v := raw.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		default:
			return nil, fmt.Errorf("invalid value for %s", col.Name)
		}
	}
}

// parseIntString handles BIGINT UNSIGNED keys above the int64 range.
func parseIntString(s, colName string) (interface{}, error) {
	if parsed, err := strconv.ParseInt(s, 10, 64); err == nil {
		return parsed, nil
	}
	if parsed, err := strconv.ParseUint(s, 10, 64); err == nil {
		return parsed, nil
	}
	return nil, fmt.Errorf("invalid integer value for %s", colName)
}
