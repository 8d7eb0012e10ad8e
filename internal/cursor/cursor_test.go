package cursor

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mysql-graphql/internal/sqlmeta"
	"mysql-graphql/internal/sqltype"
)

func mustEncode(t *testing.T, typeName string, pkValues ...interface{}) string {
	t.Helper()
	encoded, err := Encode(typeName, pkValues...)
	require.NoError(t, err)
	return encoded
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	encoded := mustEncode(t, "User", int64(42))
	typeName, values, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "User", typeName)
	require.Len(t, values, 1)
	assert.Equal(t, json.Number("42"), values[0])
}

func TestEncodeDecodeComposite(t *testing.T) {
	encoded := mustEncode(t, "OrderItem", "A-1", int64(7))
	typeName, values, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "OrderItem", typeName)
	require.Len(t, values, 2)
	assert.Equal(t, "A-1", values[0])
	assert.Equal(t, json.Number("7"), values[1])
}

func TestEncodeDecodeRoundTrip_LargeIntPK(t *testing.T) {
	const largeID = int64(5188146770730811493)

	encoded := mustEncode(t, "User", largeID)
	typeName, values, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "User", typeName)
	require.Len(t, values, 1)
	assert.Equal(t, json.Number("5188146770730811493"), values[0])

	col := sqlmeta.Column{Name: "id", DataType: "bigint"}
	parsed, err := ParsePKValue(col, values[0])
	require.NoError(t, err)
	assert.Equal(t, largeID, parsed)
}

func TestDecodeMatchesSQLProducedPayload(t *testing.T) {
	// The SQL encode expression yields base64 over a JSON array literal;
	// the Go decoder must accept it unchanged.
	sqlProduced := base64.StdEncoding.EncodeToString([]byte(`["Account", 1]`))
	typeName, values, err := Decode(sqlProduced)
	require.NoError(t, err)
	assert.Equal(t, "Account", typeName)
	require.Len(t, values, 1)
	assert.Equal(t, json.Number("1"), values[0])
}

func TestEncodeUnmarshalableValue(t *testing.T) {
	_, err := Encode("User", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode id")
}

func TestDecodeErrors(t *testing.T) {
	_, _, err := Decode("not-base64")
	require.Error(t, err)

	_, _, err = Decode(mustEncode(t, ""))
	require.Error(t, err)

	_, _, err = Decode(mustEncode(t, "User"))
	require.Error(t, err)
}

func TestParsePKValue_Int(t *testing.T) {
	col := sqlmeta.Column{Name: "id", DataType: "int"}
	value, err := ParsePKValue(col, 12.0)
	require.NoError(t, err)
	assert.EqualValues(t, 12, value)

	_, err = ParsePKValue(col, 12.5)
	require.Error(t, err)

	_, err = ParsePKValue(col, float64(math.MaxInt64)*2)
	require.Error(t, err)

	_, err = ParsePKValue(col, uint64(math.MaxInt64)+1)
	require.Error(t, err)
}

func TestParsePKValue_UnsignedBigIntString(t *testing.T) {
	col := sqlmeta.Column{Name: "id", DataType: "bigint", ColumnType: "bigint(20) unsigned"}
	value, err := ParsePKValue(col, json.Number("18446744073709551615"))
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), value)
}

func TestParsePKValue_BooleanNumeric(t *testing.T) {
	col := sqlmeta.Column{Name: "is_active", DataType: "tinyint", ColumnType: "tinyint(1)"}

	value, err := ParsePKValue(col, 0.0)
	require.NoError(t, err)
	assert.Equal(t, false, value)

	value, err = ParsePKValue(col, 2.0)
	require.NoError(t, err)
	assert.Equal(t, true, value)

	value, err = ParsePKValue(col, "0")
	require.NoError(t, err)
	assert.Equal(t, false, value)

	value, err = ParsePKValue(col, "2")
	require.NoError(t, err)
	assert.Equal(t, true, value)
}

func TestParsePKValue_String(t *testing.T) {
	col := sqlmeta.Column{Name: "code", DataType: "varchar(10)"}
	value, err := ParsePKValue(col, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", value)

	_, err = ParsePKValue(col, 12.0)
	require.Error(t, err)
}

func TestParsePKValue_Date(t *testing.T) {
	col := sqlmeta.Column{Name: "day", DataType: "date"}
	value, err := ParsePKValue(col, "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), value)

	value, err = ParsePKValue(col, "2024-01-15T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), value)
}

func TestParsePKValue_DateTime(t *testing.T) {
	col := sqlmeta.Column{Name: "ts", DataType: "datetime"}
	value, err := ParsePKValue(col, "2024-01-15T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), value)

	_, err = ParsePKValue(col, "2024-01-15")
	require.Error(t, err)
}

func TestParsePKValue_DateTimeMySQLFormat(t *testing.T) {
	// JSON_ARRAY renders DATETIME columns in MySQL's own layout.
	col := sqlmeta.Column{Name: "ts", DataType: "datetime"}
	value, err := ParsePKValue(col, "2024-01-15 10:30:00.000000")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), value)

	value, err = ParsePKValue(col, "2024-01-15 10:30:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), value)
}

func TestParsePKValue_Time(t *testing.T) {
	col := sqlmeta.Column{Name: "opens_at", DataType: "time"}
	value, err := ParsePKValue(col, "10:30:00")
	require.NoError(t, err)
	assert.Equal(t, "10:30:00", value)

	value, err = ParsePKValue(col, "10:30:00.500000")
	require.NoError(t, err)
	assert.Equal(t, "10:30:00.500000", value)

	_, err = ParsePKValue(col, "not-a-time")
	require.Error(t, err)
}

func TestParsePKValue_Bytes(t *testing.T) {
	col := sqlmeta.Column{Name: "key", DataType: "blob"}
	encoded := base64.StdEncoding.EncodeToString([]byte("abc"))
	value, err := ParsePKValue(col, encoded)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), value)

	_, err = ParsePKValue(col, "%%%")
	require.Error(t, err)
}

func TestParsePKValue_UUIDText(t *testing.T) {
	col := sqlmeta.Column{
		Name:            "id",
		DataType:        "char",
		ColumnType:      "char(36)",
		OverrideType:    sqltype.TypeUUID,
		HasOverrideType: true,
	}

	value, err := ParsePKValue(col, "550E8400-E29B-41D4-A716-446655440000")
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", value)
}

func TestParsePKValue_UUIDBinary(t *testing.T) {
	col := sqlmeta.Column{
		Name:            "id",
		DataType:        "binary",
		ColumnType:      "binary(16)",
		OverrideType:    sqltype.TypeUUID,
		HasOverrideType: true,
	}

	value, err := ParsePKValue(col, "550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)
	require.IsType(t, []byte{}, value)
	assert.Len(t, value.([]byte), 16)
}

func TestEncodeDecodeRoundTrip_UUIDPK(t *testing.T) {
	colText := sqlmeta.Column{
		Name:            "id",
		DataType:        "char",
		ColumnType:      "char(36)",
		OverrideType:    sqltype.TypeUUID,
		HasOverrideType: true,
	}

	id := mustEncode(t, "Order", "550e8400-e29b-41d4-a716-446655440000")
	typeName, values, err := Decode(id)
	require.NoError(t, err)
	assert.Equal(t, "Order", typeName)
	require.Len(t, values, 1)

	parsed, err := ParsePKValue(colText, values[0])
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", parsed)

	colBinary := sqlmeta.Column{
		Name:            "id",
		DataType:        "binary",
		ColumnType:      "binary(16)",
		OverrideType:    sqltype.TypeUUID,
		HasOverrideType: true,
	}
	parsedBinary, err := ParsePKValue(colBinary, values[0])
	require.NoError(t, err)
	require.IsType(t, []byte{}, parsedBinary)
	assert.Len(t, parsedBinary.([]byte), 16)
}
