package scalars

import (
	"encoding/base64"
	"math"
	"testing"
	"time"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBigIntScalar(t *testing.T) {
	scalar := BigInt()

	serialized := scalar.Serialize(int64(9223372036854775807))
	assert.Equal(t, "9223372036854775807", serialized)

	parsed := scalar.ParseValue("42")
	require.IsType(t, int64(0), parsed)
	assert.Equal(t, int64(42), parsed)

	invalid := scalar.ParseValue("not-a-number")
	assert.Nil(t, invalid)

	assert.Nil(t, scalar.Serialize(float64(math.MaxInt64)*2))
	assert.Nil(t, scalar.ParseValue(float64(math.MaxInt64)*2))

	literal := scalar.ParseLiteral(&ast.IntValue{Value: "7"})
	assert.Equal(t, int64(7), literal)
	assert.Equal(t, int64(-3), scalar.ParseLiteral(&ast.StringValue{Value: "-3"}))
	assert.Nil(t, scalar.ParseLiteral(&ast.FloatValue{Value: "1.5"}))
}

func TestDecimalScalar(t *testing.T) {
	scalar := Decimal()

	serialized := scalar.Serialize("12345.67")
	assert.Equal(t, "12345.67", serialized)

	parsed := scalar.ParseValue("98.76")
	assert.Equal(t, "98.76", parsed)
	assert.Equal(t, ".5", scalar.ParseValue(".5"))
	assert.Equal(t, "1e3", scalar.ParseValue("1e3"))
	assert.Nil(t, scalar.ParseValue("not-a-decimal"))
	assert.Nil(t, scalar.ParseValue("1/2"))
	assert.Nil(t, scalar.ParseValue(""))

	literal := scalar.ParseLiteral(&ast.FloatValue{Value: "10.5"})
	assert.Equal(t, "10.5", literal)
	assert.Nil(t, scalar.ParseLiteral(&ast.StringValue{Value: "abc"}))
}

func TestDateScalar(t *testing.T) {
	scalar := Date()

	input := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	serialized := scalar.Serialize(input)
	assert.Equal(t, "2024-01-15", serialized)

	assert.Equal(t, "2024-01-15", scalar.Serialize("2024-01-15"))
	assert.Nil(t, scalar.Serialize("Jan 15 2024"))

	parsed := scalar.ParseValue("2024-01-02")
	require.IsType(t, time.Time{}, parsed)
	parsedTime := parsed.(time.Time)
	assert.Equal(t, "2024-01-02", parsedTime.Format("2006-01-02"))

	parsedRFC := scalar.ParseValue("2024-01-02T11:12:13Z")
	require.IsType(t, time.Time{}, parsedRFC)
	parsedRFCTime := parsedRFC.(time.Time)
	assert.Equal(t, "2024-01-02", parsedRFCTime.Format("2006-01-02"))
	assert.Equal(t, 0, parsedRFCTime.Hour())

	assert.Nil(t, scalar.ParseValue("10000-01-01"))
}

func TestDatetimeScalar(t *testing.T) {
	scalar := Datetime()

	input := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)
	assert.Equal(t, "2024-01-15 10:30:45", scalar.Serialize(input))
	assert.Equal(t, "2024-01-15 10:30:45", scalar.Serialize("2024-01-15 10:30:45"))
	assert.Nil(t, scalar.Serialize("2024-01-15T10:30:45"))

	parsed := scalar.ParseValue("2024-01-02 11:12:13")
	require.IsType(t, time.Time{}, parsed)
	assert.Equal(t, 11, parsed.(time.Time).Hour())

	parsedRFC := scalar.ParseValue("2024-01-02T11:12:13Z")
	require.IsType(t, time.Time{}, parsedRFC)
	assert.Equal(t, 11, parsedRFC.(time.Time).Hour())

	literal := scalar.ParseLiteral(&ast.StringValue{Value: "2024-01-02 11:12:13"})
	require.IsType(t, time.Time{}, literal)
	assert.Nil(t, scalar.ParseLiteral(&ast.IntValue{Value: "0"}))
}

func TestTimeScalar(t *testing.T) {
	scalar := Time()

	input := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)
	assert.Equal(t, "10:30:45", scalar.Serialize(input))
	assert.Equal(t, "838:59:59", scalar.Serialize("838:59:59"))
	assert.Equal(t, "01:01:01", scalar.Serialize([]byte("01:01:01")))

	assert.Equal(t, "11:12:13", scalar.ParseValue("11:12:13"))
	assert.Nil(t, scalar.ParseValue(1112))

	assert.Equal(t, "05:06:07", scalar.ParseLiteral(&ast.StringValue{Value: "05:06:07"}))
	assert.Nil(t, scalar.ParseLiteral(&ast.IntValue{Value: "5"}))
}

func TestJSONScalar(t *testing.T) {
	scalar := JSON()

	serialized := scalar.Serialize([]byte(`{"name":"ava","active":true}`))
	require.IsType(t, map[string]interface{}{}, serialized)
	decoded := serialized.(map[string]interface{})
	assert.Equal(t, "ava", decoded["name"])
	assert.Equal(t, true, decoded["active"])

	assert.Equal(t, []interface{}{float64(1), float64(2)}, scalar.Serialize("[1,2]"))
	assert.Nil(t, scalar.Serialize("not-json"))

	passthrough := map[string]interface{}{"ok": true}
	assert.Equal(t, passthrough, scalar.Serialize(passthrough))
	assert.Equal(t, passthrough, scalar.ParseValue(passthrough))

	literal := scalar.ParseLiteral(&ast.StringValue{Value: `{"ok":true}`})
	assert.Equal(t, map[string]interface{}{"ok": true}, literal)
	assert.Nil(t, scalar.ParseLiteral(&ast.StringValue{Value: "nope"}))
}

func TestUUIDScalar(t *testing.T) {
	scalar := UUID()

	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", scalar.ParseValue("550E8400-E29B-41D4-A716-446655440000"))
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", scalar.ParseLiteral(&ast.StringValue{Value: "550E8400-E29B-41D4-A716-446655440000"}))
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", scalar.Serialize("550E8400-E29B-41D4-A716-446655440000"))

	assert.Equal(t,
		"550e8400-e29b-41d4-a716-446655440000",
		scalar.Serialize([]byte{0x55, 0x0e, 0x84, 0x00, 0xe2, 0x9b, 0x41, 0xd4, 0xa7, 0x16, 0x44, 0x66, 0x55, 0x44, 0x00, 0x00}),
	)

	assert.Nil(t, scalar.ParseValue("not-a-uuid"))
	assert.Nil(t, scalar.Serialize([]byte{0x01, 0x02}))
	assert.Nil(t, scalar.ParseLiteral(&ast.IntValue{Value: "42"}))
}

func TestBase64BytesScalar(t *testing.T) {
	scalar := Base64Bytes()

	serialized := scalar.Serialize([]byte("hello"))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), serialized)

	parsed := scalar.ParseValue(base64.StdEncoding.EncodeToString([]byte("world")))
	require.IsType(t, []byte{}, parsed)
	assert.Equal(t, []byte("world"), parsed)

	assert.Equal(t, "", scalar.Serialize([]byte{}))
	require.IsType(t, []byte{}, scalar.ParseValue(""))

	assert.Nil(t, scalar.ParseValue("not-base64@@"))
	assert.Nil(t, scalar.ParseLiteral(&ast.StringValue{Value: "not-base64@@"}))
	assert.Equal(t, []byte("ok"), scalar.ParseLiteral(&ast.StringValue{Value: base64.StdEncoding.EncodeToString([]byte("ok"))}))
}
