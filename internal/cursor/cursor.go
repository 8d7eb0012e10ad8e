// Package cursor encodes and decodes the opaque identifiers shared by Relay
// connection cursors and node IDs. Both use the same wire format: a
// base64-encoded JSON array of [TypeName, pkValue, ...]. The SQL builders in
// this package emit the matching encode and decode expressions so generated
// statements and Go code agree on the format byte for byte.
package cursor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Encode marshals the type name and primary key values into a base64-encoded JSON array.
func Encode(typeName string, pkValues ...interface{}) (string, error) {
	payload := make([]interface{}, 0, len(pkValues)+1)
	payload = append(payload, typeName)
	payload = append(payload, pkValues...)
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode id: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode parses a base64-encoded JSON array identifier and returns the type
// name and raw PK values. Numbers are preserved as json.Number so BIGINT keys
// survive without float64 precision loss.
func Decode(encoded string) (string, []interface{}, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("invalid id: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload []interface{}
	if err := dec.Decode(&payload); err != nil {
		return "", nil, fmt.Errorf("invalid id: %w", err)
	}
	if len(payload) < 2 {
		return "", nil, errors.New("invalid id: missing type or primary key values")
	}
	typeName, ok := payload[0].(string)
	if !ok || typeName == "" {
		return "", nil, errors.New("invalid id: missing type name")
	}
	return typeName, payload[1:], nil
}
