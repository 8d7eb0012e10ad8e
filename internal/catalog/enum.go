package catalog

import (
	"fmt"
	"strings"
	"unicode"
)

// normalizeEnumValueName maps a raw SQL enum value to a legal GraphQL enum
// value name: uppercased, runs of punctuation and whitespace collapse to a
// single underscore, and non-ASCII runes become U-escaped code points so any
// value survives the trip. Names that come out empty or digit-led get a
// VALUE prefix.
func normalizeEnumValueName(value string) string {
	var sb strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			if pendingSep && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pendingSep = false
			sb.WriteRune(unicode.ToUpper(r))
		case r > unicode.MaxASCII:
			if sb.Len() > 0 {
				sb.WriteByte('_')
			}
			if r > 0xFFFF {
				fmt.Fprintf(&sb, "U%06X", r)
			} else {
				fmt.Fprintf(&sb, "U%04X", r)
			}
			pendingSep = true
		default:
			pendingSep = true
		}
	}

	name := sb.String()
	if name == "" {
		return "VALUE"
	}
	if name[0] >= '0' && name[0] <= '9' {
		return "VALUE_" + name
	}
	return name
}

// uniqueEnumValueName suffixes repeated normalized names so every enum value
// keeps a distinct exposed name. 'used' tracks occurrences across one enum.
func uniqueEnumValueName(name string, used map[string]int) string {
	count := used[name]
	used[name] = count + 1
	if count == 0 {
		return name
	}
	return fmt.Sprintf("%s_%d", name, count+1)
}

// enumValues maps the declared SQL value list to exposed enum values in
// declaration order.
func enumValues(sqlValues []string) []EnumValue {
	used := make(map[string]int, len(sqlValues))
	values := make([]EnumValue, 0, len(sqlValues))
	for _, v := range sqlValues {
		name := uniqueEnumValueName(normalizeEnumValueName(v), used)
		values = append(values, EnumValue{Name: name, Value: v})
	}
	return values
}
