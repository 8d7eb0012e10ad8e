// Package naming provides centralized naming logic for converting SQL schema
// names to GraphQL schema names, including pluralization, collision detection,
// and reserved word handling.
package naming

// Config holds naming customization options.
type Config struct {
	// PluralOverrides maps singular -> custom plural,
	// e.g. {"person": "people", "status": "statuses"}.
	PluralOverrides map[string]string `mapstructure:"plural_overrides"`

	// SingularOverrides maps plural -> custom singular,
	// e.g. {"people": "person", "data": "datum"}.
	SingularOverrides map[string]string `mapstructure:"singular_overrides"`

	// TypeOverrides maps SQL table name -> GraphQL type name, bypassing the
	// derived PascalCase name entirely. Overrides are validated at config
	// load time (PascalCase, no built-in type names).
	TypeOverrides map[string]string `mapstructure:"type_overrides"`
}

// DefaultConfig returns a Config with no overrides.
func DefaultConfig() Config {
	return Config{
		PluralOverrides:   map[string]string{},
		SingularOverrides: map[string]string{},
		TypeOverrides:     map[string]string{},
	}
}
