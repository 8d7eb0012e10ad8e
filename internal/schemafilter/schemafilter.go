// Package schemafilter prunes schema snapshots down to the tables and
// columns the operator chose to expose.
package schemafilter

import (
	"path"
	"strings"

	"mysql-graphql/internal/sqlmeta"
)

// Config controls allow/deny filters for tables and columns.
type Config struct {
	AllowTables  []string            `mapstructure:"allow_tables"`
	DenyTables   []string            `mapstructure:"deny_tables"`
	ScanViews    bool                `mapstructure:"scan_views"`
	AllowColumns map[string][]string `mapstructure:"allow_columns"`
	DenyColumns  map[string][]string `mapstructure:"deny_columns"`
}

// Apply filters tables, columns, indexes, and relationships in place.
// Missing allow lists default to allow-all; deny rules always win.
func Apply(schema *sqlmeta.Schema, cfg Config) {
	if schema == nil {
		return
	}

	f := &filterState{
		cfg:            cfg,
		columnsByTable: map[string]map[string]bool{},
	}

	kept := make([]sqlmeta.Table, 0, len(schema.Tables))
	for _, table := range schema.Tables {
		if table.IsView && !cfg.ScanViews {
			continue
		}
		if !f.keepTable(table.Name) {
			continue
		}
		table.Columns = f.keepColumns(table.Name, table.Columns)
		if len(table.Columns) == 0 {
			continue
		}
		kept = append(kept, table)
	}

	// Index and key pruning needs the allowed-column sets of every table,
	// so it runs after all columns are settled.
	for i := range kept {
		table := &kept[i]
		allowed := f.columnsByTable[table.Name]
		table.Indexes = keepIndexes(table.Indexes, allowed)
		table.ForeignKeys = f.keepForeignKeys(table.ForeignKeys, allowed)
		table.Relationships = nil
	}

	schema.Tables = kept
	if len(kept) > 0 {
		_ = sqlmeta.RebuildRelationships(schema)
	}
}

type filterState struct {
	cfg Config

	// columnsByTable records the surviving columns of every table that
	// passed the table filter, including tables later dropped for having
	// none. Foreign key pruning consults it for the remote side.
	columnsByTable map[string]map[string]bool
}

func (f *filterState) keepTable(name string) bool {
	if matchesAny(name, f.cfg.DenyTables) {
		return false
	}
	return len(f.cfg.AllowTables) == 0 || matchesAny(name, f.cfg.AllowTables)
}

func (f *filterState) keepColumns(table string, columns []sqlmeta.Column) []sqlmeta.Column {
	allowed := make(map[string]bool, len(columns))
	kept := make([]sqlmeta.Column, 0, len(columns))
	for _, column := range columns {
		if !f.keepColumn(table, column.Name) {
			continue
		}
		kept = append(kept, column)
		allowed[column.Name] = true
	}
	f.columnsByTable[table] = allowed
	return kept
}

func (f *filterState) keepColumn(table, column string) bool {
	if matchesAny(column, tablePatterns(f.cfg.DenyColumns, table)) {
		return false
	}
	allow := tablePatterns(f.cfg.AllowColumns, table)
	return len(allow) == 0 || matchesAny(column, allow)
}

func (f *filterState) keepForeignKeys(fks []sqlmeta.ForeignKey, allowed map[string]bool) []sqlmeta.ForeignKey {
	kept := make([]sqlmeta.ForeignKey, 0, len(fks))
	for _, fk := range fks {
		if !allowed[fk.ColumnName] {
			continue
		}
		if !f.columnsByTable[fk.ReferencedTable][fk.ReferencedColumn] {
			continue
		}
		kept = append(kept, fk)
	}
	return kept
}

func keepIndexes(indexes []sqlmeta.Index, allowed map[string]bool) []sqlmeta.Index {
	kept := make([]sqlmeta.Index, 0, len(indexes))
	for _, index := range indexes {
		if columnsCovered(index.Columns, allowed) {
			kept = append(kept, index)
		}
	}
	return kept
}

func columnsCovered(columns []string, allowed map[string]bool) bool {
	for _, column := range columns {
		if !allowed[column] {
			return false
		}
	}
	return true
}

// tablePatterns combines the wildcard "*" entry with the table's own.
func tablePatterns(patterns map[string][]string, table string) []string {
	if len(patterns) == 0 {
		return nil
	}
	return append(append([]string(nil), patterns["*"]...), patterns[table]...)
}

// matchesAny reports whether any glob pattern matches, case-insensitively.
// Malformed patterns never match.
func matchesAny(value string, patterns []string) bool {
	value = strings.ToLower(value)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if ok, err := path.Match(strings.ToLower(pattern), value); err == nil && ok {
			return true
		}
	}
	return false
}
