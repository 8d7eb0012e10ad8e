package sqlmeta

import (
	"context"
	"log/slog"
	"strings"
)

// buildRelationships creates bidirectional relationship metadata from foreign
// keys. Field names are assigned later by the naming pass; discovery only
// records the structural mapping.
func buildRelationships(ctx context.Context, schema *Schema) error {
	_, span := startSpan(ctx, "sqlmeta.build_relationships")
	defer span.End()

	// Emit each unsupported composite warning once per schema build.
	warnedComposite := make(map[string]struct{})
	warnCompositeSkip := func(kind, tableName, constraintName string, localCols []string, remoteTable string, remoteCols []string, reason string) {
		key := strings.Join([]string{
			kind,
			tableName,
			constraintName,
			strings.Join(localCols, ","),
			remoteTable,
			strings.Join(remoteCols, ","),
			reason,
		}, "|")
		if _, seen := warnedComposite[key]; seen {
			return
		}
		warnedComposite[key] = struct{}{}
		slog.Default().Warn("skipping unsupported relationship mapping",
			"kind", kind,
			"table", tableName,
			"constraint", constraintName,
			"local_columns", localCols,
			"remote_table", remoteTable,
			"remote_columns", remoteCols,
			"reason", reason,
		)
	}

	// Count FKs per (source_table, target_table) pair. When multiple FK
	// constraints from the same table point to the same target, reverse
	// field naming must disambiguate by FK column.
	fkCount := make(map[string]map[string]int) // source → target → count
	for _, table := range schema.Tables {
		if table.IsView {
			continue
		}
		for _, fk := range ForeignKeyConstraints(table) {
			if fkCount[table.Name] == nil {
				fkCount[table.Name] = make(map[string]int)
			}
			fkCount[table.Name][fk.ReferencedTable]++
		}
	}

	// First pass: many-to-one relationships from FK constraints.
	for i := range schema.Tables {
		table := &schema.Tables[i]
		if table.IsView {
			continue
		}

		for _, fk := range ForeignKeyConstraints(*table) {
			if len(fk.ColumnNames) == 0 || len(fk.ColumnNames) != len(fk.ReferencedColumns) {
				warnCompositeSkip("many_to_one", table.Name, fk.ConstraintName, fk.ColumnNames, fk.ReferencedTable, fk.ReferencedColumns, "invalid_foreign_key_mapping")
				continue
			}
			table.Relationships = append(table.Relationships, Relationship{
				IsManyToOne:    true,
				LocalColumns:   append([]string(nil), fk.ColumnNames...),
				RemoteTable:    fk.ReferencedTable,
				RemoteColumns:  append([]string(nil), fk.ReferencedColumns...),
				ConstraintName: fk.ConstraintName,
			})
		}
	}

	// Second pass: one-to-many relationships (reverse direction).
	for i := range schema.Tables {
		table := &schema.Tables[i]
		if table.IsView {
			continue
		}

		for j := range schema.Tables {
			otherTable := &schema.Tables[j]
			if otherTable.IsView {
				continue
			}

			for _, fk := range ForeignKeyConstraints(*otherTable) {
				if fk.ReferencedTable != table.Name {
					continue
				}
				if len(fk.ColumnNames) == 0 || len(fk.ColumnNames) != len(fk.ReferencedColumns) {
					warnCompositeSkip("one_to_many", otherTable.Name, fk.ConstraintName, fk.ColumnNames, table.Name, fk.ReferencedColumns, "invalid_foreign_key_mapping")
					continue
				}
				table.Relationships = append(table.Relationships, Relationship{
					IsOneToMany:    true,
					LocalColumns:   append([]string(nil), fk.ReferencedColumns...),
					RemoteTable:    otherTable.Name,
					RemoteColumns:  append([]string(nil), fk.ColumnNames...),
					ConstraintName: fk.ConstraintName,
					SoleReference:  fkCount[otherTable.Name][table.Name] == 1,
				})
			}
		}
	}

	return nil
}

// RebuildRelationships clears and rebuilds relationship metadata for a schema.
// Callers that filter tables or columns must rebuild so relationships never
// reference erased metadata; the naming pass runs afterwards.
func RebuildRelationships(schema *Schema) error {
	if schema == nil {
		return nil
	}
	for i := range schema.Tables {
		schema.Tables[i].Relationships = nil
	}
	return buildRelationships(context.Background(), schema)
}
