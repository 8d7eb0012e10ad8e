package sqlmeta

// PrimaryKeyColumn returns the first primary key column for a table, if present.
// For tables with composite primary keys, use PrimaryKeyColumns instead.
func PrimaryKeyColumn(table Table) *Column {
	for i := range table.Columns {
		if table.Columns[i].IsPrimaryKey {
			return &table.Columns[i]
		}
	}
	return nil
}

// PrimaryKeyColumns returns all primary key columns for a table in column order.
// Returns an empty slice if the table has no primary key.
func PrimaryKeyColumns(table Table) []Column {
	var cols []Column
	for _, col := range table.Columns {
		if col.IsPrimaryKey {
			cols = append(cols, col)
		}
	}
	return cols
}

// KeyColumns returns the identity columns used for cursors and node IDs:
// the declared primary key when present, otherwise the narrowest not-null
// unique index. A nil result means the table has no stable row identity and
// cannot be exposed.
func KeyColumns(table Table) []Column {
	if cols := PrimaryKeyColumns(table); len(cols) > 0 {
		return cols
	}
	return UniqueKeyColumns(table)
}

// UniqueKeyColumns returns the columns of the narrowest unique index when the
// table has no declared primary key. Views and keyless tables cannot be
// paginated without a stable row identity, so the catalog falls back to a
// unique index before giving up.
func UniqueKeyColumns(table Table) []Column {
	var best []string
	for _, idx := range table.Indexes {
		if !idx.Unique || len(idx.Columns) == 0 {
			continue
		}
		if nullableIndex(table, idx) {
			continue
		}
		if best == nil || len(idx.Columns) < len(best) {
			best = idx.Columns
		}
	}
	if best == nil {
		return nil
	}
	byName := make(map[string]Column, len(table.Columns))
	for _, col := range table.Columns {
		byName[col.Name] = col
	}
	cols := make([]Column, 0, len(best))
	for _, name := range best {
		col, ok := byName[name]
		if !ok {
			return nil
		}
		cols = append(cols, col)
	}
	return cols
}

// nullableIndex reports whether any column of the index is nullable. A
// nullable unique index admits duplicate NULL rows and cannot serve as row
// identity.
func nullableIndex(table Table, idx Index) bool {
	for _, name := range idx.Columns {
		for _, col := range table.Columns {
			if col.Name == name && col.IsNullable {
				return true
			}
		}
	}
	return false
}
