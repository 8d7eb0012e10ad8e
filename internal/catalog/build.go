package catalog

import (
	"fmt"
	"sort"

	"mysql-graphql/internal/naming"
	"mysql-graphql/internal/schemanaming"
	"mysql-graphql/internal/sqlmeta"
)

// Visibility answers whether the active role can see a table or column.
// *authz.SelectPrivileges implements it; nil means everything is visible.
type Visibility interface {
	AllowsTable(table string) bool
	AllowsColumn(table, column string) bool
}

type allVisible struct{}

func (allVisible) AllowsTable(string) bool          { return true }
func (allVisible) AllowsColumn(string, string) bool { return true }

type boundEntity struct {
	entity *Entity
	table  *sqlmeta.Table
}

type builder struct {
	namer *naming.Namer
	vis   Visibility
	cat   *Catalog
}

// Build derives a catalog from discovered metadata. The result is
// deterministic: identical input produces an identical catalog. Invisible
// tables and columns leave no trace in the output, not even as naming
// collisions. Naming is applied to the schema first if it has not been yet;
// a nil namer uses the default naming rules.
func Build(meta *sqlmeta.Schema, vis Visibility, namer *naming.Namer) (*Catalog, error) {
	if meta == nil {
		return nil, fmt.Errorf("cannot build catalog from nil schema")
	}
	if namer == nil {
		namer = naming.Default()
	}
	if !meta.NamesApplied {
		schemanaming.Apply(meta, namer)
	}
	if vis == nil {
		vis = allVisible{}
	}

	b := &builder{
		namer: namer,
		vis:   vis,
		cat:   &Catalog{types: make(map[string]*Type)},
	}

	if err := b.addBuiltins(); err != nil {
		return nil, err
	}

	bound, err := b.selectEntities(meta)
	if err != nil {
		return nil, err
	}
	byTable := make(map[string]boundEntity, len(bound))
	for _, be := range bound {
		b.cat.entities = append(b.cat.entities, be.entity)
		byTable[be.entity.Table] = be
	}

	for _, be := range bound {
		if err := b.addEntityTypes(be, byTable); err != nil {
			return nil, err
		}
	}

	if err := b.addQueryType(); err != nil {
		return nil, err
	}

	b.cat.typeNames = make([]string, 0, len(b.cat.types))
	for name := range b.cat.types {
		b.cat.typeNames = append(b.cat.typeNames, name)
	}
	sort.Strings(b.cat.typeNames)

	return b.cat, nil
}

func (b *builder) register(t *Type) error {
	if _, exists := b.cat.types[t.Name]; exists {
		return fmt.Errorf("duplicate type name %q", t.Name)
	}
	b.cat.types[t.Name] = t
	return nil
}

// selectEntities decides which tables surface as entities: the table must be
// visible, must have identity columns, and every identity column must be
// visible. Entity columns keep table order but drop invisible ones.
func (b *builder) selectEntities(meta *sqlmeta.Schema) ([]boundEntity, error) {
	var bound []boundEntity
	for i := range meta.Tables {
		table := &meta.Tables[i]
		if !b.vis.AllowsTable(table.Name) {
			continue
		}
		keyCols := sqlmeta.KeyColumns(*table)
		if len(keyCols) == 0 {
			continue
		}
		keysVisible := true
		for _, col := range keyCols {
			if !b.vis.AllowsColumn(table.Name, col.Name) {
				keysVisible = false
				break
			}
		}
		if !keysVisible {
			continue
		}
		var visible []sqlmeta.Column
		for _, col := range table.Columns {
			if b.vis.AllowsColumn(table.Name, col.Name) {
				visible = append(visible, col)
			}
		}
		if len(visible) == 0 {
			continue
		}
		if table.GraphQLTypeName == "" || table.GraphQLCollectionFieldName == "" || table.GraphQLEntityFieldName == "" {
			return nil, fmt.Errorf("table %s has no resolved GraphQL names", table.Name)
		}
		bound = append(bound, boundEntity{
			entity: &Entity{
				Table:          table.Name,
				TypeName:       table.GraphQLTypeName,
				CollectionName: table.GraphQLCollectionFieldName,
				EntityName:     table.GraphQLEntityFieldName,
				KeyColumns:     keyCols,
				Columns:        visible,
			},
			table: table,
		})
	}
	return bound, nil
}

func (b *builder) addEntityTypes(be boundEntity, byTable map[string]boundEntity) error {
	e := be.entity

	for i := range e.Columns {
		col := &e.Columns[i]
		if len(col.EnumValues) == 0 {
			continue
		}
		enumName := b.namer.EnumTypeName(e.TypeName, col.Name)
		if err := b.register(&Type{
			Kind:       KindEnum,
			Name:       enumName,
			EnumValues: enumValues(col.EnumValues),
			Entity:     e,
		}); err != nil {
			return err
		}
		if err := b.register(enumFilterInput(enumName, e)); err != nil {
			return err
		}
	}

	if err := b.register(b.objectType(be, byTable)); err != nil {
		return err
	}
	if err := b.register(b.edgeType(e)); err != nil {
		return err
	}
	if err := b.register(b.connectionType(e)); err != nil {
		return err
	}
	if t := b.filterInput(e); t != nil {
		if err := b.register(t); err != nil {
			return err
		}
	}
	if t := b.orderByInput(e); t != nil {
		if err := b.register(t); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) objectType(be boundEntity, byTable map[string]boundEntity) *Type {
	e := be.entity
	fields := []Field{
		typenameField(),
		{Name: "nodeId", Class: ClassNodeID, Type: NonNull("ID")},
	}

	for i := range e.Columns {
		col := &e.Columns[i]
		fields = append(fields, Field{
			Name:        col.GraphQLFieldName,
			Class:       ClassColumn,
			Type:        b.columnTypeRef(e.TypeName, *col),
			Description: col.Comment,
			Column:      col,
		})
	}

	for _, rel := range be.table.Relationships {
		remote, ok := byTable[rel.RemoteTable]
		if !ok || rel.GraphQLFieldName == "" {
			continue
		}
		if !columnsPresent(e, rel.LocalColumns) || !columnsPresent(remote.entity, rel.RemoteColumns) {
			continue
		}
		join := &Join{
			LocalColumns:  rel.LocalColumns,
			RemoteColumns: rel.RemoteColumns,
			RemoteType:    remote.entity.TypeName,
		}
		switch {
		case rel.IsManyToOne:
			// Stays nullable even over a NOT NULL FK: the referenced row
			// can be invisible to the active role.
			fields = append(fields, Field{
				Name:  rel.GraphQLFieldName,
				Class: ClassManyToOne,
				Type:  Named(remote.entity.TypeName),
				Join:  join,
			})
		case rel.IsOneToMany:
			fields = append(fields, Field{
				Name:  rel.GraphQLFieldName,
				Class: ClassOneToMany,
				Type:  NonNull(b.namer.ConnectionTypeName(remote.entity.TypeName)),
				Args:  b.connectionArgs(remote.entity),
				Join:  join,
			})
		}
	}

	return &Type{
		Kind:        KindObject,
		Name:        e.TypeName,
		Description: be.table.Comment,
		Fields:      fields,
		Entity:      e,
	}
}

func (b *builder) edgeType(e *Entity) *Type {
	return &Type{
		Kind:   KindEdge,
		Name:   b.namer.EdgeTypeName(e.TypeName),
		Entity: e,
		Fields: []Field{
			typenameField(),
			{Name: "cursor", Class: ClassEdgeCursor, Type: NonNull("String")},
			{Name: "node", Class: ClassEdgeNode, Type: NonNull(e.TypeName)},
		},
	}
}

func (b *builder) connectionType(e *Entity) *Type {
	return &Type{
		Kind:   KindConnection,
		Name:   b.namer.ConnectionTypeName(e.TypeName),
		Entity: e,
		Fields: []Field{
			typenameField(),
			{Name: "edges", Class: ClassEdges, Type: ListOf(b.namer.EdgeTypeName(e.TypeName), true)},
			{Name: "pageInfo", Class: ClassPageInfo, Type: NonNull("PageInfo")},
			{Name: "totalCount", Class: ClassTotalCount, Type: NonNull("Int")},
		},
	}
}

func (b *builder) filterInput(e *Entity) *Type {
	var fields []Arg
	for _, col := range e.Columns {
		if !sqlmeta.EffectiveType(col).Filterable() {
			continue
		}
		fields = append(fields, Arg{
			Name: col.GraphQLFieldName,
			Type: Named(b.columnFilterTypeName(e.TypeName, col)),
		})
	}
	if len(fields) == 0 {
		return nil
	}
	return &Type{
		Kind:        KindInput,
		Name:        b.namer.FilterTypeName(e.TypeName),
		InputFields: fields,
		Entity:      e,
	}
}

func (b *builder) orderByInput(e *Entity) *Type {
	var fields []Arg
	for _, col := range e.Columns {
		if !sqlmeta.EffectiveType(col).Orderable() {
			continue
		}
		fields = append(fields, Arg{
			Name: col.GraphQLFieldName,
			Type: Named("OrderDirection"),
		})
	}
	if len(fields) == 0 {
		return nil
	}
	return &Type{
		Kind:        KindInput,
		Name:        b.namer.OrderByTypeName(e.TypeName),
		InputFields: fields,
		Entity:      e,
	}
}

func (b *builder) connectionArgs(e *Entity) []Arg {
	args := []Arg{
		{Name: "first", Type: Named("Int")},
		{Name: "last", Type: Named("Int")},
		{Name: "before", Type: Named("String")},
		{Name: "after", Type: Named("String")},
	}
	if b.entityHasFilter(e) {
		args = append(args, Arg{Name: "filter", Type: Named(b.namer.FilterTypeName(e.TypeName))})
	}
	if b.entityHasOrderBy(e) {
		args = append(args, Arg{Name: "orderBy", Type: ListOf(b.namer.OrderByTypeName(e.TypeName), false)})
	}
	return args
}

func (b *builder) entityHasFilter(e *Entity) bool {
	for _, col := range e.Columns {
		if sqlmeta.EffectiveType(col).Filterable() {
			return true
		}
	}
	return false
}

func (b *builder) entityHasOrderBy(e *Entity) bool {
	for _, col := range e.Columns {
		if sqlmeta.EffectiveType(col).Orderable() {
			return true
		}
	}
	return false
}

func (b *builder) columnTypeRef(typeName string, col sqlmeta.Column) TypeRef {
	var name string
	if len(col.EnumValues) > 0 {
		name = b.namer.EnumTypeName(typeName, col.Name)
	} else {
		name = sqlmeta.EffectiveType(col).String()
	}
	if col.IsNullable {
		return Named(name)
	}
	return NonNull(name)
}

func (b *builder) columnFilterTypeName(typeName string, col sqlmeta.Column) string {
	if len(col.EnumValues) > 0 {
		return b.namer.EnumTypeName(typeName, col.Name) + "Filter"
	}
	return sqlmeta.EffectiveType(col).FilterTypeName()
}

func (b *builder) addQueryType() error {
	fields := []Field{typenameField()}
	for _, e := range b.cat.entities {
		fields = append(fields, Field{
			Name:  e.CollectionName,
			Class: ClassRootConnection,
			Type:  NonNull(b.namer.ConnectionTypeName(e.TypeName)),
			Args:  b.connectionArgs(e),
		})
		fields = append(fields, Field{
			Name:  e.EntityName,
			Class: ClassRootNode,
			Type:  Named(e.TypeName),
			Args:  []Arg{{Name: "nodeId", Type: NonNull("ID")}},
		})
	}
	qt := &Type{
		Kind:   KindQuery,
		Name:   "Query",
		Fields: fields,
	}
	if err := b.register(qt); err != nil {
		return err
	}
	b.cat.query = qt
	return nil
}

var builtinScalars = []struct {
	name string
	desc string
}{
	{"Int", "32-bit signed integer."},
	{"Float", "Double-precision floating point number."},
	{"String", "UTF-8 character sequence."},
	{"Boolean", "true or false."},
	{"ID", "Opaque identifier, serialized as a string."},
	{"BigInt", "64-bit integer, serialized as a string to avoid precision loss."},
	{"Decimal", "Fixed-point number, serialized as a string."},
	{"Date", "Calendar date in YYYY-MM-DD form."},
	{"Datetime", "Timestamp in YYYY-MM-DD HH:MM:SS[.ffffff] form."},
	{"Time", "Time of day in HH:MM:SS[.ffffff] form."},
	{"JSON", "Arbitrary JSON value."},
	{"UUID", "UUID in canonical lowercase text form."},
	{"Base64Bytes", "Binary value, serialized as base64 text."},
}

// scalarFilters lists the scalars that get a shared comparison input type.
// JSON and Base64Bytes have no comparison contract and are excluded.
var scalarFilters = []string{
	"Int", "BigInt", "Float", "Decimal", "String", "Boolean",
	"Date", "Datetime", "Time", "UUID",
}

func (b *builder) addBuiltins() error {
	for _, s := range builtinScalars {
		if err := b.register(&Type{Kind: KindScalar, Name: s.name, Description: s.desc}); err != nil {
			return err
		}
	}

	if err := b.register(&Type{
		Kind: KindEnum,
		Name: "OrderDirection",
		EnumValues: []EnumValue{
			{Name: "ASC", Value: "ASC"},
			{Name: "DESC", Value: "DESC"},
		},
	}); err != nil {
		return err
	}

	if err := b.register(&Type{
		Kind: KindPageInfo,
		Name: "PageInfo",
		Fields: []Field{
			typenameField(),
			{Name: "hasNextPage", Class: ClassPageInfoFlag, Type: NonNull("Boolean")},
			{Name: "hasPreviousPage", Class: ClassPageInfoFlag, Type: NonNull("Boolean")},
			{Name: "startCursor", Class: ClassPageInfoCursor, Type: Named("String")},
			{Name: "endCursor", Class: ClassPageInfoCursor, Type: Named("String")},
		},
	}); err != nil {
		return err
	}

	for _, scalar := range scalarFilters {
		if err := b.register(scalarFilterInput(scalar)); err != nil {
			return err
		}
	}
	return nil
}

func scalarFilterInput(scalar string) *Type {
	fields := []Arg{
		{Name: "eq", Type: Named(scalar)},
		{Name: "neq", Type: Named(scalar)},
	}
	if scalar != "Boolean" {
		fields = append(fields,
			Arg{Name: "gt", Type: Named(scalar)},
			Arg{Name: "gte", Type: Named(scalar)},
			Arg{Name: "lt", Type: Named(scalar)},
			Arg{Name: "lte", Type: Named(scalar)},
			Arg{Name: "in", Type: ListOf(scalar, false)},
		)
	}
	if scalar == "String" {
		fields = append(fields, Arg{Name: "like", Type: Named("String")})
	}
	fields = append(fields, Arg{Name: "isNull", Type: Named("Boolean")})
	return &Type{
		Kind:        KindInput,
		Name:        scalar + "Filter",
		InputFields: fields,
	}
}

func enumFilterInput(enumName string, e *Entity) *Type {
	return &Type{
		Kind:   KindInput,
		Name:   enumName + "Filter",
		Entity: e,
		InputFields: []Arg{
			{Name: "eq", Type: Named(enumName)},
			{Name: "neq", Type: Named(enumName)},
			{Name: "in", Type: ListOf(enumName, false)},
			{Name: "isNull", Type: Named("Boolean")},
		},
	}
}

func typenameField() Field {
	return Field{Name: "__typename", Class: ClassTypename, Type: NonNull("String")}
}

func columnsPresent(e *Entity, names []string) bool {
	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		if _, ok := e.Column(name); !ok {
			return false
		}
	}
	return true
}
