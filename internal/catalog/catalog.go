// Package catalog derives the GraphQL type system from discovered relational
// metadata. A Catalog is an immutable snapshot: the compiler and the
// introspection resolver read one snapshot per request and never mutate it.
// Schema changes produce a whole new catalog that the refresher swaps in
// atomically.
package catalog

import (
	"fmt"
	"time"

	"mysql-graphql/internal/sqlmeta"
)

// Kind classifies every type the catalog can hold. The set is closed:
// consumers switch exhaustively and treat an unrecognized kind as a
// programming error, never as a silent fallthrough.
type Kind int

const (
	KindScalar Kind = iota
	KindObject
	KindEdge
	KindConnection
	KindEnum
	KindInput
	KindPageInfo
	KindQuery
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "Scalar"
	case KindObject:
		return "Object"
	case KindEdge:
		return "Edge"
	case KindConnection:
		return "Connection"
	case KindEnum:
		return "Enum"
	case KindInput:
		return "Input"
	case KindPageInfo:
		return "PageInfo"
	case KindQuery:
		return "Query"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ObjectLike reports whether the kind carries selectable fields.
func (k Kind) ObjectLike() bool {
	switch k {
	case KindObject, KindEdge, KindConnection, KindPageInfo, KindQuery:
		return true
	default:
		return false
	}
}

// FieldClass tells the compiler what a selected field compiles to. Like
// Kind, the set is closed and switched exhaustively.
type FieldClass int

const (
	// ClassColumn is a field backed by a table column.
	ClassColumn FieldClass = iota
	// ClassNodeID is the generated nodeId identity field.
	ClassNodeID
	// ClassTypename is the __typename meta field (hidden from introspection).
	ClassTypename
	// ClassManyToOne is a forward FK field returning a single object.
	ClassManyToOne
	// ClassOneToMany is a reverse FK field returning a connection.
	ClassOneToMany
	// ClassRootConnection is a root collection field (allAccounts).
	ClassRootConnection
	// ClassRootNode is a root single-row lookup field (account(nodeId:)).
	ClassRootNode
	// ClassEdges is the edges field of a connection.
	ClassEdges
	// ClassEdgeNode is the node field of an edge.
	ClassEdgeNode
	// ClassEdgeCursor is the cursor field of an edge.
	ClassEdgeCursor
	// ClassPageInfo is the pageInfo field of a connection.
	ClassPageInfo
	// ClassPageInfoFlag is hasNextPage / hasPreviousPage.
	ClassPageInfoFlag
	// ClassPageInfoCursor is startCursor / endCursor.
	ClassPageInfoCursor
	// ClassTotalCount is the totalCount field of a connection.
	ClassTotalCount
)

// TypeRef names a type together with its wrapping flags. Introspection
// unwraps the flags into the NON_NULL/LIST ofType chain; the compiler reads
// them directly.
type TypeRef struct {
	Name string
	// NonNull is the outermost wrapper.
	NonNull bool
	List    bool
	// ElemNonNull applies inside the list wrapper.
	ElemNonNull bool
}

// Named returns a nullable reference to a named type.
func Named(name string) TypeRef {
	return TypeRef{Name: name}
}

// NonNull returns a non-null reference to a named type.
func NonNull(name string) TypeRef {
	return TypeRef{Name: name, NonNull: true}
}

// ListOf returns a [T!]-shaped reference; nonNull adds the outer !.
func ListOf(name string, nonNull bool) TypeRef {
	return TypeRef{Name: name, NonNull: nonNull, List: true, ElemNonNull: true}
}

// String renders the reference in GraphQL notation, e.g. "[AccountEdge!]!".
func (r TypeRef) String() string {
	s := r.Name
	if r.List {
		if r.ElemNonNull {
			s += "!"
		}
		s = "[" + s + "]"
	}
	if r.NonNull {
		s += "!"
	}
	return s
}

// Arg describes a field argument or an input object field.
type Arg struct {
	Name        string
	Type        TypeRef
	Description string
}

// EnumValue pairs the exposed GraphQL enum value name with the SQL value it
// stands for.
type EnumValue struct {
	Name  string
	Value string
}

// Join carries the column equality that connects a relationship field to its
// remote entity. LocalColumns[i] joins to RemoteColumns[i].
type Join struct {
	LocalColumns  []string
	RemoteColumns []string
	RemoteType    string
}

// Field is one selectable field of an object-like type.
type Field struct {
	Name        string
	Class       FieldClass
	Type        TypeRef
	Args        []Arg
	Description string
	// Column backs ClassColumn fields.
	Column *sqlmeta.Column
	// Join backs relationship fields.
	Join *Join
}

// Arg returns the named argument.
func (f *Field) Arg(name string) (*Arg, bool) {
	for i := range f.Args {
		if f.Args[i].Name == name {
			return &f.Args[i], true
		}
	}
	return nil, false
}

// Entity is the catalog's view of one exposed table: its resolved names,
// identity columns, and the columns the current role can see.
type Entity struct {
	Table          string
	TypeName       string
	CollectionName string
	EntityName     string
	// KeyColumns are the cursor/nodeId identity columns in key order.
	KeyColumns []sqlmeta.Column
	// Columns are the visible columns in table order.
	Columns []sqlmeta.Column
}

// Column returns the visible column with the given SQL name.
func (e *Entity) Column(name string) (*sqlmeta.Column, bool) {
	for i := range e.Columns {
		if e.Columns[i].Name == name {
			return &e.Columns[i], true
		}
	}
	return nil, false
}

// Type is one named type of the catalog.
type Type struct {
	Kind        Kind
	Name        string
	Description string
	// Fields holds the selectable fields of object-like kinds.
	Fields []Field
	// InputFields holds the fields of KindInput types.
	InputFields []Arg
	// EnumValues holds the values of KindEnum types.
	EnumValues []EnumValue
	// Entity links entity-derived types back to their table. Nil for
	// builtins (scalars, PageInfo, Query, shared filter inputs).
	Entity *Entity
}

// Field returns the named field of an object-like type.
func (t *Type) Field(name string) (*Field, bool) {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i], true
		}
	}
	return nil, false
}

// InputField returns the named input field of a KindInput type.
func (t *Type) InputField(name string) (*Arg, bool) {
	for i := range t.InputFields {
		if t.InputFields[i].Name == name {
			return &t.InputFields[i], true
		}
	}
	return nil, false
}

// EnumValueByName returns the enum value with the given exposed name.
func (t *Type) EnumValueByName(name string) (*EnumValue, bool) {
	for i := range t.EnumValues {
		if t.EnumValues[i].Name == name {
			return &t.EnumValues[i], true
		}
	}
	return nil, false
}

// Catalog is one immutable snapshot of the exposed type system.
type Catalog struct {
	// Version increases monotonically with every rebuild; Fingerprint is
	// the structural hash of the metadata that produced this snapshot.
	// Both are stamped by the refresher before the snapshot is published.
	Version     uint64
	Fingerprint string
	// Role names the database role this catalog was built for; empty when
	// role scoping is disabled.
	Role    string
	BuiltAt time.Time

	types     map[string]*Type
	typeNames []string
	entities  []*Entity
	query     *Type
}

// Type returns the named type.
func (c *Catalog) Type(name string) (*Type, bool) {
	t, ok := c.types[name]
	return t, ok
}

// QueryType returns the root query type.
func (c *Catalog) QueryType() *Type {
	return c.query
}

// TypeNames returns all type names in sorted order. The slice is shared;
// callers must not modify it.
func (c *Catalog) TypeNames() []string {
	return c.typeNames
}

// Entities returns the exposed entities in build order.
func (c *Catalog) Entities() []*Entity {
	return c.entities
}

// EntityByType returns the entity whose object type has the given name.
func (c *Catalog) EntityByType(typeName string) (*Entity, bool) {
	t, ok := c.types[typeName]
	if !ok || t.Entity == nil || t.Kind != KindObject {
		return nil, false
	}
	return t.Entity, true
}
