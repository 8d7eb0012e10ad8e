package introspect

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"mysql-graphql/internal/catalog"
	"mysql-graphql/internal/scalars"
)

// builder translates one catalog snapshot into an executable graphql-go
// schema. The schema carries no resolve functions for data fields; it exists
// only so the stock introspection machinery can answer meta queries with the
// exact type surface the compiler accepts.
type builder struct {
	cat   *catalog.Catalog
	types map[string]graphql.Type
	err   error
}

func buildSchema(cat *catalog.Catalog) (graphql.Schema, error) {
	b := &builder{
		cat:   cat,
		types: make(map[string]graphql.Type, len(cat.TypeNames())),
	}

	var inputs []*catalog.Type
	var objects []*catalog.Type
	for _, name := range cat.TypeNames() {
		t, _ := cat.Type(name)
		switch t.Kind {
		case catalog.KindScalar:
			st := scalarForName(name)
			if st == nil {
				return graphql.Schema{}, fmt.Errorf("unknown scalar type '%s'", name)
			}
			b.types[name] = st
		case catalog.KindEnum:
			b.types[name] = b.enumType(t)
		case catalog.KindInput:
			inputs = append(inputs, t)
		default:
			objects = append(objects, t)
		}
	}

	if err := b.addInputTypes(inputs); err != nil {
		return graphql.Schema{}, err
	}
	for _, t := range objects {
		b.types[t.Name] = b.objectShell(t)
	}

	qt := cat.QueryType()
	if qt == nil {
		return graphql.Schema{}, fmt.Errorf("catalog has no query type")
	}
	query, ok := b.types[qt.Name].(*graphql.Object)
	if !ok {
		return graphql.Schema{}, fmt.Errorf("query type '%s' is not an object", qt.Name)
	}

	all := make([]graphql.Type, 0, len(b.types))
	for _, name := range cat.TypeNames() {
		all = append(all, b.types[name])
	}

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: query,
		Types: all,
	})
	if err != nil {
		return graphql.Schema{}, err
	}
	if b.err != nil {
		return graphql.Schema{}, b.err
	}
	return schema, nil
}

// scalarForName maps catalog scalar names onto graphql-go types. The five
// standard scalars use the stock definitions; the rest come from the scalars
// package.
func scalarForName(name string) graphql.Type {
	switch name {
	case "Int":
		return graphql.Int
	case "Float":
		return graphql.Float
	case "String":
		return graphql.String
	case "Boolean":
		return graphql.Boolean
	case "ID":
		return graphql.ID
	case "BigInt":
		return scalars.BigInt()
	case "Decimal":
		return scalars.Decimal()
	case "Date":
		return scalars.Date()
	case "Datetime":
		return scalars.Datetime()
	case "Time":
		return scalars.Time()
	case "JSON":
		return scalars.JSON()
	case "UUID":
		return scalars.UUID()
	case "Base64Bytes":
		return scalars.Base64Bytes()
	default:
		return nil
	}
}

func (b *builder) enumType(t *catalog.Type) *graphql.Enum {
	values := graphql.EnumValueConfigMap{}
	for _, ev := range t.EnumValues {
		values[ev.Name] = &graphql.EnumValueConfig{Value: ev.Value}
	}
	return graphql.NewEnum(graphql.EnumConfig{
		Name:        t.Name,
		Description: t.Description,
		Values:      values,
	})
}

// addInputTypes registers input objects in dependency order. Filter inputs
// reference scalar and enum filter inputs, which reference only scalars and
// enums, so a few rounds always settle; a round without progress means the
// catalog holds an input cycle it should never produce.
func (b *builder) addInputTypes(pending []*catalog.Type) error {
	for len(pending) > 0 {
		var next []*catalog.Type
		for _, t := range pending {
			if !b.inputDepsReady(t) {
				next = append(next, t)
				continue
			}
			fields := graphql.InputObjectConfigFieldMap{}
			for i := range t.InputFields {
				a := &t.InputFields[i]
				fields[a.Name] = &graphql.InputObjectFieldConfig{
					Type:        b.typeRef(a.Type),
					Description: a.Description,
				}
			}
			b.types[t.Name] = graphql.NewInputObject(graphql.InputObjectConfig{
				Name:        t.Name,
				Description: t.Description,
				Fields:      fields,
			})
		}
		if len(next) == len(pending) {
			return fmt.Errorf("input type cycle involving '%s'", next[0].Name)
		}
		pending = next
	}
	return nil
}

func (b *builder) inputDepsReady(t *catalog.Type) bool {
	for i := range t.InputFields {
		if _, ok := b.types[t.InputFields[i].Type.Name]; !ok {
			return false
		}
	}
	return true
}

// objectShell creates the object with a fields thunk so mutually referencing
// entity types resolve against the full registry.
func (b *builder) objectShell(t *catalog.Type) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name:        t.Name,
		Description: t.Description,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return b.objectFields(t)
		}),
	})
}

func (b *builder) objectFields(t *catalog.Type) graphql.Fields {
	fields := graphql.Fields{}
	for i := range t.Fields {
		f := &t.Fields[i]
		// __typename is answered by the executor itself; exposing it as an
		// ordinary field would duplicate the meta field.
		if f.Class == catalog.ClassTypename {
			continue
		}
		out := b.typeRef(f.Type)
		if out == nil {
			continue
		}
		gf := &graphql.Field{
			Type:        out,
			Description: f.Description,
		}
		if len(f.Args) > 0 {
			args := graphql.FieldConfigArgument{}
			for j := range f.Args {
				a := &f.Args[j]
				in := b.typeRef(a.Type)
				if in == nil {
					continue
				}
				args[a.Name] = &graphql.ArgumentConfig{
					Type:        in,
					Description: a.Description,
				}
			}
			gf.Args = args
		}
		fields[f.Name] = gf
	}
	if t.Kind == catalog.KindQuery && len(fields) == 0 {
		fields["_schema"] = &graphql.Field{
			Type:        graphql.String,
			Description: "Placeholder field when no tables are exposed.",
		}
	}
	return fields
}

// typeRef resolves a catalog type reference into the registered graphql-go
// type, applying the list and non-null wrappers.
func (b *builder) typeRef(ref catalog.TypeRef) graphql.Type {
	base, ok := b.types[ref.Name]
	if !ok {
		b.fail("unknown type '%s' in reference %s", ref.Name, ref.String())
		return nil
	}
	t := base
	if ref.List {
		if ref.ElemNonNull {
			t = graphql.NewNonNull(t)
		}
		t = graphql.NewList(t)
	}
	if ref.NonNull {
		t = graphql.NewNonNull(t)
	}
	return t
}

func (b *builder) fail(format string, args ...interface{}) {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
}
