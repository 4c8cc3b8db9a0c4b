package serial

import (
	"reflect"

	"github.com/honganh1206/relay/wire"
)

// TypeKind classifies a described type.
type TypeKind int

const (
	TypeInteger TypeKind = iota
	TypeFloat
	TypeBoolean
	TypeString
	TypeArray
	TypeObject
	// TypeNull marks the absence of a value, such as a procedure with no
	// return.
	TypeNull
)

// TypeDescription is the schema view of a type, produced from the same field
// tables the serializers walk.
type TypeDescription struct {
	Kind TypeKind
	// Name is set for declared struct types.
	Name string
	// Elem describes array elements and map values.
	Elem *TypeDescription
	// Optional marks a value that may be absent.
	Optional bool
	// Fields lists object members, in declaration order.
	Fields []FieldDescription
}

// FieldDescription is one member of a described object.
type FieldDescription struct {
	Name     string
	Doc      string
	Optional bool
	Flags    wire.Flags
	Type     TypeDescription
}

// Describe returns the type description of v's type.
func Describe(v any) (TypeDescription, error) {
	return DescribeType(reflect.TypeOf(v))
}

// DescribeType builds the description of t.
func DescribeType(t reflect.Type) (TypeDescription, error) {
	if t == nil {
		return TypeDescription{Kind: TypeObject}, nil
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeDescription{Kind: TypeInteger}, nil
	case reflect.Float32, reflect.Float64:
		return TypeDescription{Kind: TypeFloat}, nil
	case reflect.Bool:
		return TypeDescription{Kind: TypeBoolean}, nil
	case reflect.String:
		return TypeDescription{Kind: TypeString}, nil
	case reflect.Pointer:
		inner, err := DescribeType(t.Elem())
		if err != nil {
			return TypeDescription{}, err
		}
		inner.Optional = true
		return inner, nil
	case reflect.Slice, reflect.Array:
		elem, err := DescribeType(t.Elem())
		if err != nil {
			return TypeDescription{}, err
		}
		return TypeDescription{Kind: TypeArray, Elem: &elem}, nil
	case reflect.Map:
		elem, err := DescribeType(t.Elem())
		if err != nil {
			return TypeDescription{}, err
		}
		return TypeDescription{Kind: TypeObject, Elem: &elem}, nil
	case reflect.Struct:
		fields, err := StructFields(t)
		if err != nil {
			return TypeDescription{}, err
		}
		return TypeDescription{Kind: TypeObject, Name: t.Name(), Fields: fields}, nil
	}
	return TypeDescription{}, wire.NewLogicError("cannot describe a %s", t.Kind())
}

// StructFields exposes the field table of a struct type as descriptions. The
// dispatcher and the description emitter both read this table, so the
// argument list seen on the wire is the argument list that gets documented.
func StructFields(t reflect.Type) ([]FieldDescription, error) {
	table, err := tableOf(t)
	if err != nil {
		return nil, err
	}
	fields := make([]FieldDescription, 0, len(table.fields))
	for _, f := range table.fields {
		desc, err := DescribeType(f.typ)
		if err != nil {
			return nil, err
		}
		fields = append(fields, FieldDescription{
			Name:     f.name,
			Doc:      f.doc,
			Optional: f.optional,
			Flags:    f.flags,
			Type:     desc,
		})
	}
	return fields, nil
}

// ReferencedTypes walks t and reports every declared struct type reachable
// from it, each exactly once, in first-encountered order.
func ReferencedTypes(t reflect.Type, add func(name string, fields []FieldDescription) error) error {
	seen := make(map[reflect.Type]bool)
	return referencedTypes(t, seen, add)
}

func referencedTypes(t reflect.Type, seen map[reflect.Type]bool, add func(string, []FieldDescription) error) error {
	if t == nil {
		return nil
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
		return referencedTypes(t.Elem(), seen, add)
	case reflect.Struct:
		if seen[t] {
			return nil
		}
		seen[t] = true
		fields, err := StructFields(t)
		if err != nil {
			return err
		}
		if t.Name() != "" {
			if err := add(t.Name(), fields); err != nil {
				return err
			}
		}
		for i := 0; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := referencedTypes(t.Field(i).Type, seen, add); err != nil {
				return err
			}
		}
	}
	return nil
}
