// Package serial maps Go values onto the structured event streams of package
// wire. Scalars, strings, slices, string-keyed maps, pointers and tagged
// structs are handled by reflection over tables built once per type; a type
// can take over its own wire shape by implementing Serializable.
package serial

import (
	"encoding"
	"reflect"
	"sort"

	"github.com/honganh1206/relay/wire"
)

// Serializable lets a type define its own event stream instead of the
// reflected one.
type Serializable interface {
	SerializeWire(out wire.Output, flags wire.Flags) error
	DeserializeWire(in wire.Input, flags wire.Flags) error
}

// Write serializes v to out. Numeric width hints already present in flags are
// honored; otherwise the value's natural width is used.
func Write(out wire.Output, v any, flags wire.Flags) error {
	if s, ok := v.(Serializable); ok {
		return s.SerializeWire(out, flags)
	}
	switch value := v.(type) {
	case int64:
		return out.WriteInt(withNumeric(flags, reflect.TypeOf(value)), value)
	case int:
		return out.WriteInt(withNumeric(flags, reflect.TypeOf(value)), int64(value))
	case float64:
		return out.WriteFloat(withNumeric(flags, reflect.TypeOf(value)), value)
	case bool:
		return out.WriteBool(flags, value)
	case string:
		return out.WriteString(flags, value)
	case nil:
		return out.WriteNull(flags)
	}
	if m, ok := v.(encoding.TextMarshaler); ok {
		text, err := m.MarshalText()
		if err != nil {
			return err
		}
		return out.WriteString(flags, string(text))
	}
	return writeReflected(out, reflect.ValueOf(v), flags)
}

func writeReflected(out wire.Output, rv reflect.Value, flags wire.Flags) error {
	for rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return out.WriteNull(flags)
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return out.WriteInt(withNumeric(flags, rv.Type()), rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return out.WriteInt(withNumeric(flags, rv.Type()), int64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return out.WriteFloat(withNumeric(flags, rv.Type()), rv.Float())
	case reflect.Bool:
		return out.WriteBool(flags, rv.Bool())
	case reflect.String:
		return out.WriteString(flags, rv.String())
	case reflect.Pointer:
		return out.WriteOptional(flags, !rv.IsNil(), func() error {
			return writeValue(out, rv.Elem(), flags)
		})
	case reflect.Slice, reflect.Array:
		return writeSequence(out, rv, flags)
	case reflect.Map:
		return writeMap(out, rv, flags)
	case reflect.Struct:
		return writeStruct(out, rv, flags)
	}
	return wire.NewLogicError("cannot serialize a %s", rv.Kind())
}

// writeValue routes a reflect.Value back through the interface fast path so
// Serializable implementations on field types are honored.
func writeValue(out wire.Output, rv reflect.Value, flags wire.Flags) error {
	if rv.CanInterface() {
		if s, ok := rv.Interface().(Serializable); ok {
			return s.SerializeWire(out, flags)
		}
		if rv.CanAddr() {
			if s, ok := rv.Addr().Interface().(Serializable); ok {
				return s.SerializeWire(out, flags)
			}
		}
	}
	return writeReflected(out, rv, flags)
}

func writeSequence(out wire.Output, rv reflect.Value, flags wire.Flags) error {
	n := rv.Len()
	if err := out.StartArray(flags, n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := out.IntroduceArrayElement(flags, i); err != nil {
			return err
		}
		if err := writeValue(out, rv.Index(i), flags); err != nil {
			return err
		}
	}
	return out.EndArray(flags)
}

func writeMap(out wire.Output, rv reflect.Value, flags wire.Flags) error {
	if rv.Type().Key().Kind() != reflect.String {
		return wire.NewLogicError("map keys must be strings, not %s", rv.Type().Key())
	}
	keys := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		keys = append(keys, iter.Key().String())
	}
	sort.Strings(keys)
	// A map's layout is never known to the other side.
	memberFlags := flags &^ wire.ObjectLayoutKnown
	if err := out.StartObject(memberFlags, len(keys)); err != nil {
		return err
	}
	for i, key := range keys {
		if err := out.IntroduceObjectMember(memberFlags, key, i); err != nil {
			return err
		}
		value := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if err := writeValue(out, value, memberFlags); err != nil {
			return err
		}
	}
	return out.EndObject(memberFlags)
}

func writeStruct(out wire.Output, rv reflect.Value, flags wire.Flags) error {
	table, err := tableOf(rv.Type())
	if err != nil {
		return err
	}
	if err := out.StartObject(flags, len(table.fields)); err != nil {
		return err
	}
	for i, f := range table.fields {
		fieldFlags := withNumeric(flags|f.flags, f.typ)
		if err := out.IntroduceObjectMember(fieldFlags, f.name, i); err != nil {
			return err
		}
		if err := writeValue(out, rv.Field(f.index), fieldFlags); err != nil {
			return err
		}
	}
	return out.EndObject(flags)
}

// Read deserializes the next value from in into v, which must be a non-nil
// pointer.
func Read(in wire.Input, v any, flags wire.Flags) error {
	if s, ok := v.(Serializable); ok {
		return s.DeserializeWire(in, flags)
	}
	switch target := v.(type) {
	case *int64:
		value, err := in.ReadInt(withNumeric(flags, reflect.TypeOf(*target)))
		*target = value
		return err
	case *int:
		value, err := in.ReadInt(withNumeric(flags, reflect.TypeOf(*target)))
		*target = int(value)
		return err
	case *float64:
		value, err := in.ReadFloat(withNumeric(flags, reflect.TypeOf(*target)))
		*target = value
		return err
	case *bool:
		value, err := in.ReadBool(flags)
		*target = value
		return err
	case *string:
		value, err := in.ReadString(flags)
		*target = value
		return err
	}
	if u, ok := v.(encoding.TextUnmarshaler); ok {
		text, err := in.ReadString(flags)
		if err != nil {
			return err
		}
		return u.UnmarshalText([]byte(text))
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return wire.NewLogicError("deserialization target must be a non-nil pointer, got %T", v)
	}
	return readReflected(in, rv.Elem(), flags)
}

func readReflected(in wire.Input, rv reflect.Value, flags wire.Flags) error {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value, err := in.ReadInt(withNumeric(flags, rv.Type()))
		if err != nil {
			return err
		}
		rv.SetInt(value)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		value, err := in.ReadInt(withNumeric(flags, rv.Type()))
		if err != nil {
			return err
		}
		rv.SetUint(uint64(value))
		return nil
	case reflect.Float32, reflect.Float64:
		value, err := in.ReadFloat(withNumeric(flags, rv.Type()))
		if err != nil {
			return err
		}
		rv.SetFloat(value)
		return nil
	case reflect.Bool:
		value, err := in.ReadBool(flags)
		if err != nil {
			return err
		}
		rv.SetBool(value)
		return nil
	case reflect.String:
		value, err := in.ReadString(flags)
		if err != nil {
			return err
		}
		rv.SetString(value)
		return nil
	case reflect.Pointer:
		present, err := in.ReadOptional(flags, func() error {
			if rv.IsNil() {
				rv.Set(reflect.New(rv.Type().Elem()))
			}
			return readValue(in, rv.Elem(), flags)
		})
		if err != nil {
			return err
		}
		if !present {
			rv.Set(reflect.Zero(rv.Type()))
		}
		return nil
	case reflect.Slice:
		return readSlice(in, rv, flags)
	case reflect.Map:
		return readMap(in, rv, flags)
	case reflect.Struct:
		return readStruct(in, rv, flags)
	}
	return wire.NewLogicError("cannot deserialize into a %s", rv.Kind())
}

func readValue(in wire.Input, rv reflect.Value, flags wire.Flags) error {
	if rv.CanAddr() {
		if s, ok := rv.Addr().Interface().(Serializable); ok {
			return s.DeserializeWire(in, flags)
		}
	}
	return readReflected(in, rv, flags)
}

// readSlice resizes the slice to the observed element count.
func readSlice(in wire.Input, rv reflect.Value, flags wire.Flags) error {
	if err := in.StartArray(flags); err != nil {
		return err
	}
	count := 0
	for {
		more, err := in.NextArrayElement(flags)
		if err != nil {
			return err
		}
		if !more {
			break
		}
		if count < rv.Len() {
			if err := readValue(in, rv.Index(count), flags); err != nil {
				return err
			}
		} else {
			elem := reflect.New(rv.Type().Elem()).Elem()
			if err := readValue(in, elem, flags); err != nil {
				return err
			}
			rv.Set(reflect.Append(rv, elem))
		}
		count++
	}
	rv.SetLen(count)
	return in.EndArray(flags)
}

// readMap merges into the existing map: values of still-present keys are
// overwritten in place, new keys inserted, missing keys dropped.
func readMap(in wire.Input, rv reflect.Value, flags wire.Flags) error {
	if rv.Type().Key().Kind() != reflect.String {
		return wire.NewLogicError("map keys must be strings, not %s", rv.Type().Key())
	}
	if rv.IsNil() {
		rv.Set(reflect.MakeMap(rv.Type()))
	}
	memberFlags := flags &^ wire.ObjectLayoutKnown
	seen := make(map[string]bool)
	err := in.ReadObject(memberFlags, func(name string, named bool, index int) (bool, error) {
		if !named {
			return false, wire.NewLogicError("map members need names")
		}
		elem := reflect.New(rv.Type().Elem()).Elem()
		existing := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if existing.IsValid() {
			elem.Set(existing)
		}
		if err := readValue(in, elem, memberFlags); err != nil {
			return false, err
		}
		rv.SetMapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()), elem)
		seen[name] = true
		return true, nil
	})
	if err != nil {
		return err
	}
	for _, key := range rv.MapKeys() {
		if !seen[key.String()] {
			rv.SetMapIndex(key, reflect.Value{})
		}
	}
	return nil
}

// readStruct routes observed members to fields by name, or by index when the
// format omitted names under a known layout. Unknown members are skipped.
func readStruct(in wire.Input, rv reflect.Value, flags wire.Flags) error {
	table, err := tableOf(rv.Type())
	if err != nil {
		return err
	}
	consumed := 0
	return in.ReadObject(flags, func(name string, named bool, index int) (bool, error) {
		var f *field
		if named {
			if at, ok := table.byName[name]; ok {
				f = &table.fields[at]
			}
		} else if index < len(table.fields) {
			f = &table.fields[index]
		}
		if f == nil {
			if !named {
				// A nameless format is driven by this callback alone; past
				// the table there is nothing left to read.
				return false, nil
			}
			if err := in.SkipValue(flags); err != nil {
				return false, err
			}
			return true, nil
		}
		fieldFlags := withNumeric(flags|f.flags, f.typ)
		if err := readValue(in, rv.Field(f.index), fieldFlags); err != nil {
			return false, err
		}
		consumed++
		return consumed < len(table.fields) || named, nil
	})
}
