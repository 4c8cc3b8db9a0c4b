package serial

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/honganh1206/relay/wire"
)

// A struct declares its wire shape through `wire` tags:
//
//	type Account struct {
//		Name    string `wire:"name" doc:"display name"`
//		Hidden  bool   `wire:"hidden,omitfalse"`
//		Ignored int    `wire:"-"`
//	}
//
// The table of (name, type, flags) triples is built once per type and reused
// by serialization, deserialization and description, so all three always see
// the same member names in the same order.

type field struct {
	name     string
	doc      string
	index    int
	flags    wire.Flags
	optional bool
	typ      reflect.Type
}

type structTable struct {
	name   string
	fields []field
	byName map[string]int
}

var tableCache sync.Map // reflect.Type -> *structTable

func tableOf(t reflect.Type) (*structTable, error) {
	if cached, ok := tableCache.Load(t); ok {
		return cached.(*structTable), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, wire.NewLogicError("type %s is not a struct", t)
	}
	table := &structTable{name: t.Name(), byName: make(map[string]int)}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, flags, skip := parseTag(sf)
		if skip {
			continue
		}
		table.byName[name] = len(table.fields)
		table.fields = append(table.fields, field{
			name:     name,
			doc:      sf.Tag.Get("doc"),
			index:    i,
			flags:    flags,
			optional: sf.Type.Kind() == reflect.Pointer,
			typ:      sf.Type,
		})
	}
	actual, _ := tableCache.LoadOrStore(t, table)
	return actual.(*structTable), nil
}

func parseTag(sf reflect.StructField) (name string, flags wire.Flags, skip bool) {
	tag := sf.Tag.Get("wire")
	if tag == "-" {
		return "", 0, true
	}
	name = sf.Name
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		switch opt {
		case "omitfalse":
			flags |= wire.OmitFalse
		case "emptyisnull":
			flags |= wire.EmptyIsNull
		case "mandatory":
			flags |= wire.Mandatory
		case "":
		default:
			panic(fmt.Sprintf("serial: unknown wire tag option %q on field %s", opt, sf.Name))
		}
	}
	return name, flags, false
}

// naturalNumeric maps a Go numeric type to its width hint. The hint is only
// added when the caller did not determine one already.
func naturalNumeric(t reflect.Type) wire.Flags {
	switch t.Kind() {
	case reflect.Int8:
		return wire.Int8
	case reflect.Int16:
		return wire.Int16
	case reflect.Int32:
		return wire.Int32
	case reflect.Int, reflect.Int64:
		return wire.Int64
	case reflect.Uint8:
		return wire.Uint8
	case reflect.Uint16:
		return wire.Uint16
	case reflect.Uint32:
		return wire.Uint32
	case reflect.Uint, reflect.Uint64:
		return wire.Uint64
	case reflect.Float32:
		return wire.Float32
	case reflect.Float64:
		return wire.Float64
	}
	return wire.None
}

func withNumeric(flags wire.Flags, t reflect.Type) wire.Flags {
	if flags.Numeric() != wire.None {
		return flags
	}
	return flags | naturalNumeric(t)
}
