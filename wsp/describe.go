// Package wsp reflects a callable tree into machine-readable service
// descriptions: the JSON-WSP description document, and JSON Schemas for the
// argument structs.
package wsp

import (
	"github.com/honganh1206/relay/codec"
	"github.com/honganh1206/relay/rpc"
	"github.com/honganh1206/relay/serial"
	"github.com/honganh1206/relay/wire"
)

// Describe writes the JSON-WSP description of the callable tree into out:
// an envelope of {type, version, servicename, url, types, methods} where
// types maps every referenced declared object to its members and methods
// maps each dotted procedure path to its documentation, parameters and
// return info.
func Describe(root rpc.Callable, serviceName, url string, out wire.Buffer) error {
	output := codec.NewJSONOutput(out)
	document := wire.BeginObject(output, 6)
	document.WriteString("type", "jsonwsp/description")
	document.WriteString("version", "1.0")
	document.WriteString("servicename", serviceName)
	document.WriteString("url", url)

	types := wire.BeginObject(document.Member("types"), wire.UnknownSize)
	err := root.ListTypes(func(name string, fields []serial.FieldDescription) error {
		members := wire.BeginObject(types.Member(name), len(fields))
		for _, field := range fields {
			if err := writeTypeRef(members.Member(field.Name), field.Type); err != nil {
				return err
			}
		}
		return members.End()
	})
	if err != nil {
		return err
	}
	if err := types.End(); err != nil {
		return err
	}

	methods := wire.BeginObject(document.Member("methods"), wire.UnknownSize)
	filler := &descriptionFiller{methods: methods}
	if err := root.DescribeMethods(filler); err != nil {
		return err
	}
	if err := methods.End(); err != nil {
		return err
	}
	return document.End()
}

// writeTypeRef renders a type the way JSON-WSP refers to it: numbers and
// strings by class name, arrays as a one-element array of the element type,
// declared objects by their type name.
func writeTypeRef(out wire.Output, desc serial.TypeDescription) error {
	switch desc.Kind {
	case serial.TypeInteger, serial.TypeFloat:
		return out.WriteString(wire.None, "number")
	case serial.TypeBoolean:
		return out.WriteString(wire.None, "boolean")
	case serial.TypeString:
		return out.WriteString(wire.None, "string")
	case serial.TypeArray:
		array := wire.BeginArray(out, 1)
		if err := writeTypeRef(array.Element(), *desc.Elem); err != nil {
			return err
		}
		return array.End()
	case serial.TypeNull:
		return out.WriteNull(wire.None)
	default:
		if desc.Name != "" {
			return out.WriteString(wire.None, desc.Name)
		}
		return out.WriteString(wire.None, "object")
	}
}

func writeDocLines(object *wire.ObjectWriter, doc string) error {
	size := 0
	if doc != "" {
		size = 1
	}
	lines := wire.BeginArray(object.Member("doc_lines"), size)
	if doc != "" {
		lines.WriteString(doc)
	}
	return lines.End()
}

// descriptionFiller flattens the tree into the methods object, dotting
// namespace names into the method keys.
type descriptionFiller struct {
	methods *wire.ObjectWriter
	prefix  string
}

func (f *descriptionFiller) AddMethod(name, doc string, params []serial.FieldDescription, ret serial.TypeDescription, retDoc string) error {
	method := wire.BeginObject(f.methods.Member(f.prefix+name), 3)
	if err := writeDocLines(method, doc); err != nil {
		return err
	}

	paramsObject := wire.BeginObject(method.Member("params"), len(params))
	for order, param := range params {
		entry := wire.BeginObject(paramsObject.Member(param.Name), 4)
		entry.WriteInt("def_order", int64(order+1))
		if err := writeDocLines(entry, param.Doc); err != nil {
			return err
		}
		if err := writeTypeRef(entry.Member("type"), param.Type); err != nil {
			return err
		}
		entry.WriteBool("optional", param.Optional || param.Type.Optional)
		if err := entry.End(); err != nil {
			return err
		}
	}
	if err := paramsObject.End(); err != nil {
		return err
	}

	retInfo := wire.BeginObject(method.Member("ret_info"), 2)
	if err := writeDocLines(retInfo, retDoc); err != nil {
		return err
	}
	if err := writeTypeRef(retInfo.Member("type"), ret); err != nil {
		return err
	}
	if err := retInfo.End(); err != nil {
		return err
	}
	return method.End()
}

func (f *descriptionFiller) AddNamespace(name string, fill func(rpc.DescriptionFiller) error) error {
	return fill(&descriptionFiller{methods: f.methods, prefix: f.prefix + name + "."})
}
