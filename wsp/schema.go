package wsp

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/honganh1206/relay/rpc"
)

// Generate reflects a Go type into a JSON schema. Property names follow the
// type's json tags, so argument structs that should appear in schemas carry
// json tags mirroring their wire tags.
func Generate[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var v T

	return reflector.Reflect(v)
}

// schemaDocument is the envelope served at /schema.json.
type schemaDocument struct {
	Service string                        `json:"service"`
	Methods map[string]*jsonschema.Schema `json:"methods"`
}

// SchemaDocument reflects every procedure's argument struct into a JSON
// schema, keyed by the procedure's dotted path.
func SchemaDocument(root rpc.Callable, serviceName string) ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	document := schemaDocument{Service: serviceName, Methods: make(map[string]*jsonschema.Schema)}

	var walk func(prefix string, callable rpc.Callable) error
	walk = func(prefix string, callable rpc.Callable) error {
		for i := 0; ; i++ {
			child := callable.ChildByIndex(i)
			if child == nil {
				return nil
			}
			name, _, ok := callable.ChildName(child)
			if !ok {
				return fmt.Errorf("child %d has no name", i)
			}
			path := prefix + name
			desc, err := child.Describe()
			if err != nil {
				return err
			}
			if desc == nil {
				if err := walk(path+".", child); err != nil {
					return err
				}
				continue
			}
			if desc.ArgsType != nil {
				document.Methods[path] = reflector.ReflectFromType(desc.ArgsType)
			}
		}
	}
	if err := walk("", root); err != nil {
		return nil, err
	}
	return json.MarshalIndent(document, "", "\t")
}
