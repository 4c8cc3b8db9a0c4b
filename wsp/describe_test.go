package wsp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honganh1206/relay/rpc"
	"github.com/honganh1206/relay/wire"
)

type point struct {
	X float64 `wire:"x" json:"x"`
	Y float64 `wire:"y" json:"y"`
}

type drawArgs struct {
	Shape  string   `wire:"shape" json:"shape" doc:"shape to draw"`
	Center point    `wire:"center" json:"center"`
	Layers []int    `wire:"layers" json:"layers"`
	Alpha  *float64 `wire:"alpha" json:"alpha,omitempty"`
}

func describedTree() *rpc.Service {
	service := rpc.NewService()
	service.Register("draw", rpc.NewMethod("Draws a shape", func(_ context.Context, args drawArgs) (point, error) {
		return args.Center, nil
	}).WithReturnDoc("the drawn center"))
	service.Register("ping", rpc.NewMethod("", func(context.Context, struct{}) (rpc.NoResult, error) {
		return rpc.NoResult{}, nil
	}))
	nested := rpc.NewService()
	nested.Register("clear", rpc.NewMethod("Clears the canvas", func(context.Context, struct{}) (rpc.NoResult, error) {
		return rpc.NoResult{}, nil
	}))
	service.Register("canvas", nested)
	return service
}

func describeToMap(t *testing.T) map[string]any {
	t.Helper()
	buf := wire.NewExpandingBuffer()
	require.NoError(t, Describe(describedTree(), "painter", "http://paint/", buf))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed), "document: %s", buf.String())
	return parsed
}

func TestDescribeEnvelope(t *testing.T) {
	parsed := describeToMap(t)
	assert.Equal(t, "jsonwsp/description", parsed["type"])
	assert.Equal(t, "1.0", parsed["version"])
	assert.Equal(t, "painter", parsed["servicename"])
	assert.Equal(t, "http://paint/", parsed["url"])
	assert.Contains(t, parsed, "types")
	assert.Contains(t, parsed, "methods")
}

func TestDescribeTypesSection(t *testing.T) {
	parsed := describeToMap(t)
	types := parsed["types"].(map[string]any)

	// Every referenced declared object shows up once, members in order.
	require.Contains(t, types, "drawArgs")
	require.Contains(t, types, "point")
	pointType := types["point"].(map[string]any)
	assert.Equal(t, "number", pointType["x"])
	assert.Equal(t, "number", pointType["y"])

	argsType := types["drawArgs"].(map[string]any)
	assert.Equal(t, "string", argsType["shape"])
	assert.Equal(t, "point", argsType["center"])
	assert.Equal(t, []any{"number"}, argsType["layers"])
}

func TestDescribeMethodsSection(t *testing.T) {
	parsed := describeToMap(t)
	methods := parsed["methods"].(map[string]any)

	require.Contains(t, methods, "draw")
	require.Contains(t, methods, "ping")
	// Namespaces flatten into dotted paths.
	require.Contains(t, methods, "canvas.clear")

	draw := methods["draw"].(map[string]any)
	assert.Equal(t, []any{"Draws a shape"}, draw["doc_lines"])

	params := draw["params"].(map[string]any)
	require.Len(t, params, 4)
	shape := params["shape"].(map[string]any)
	assert.Equal(t, float64(1), shape["def_order"])
	assert.Equal(t, "string", shape["type"])
	assert.Equal(t, false, shape["optional"])
	assert.Equal(t, []any{"shape to draw"}, shape["doc_lines"])

	alpha := params["alpha"].(map[string]any)
	assert.Equal(t, float64(4), alpha["def_order"])
	assert.Equal(t, true, alpha["optional"])

	retInfo := draw["ret_info"].(map[string]any)
	assert.Equal(t, "point", retInfo["type"])
	assert.Equal(t, []any{"the drawn center"}, retInfo["doc_lines"])

	// A procedure without a return value documents null.
	ping := methods["ping"].(map[string]any)
	assert.Nil(t, ping["ret_info"].(map[string]any)["type"])
}

func TestSchemaDocument(t *testing.T) {
	document, err := SchemaDocument(describedTree(), "painter")
	require.NoError(t, err)

	var parsed struct {
		Service string                    `json:"service"`
		Methods map[string]map[string]any `json:"methods"`
	}
	require.NoError(t, json.Unmarshal(document, &parsed))
	assert.Equal(t, "painter", parsed.Service)
	require.Contains(t, parsed.Methods, "draw")
	require.Contains(t, parsed.Methods, "canvas.clear")

	draw := parsed.Methods["draw"]
	assert.Equal(t, "object", draw["type"])
	properties := draw["properties"].(map[string]any)
	assert.Contains(t, properties, "shape")
	assert.Contains(t, properties, "center")
}
