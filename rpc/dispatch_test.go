package rpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honganh1206/relay/wire"
)

type sumArgs struct {
	First  int `wire:"first"`
	Second int `wire:"second"`
}

type messageArgs struct {
	Message string `wire:"message"`
}

type testService struct {
	*Service
	message string
	calls   int
}

func newTestService() *testService {
	s := &testService{Service: NewService()}
	s.Register("sum", NewMethod("Adds two numbers", func(_ context.Context, args sumArgs) (int, error) {
		s.calls++
		return args.First + args.Second, nil
	}))
	s.Register("set_message", NewMethod("Stores a message", func(_ context.Context, args messageArgs) (NoResult, error) {
		s.message = args.Message
		return NoResult{}, nil
	}))
	s.Register("fail", NewMethod("Always fails", func(context.Context, struct{}) (int, error) {
		return 0, InvalidParams("refused")
	}))
	s.Register("panics", NewMethod("Panics", func(context.Context, struct{}) (int, error) {
		panic("boom")
	}))
	nested := NewService()
	nested.Register("mul", NewMethod("Multiplies", func(_ context.Context, args sumArgs) (int, error) {
		return args.First * args.Second, nil
	}))
	s.Register("math", nested)
	return s
}

func dispatch(t *testing.T, service *testService, request string) (string, bool) {
	t.Helper()
	out := wire.NewExpandingBuffer()
	ok := NewServerProtocol(service).Respond(context.Background(), nil, []byte(request), out)
	return out.String(), ok
}

func parseResponse(t *testing.T, response string) map[string]any {
	t.Helper()
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(response), &parsed), "response: %s", response)
	return parsed
}

func TestCallWithIntegerID(t *testing.T) {
	service := newTestService()
	response, ok := dispatch(t, service,
		`{"jsonrpc":"2.0","id":7,"method":"sum","params":{"first":2,"second":3}}`)
	assert.True(t, ok)

	parsed := parseResponse(t, response)
	assert.Equal(t, "2.0", parsed["jsonrpc"])
	assert.Equal(t, float64(7), parsed["id"])
	assert.Equal(t, float64(5), parsed["result"])
	assert.NotContains(t, parsed, "error")
}

func TestNotificationProducesNoResponse(t *testing.T) {
	service := newTestService()
	response, ok := dispatch(t, service,
		`{"jsonrpc":"2.0","method":"set_message","params":{"message":"hi"}}`)
	assert.True(t, ok)
	assert.Empty(t, response)
	assert.Equal(t, "hi", service.message)
}

func TestUnknownMethod(t *testing.T) {
	service := newTestService()
	response, _ := dispatch(t, service, `{"jsonrpc":"2.0","id":1,"method":"nope"}`)

	parsed := parseResponse(t, response)
	assert.Equal(t, float64(1), parsed["id"])
	errObject := parsed["error"].(map[string]any)
	assert.Equal(t, float64(CodeMethodNotFound), errObject["code"])
	assert.Equal(t, "Method not known", errObject["message"])
}

func TestBadJSONYieldsParseErrorWithNullID(t *testing.T) {
	service := newTestService()
	response, _ := dispatch(t, service, `{"jsonrpc":"2.0","id":`)

	parsed := parseResponse(t, response)
	assert.Nil(t, parsed["id"])
	errObject := parsed["error"].(map[string]any)
	assert.Equal(t, float64(CodeParseError), errObject["code"])
}

func TestOutOfOrderMembers(t *testing.T) {
	service := newTestService()
	canonical, _ := dispatch(t, service,
		`{"jsonrpc":"2.0","id":3,"method":"sum","params":{"first":4,"second":8}}`)
	reversed, _ := dispatch(t, service,
		`{"params":{"first":4,"second":8},"method":"sum","id":3,"jsonrpc":"2.0"}`)

	assert.Equal(t, parseResponse(t, canonical), parseResponse(t, reversed))
}

func TestParamsBeforeMethodSeeksForward(t *testing.T) {
	service := newTestService()
	response, ok := dispatch(t, service,
		`{"jsonrpc":"2.0","params":{"first":1,"second":2},"method":"sum","id":9}`)
	assert.True(t, ok)

	parsed := parseResponse(t, response)
	assert.Equal(t, float64(9), parsed["id"])
	assert.Equal(t, float64(3), parsed["result"])
}

func TestStringAndNullIDsEchoType(t *testing.T) {
	service := newTestService()
	response, _ := dispatch(t, service,
		`{"jsonrpc":"2.0","id":"abc","method":"sum","params":{"first":1,"second":1}}`)
	parsed := parseResponse(t, response)
	assert.Equal(t, "abc", parsed["id"])

	response, _ = dispatch(t, service,
		`{"jsonrpc":"2.0","id":null,"method":"sum","params":{"first":1,"second":1}}`)
	parsed = parseResponse(t, response)
	var nilValue any
	assert.Equal(t, nilValue, parsed["id"])
	assert.Contains(t, parsed, "id")
}

func TestDottedPathResolution(t *testing.T) {
	service := newTestService()
	response, _ := dispatch(t, service,
		`{"jsonrpc":"2.0","id":2,"method":"math.mul","params":{"first":6,"second":7}}`)
	parsed := parseResponse(t, response)
	assert.Equal(t, float64(42), parsed["result"])
}

func TestWrongVersionRejected(t *testing.T) {
	service := newTestService()
	response, _ := dispatch(t, service,
		`{"jsonrpc":"1.0","id":1,"method":"sum","params":{}}`)
	parsed := parseResponse(t, response)
	errObject := parsed["error"].(map[string]any)
	assert.Equal(t, float64(CodeInvalidRequest), errObject["code"])
}

func TestProcedureErrorKeepsItsCode(t *testing.T) {
	service := newTestService()
	response, _ := dispatch(t, service,
		`{"jsonrpc":"2.0","id":4,"method":"fail","params":{}}`)
	parsed := parseResponse(t, response)
	errObject := parsed["error"].(map[string]any)
	assert.Equal(t, float64(CodeInvalidParams), errObject["code"])
}

func TestPanickingProcedureIsContained(t *testing.T) {
	service := newTestService()
	response, _ := dispatch(t, service,
		`{"jsonrpc":"2.0","id":5,"method":"panics","params":{}}`)
	parsed := parseResponse(t, response)
	errObject := parsed["error"].(map[string]any)
	assert.Equal(t, float64(CodeInternalError), errObject["code"])
}

func TestBatchIsolation(t *testing.T) {
	service := newTestService()
	response, ok := dispatch(t, service, `[`+
		`{"jsonrpc":"2.0","id":1,"method":"sum","params":{"first":1,"second":2}},`+
		`{"jsonrpc":"2.0","method":"set_message","params":{"message":"x"}},`+
		`{"jsonrpc":"2.0","id":2,"method":"nope"}`+
		`]`)
	assert.True(t, ok)
	assert.Equal(t, "x", service.message)

	var parsed []map[string]any
	require.NoError(t, json.Unmarshal([]byte(response), &parsed), "response: %s", response)
	// Two responses: the notification is omitted, order preserved.
	require.Len(t, parsed, 2)
	assert.Equal(t, float64(1), parsed[0]["id"])
	assert.Equal(t, float64(3), parsed[0]["result"])
	assert.Equal(t, float64(2), parsed[1]["id"])
	errObject := parsed[1]["error"].(map[string]any)
	assert.Equal(t, float64(CodeMethodNotFound), errObject["code"])
}

func TestBatchOfOnlyNotifications(t *testing.T) {
	service := newTestService()
	response, ok := dispatch(t, service,
		`[{"jsonrpc":"2.0","method":"set_message","params":{"message":"a"}}]`)
	assert.True(t, ok)

	var parsed []any
	require.NoError(t, json.Unmarshal([]byte(response), &parsed))
	assert.Empty(t, parsed)
}

func TestNonsenseBodyRefused(t *testing.T) {
	service := newTestService()
	_, ok := dispatch(t, service, `"just a string"`)
	assert.False(t, ok)
}

func TestErrorAfterParamsRecoversIDBehindThem(t *testing.T) {
	// id arrives after an unknown method: the error response must still
	// carry it, found by seeking.
	service := newTestService()
	response, _ := dispatch(t, service,
		`{"jsonrpc":"2.0","method":"nope","params":{},"id":11}`)
	parsed := parseResponse(t, response)
	assert.Equal(t, float64(11), parsed["id"])
	errObject := parsed["error"].(map[string]any)
	assert.Equal(t, float64(CodeMethodNotFound), errObject["code"])
}
