package rpc

import (
	"context"
	"errors"

	"github.com/honganh1206/relay/codec"
	"github.com/honganh1206/relay/wire"
)

// ServerProtocol is the JSON-RPC 2.0 server side: it parses request
// envelopes, routes to the callable tree and writes response envelopes. It is
// stateless beyond its arguments and safe to share across sessions.
type ServerProtocol struct {
	root Callable
}

// NewServerProtocol returns a dispatcher over the given callable tree.
func NewServerProtocol(root Callable) *ServerProtocol {
	return &ServerProtocol{root: root}
}

// Respond handles one buffered JSON-RPC message — a single request object or
// a batch array — writing the JSON response into out. Notifications produce
// no output; a batch of nothing but notifications leaves only an empty
// array. The return value is false when the body is not JSON-RPC shaped at
// all and the transport should report a malformed request.
func (p *ServerProtocol) Respond(ctx context.Context, user *UserID, body []byte, out wire.Buffer) bool {
	input := codec.NewJSONInput(body)
	output := codec.NewJSONOutput(out)

	kind, err := input.IdentifyType(wire.None)
	if err != nil {
		return false
	}
	switch kind {
	case wire.KindArray:
		if input.StartArray(wire.None) != nil {
			return false
		}
		if output.StartArray(wire.None, wire.UnknownSize) != nil {
			return false
		}
		resultIndex := 0
		for {
			more, err := input.NextArrayElement(wire.None)
			if err != nil || !more {
				break
			}
			previous, _ := input.StorePosition(wire.None)
			ok := p.respondOne(ctx, user, input, output, func() error {
				err := output.IntroduceArrayElement(wire.None, resultIndex)
				resultIndex++
				return err
			})
			if !ok {
				// One failing element does not abort the batch.
				if input.RestorePosition(wire.None, previous) != nil {
					break
				}
				if input.SkipValue(wire.None) != nil {
					break
				}
			}
		}
		_ = input.EndArray(wire.None)
		_ = output.EndArray(wire.None)
		return true
	case wire.KindObject:
		p.respondOne(ctx, user, input, output, nil)
		return true
	}
	return false
}

const unsetPosition = wire.Position(-1)

// respondOne processes a single request object whose members may arrive in
// any order. The response header {"jsonrpc","id"} is emitted the moment the
// id is seen, so it precedes the result in the output; when an error strikes
// before any id was seen, the input is seeked backwards for one.
func (p *ServerProtocol) respondOne(ctx context.Context, user *UserID, input wire.Input, output wire.Output, onResponseStarted func() error) bool {
	var (
		failed      bool
		responding  bool
		called      bool
		method      Callable
		idSeekStart = unsetPosition
	)

	writeID := func() error {
		responding = true
		if onResponseStarted != nil {
			if err := onResponseStarted(); err != nil {
				return err
			}
		}
		if err := output.StartObject(wire.None, 3); err != nil {
			return err
		}
		if err := output.IntroduceObjectMember(wire.None, "jsonrpc", 0); err != nil {
			return err
		}
		if err := output.WriteString(wire.None, "2.0"); err != nil {
			return err
		}
		if err := output.IntroduceObjectMember(wire.None, "id", 1); err != nil {
			return err
		}
		// The id is echoed back as the same JSON type it arrived as.
		kind, err := input.IdentifyType(wire.None)
		if err != nil {
			return output.WriteNull(wire.None)
		}
		switch kind {
		case wire.KindInteger:
			value, err := input.ReadInt(wire.None)
			if err != nil {
				return output.WriteNull(wire.None)
			}
			return output.WriteInt(wire.None, value)
		case wire.KindString:
			value, err := input.ReadString(wire.None)
			if err != nil {
				return output.WriteNull(wire.None)
			}
			return output.WriteString(wire.None, value)
		case wire.KindFloat:
			value, err := input.ReadFloat(wire.None)
			if err != nil {
				return output.WriteNull(wire.None)
			}
			return output.WriteFloat(wire.None, value)
		case wire.KindNull:
			_ = input.ReadNull(wire.None)
			return output.WriteNull(wire.None)
		default:
			_ = input.SkipValue(wire.None)
			return output.WriteNull(wire.None)
		}
	}

	// checkID retroactively looks for an id once it is clear a response (or
	// an error) must be produced, without disturbing the current position.
	checkID := func() {
		if responding || idSeekStart == unsetPosition {
			return
		}
		original, err := input.StorePosition(wire.None)
		if err != nil {
			return
		}
		if input.RestorePosition(wire.None, idSeekStart) != nil {
			return
		}
		if found, _ := input.SeekObjectMember(wire.None, "id"); found {
			_ = writeID()
		}
		_ = input.RestorePosition(wire.None, original)
	}

	introduceError := func(code Code, message string) {
		failed = true
		checkID()
		if !responding {
			return
		}
		if output.IntroduceObjectMember(wire.None, "error", 2) != nil {
			return
		}
		errorObject := wire.BeginObject(output, 2)
		errorObject.WriteInt("code", int64(code))
		errorObject.WriteString("message", message)
		_ = errorObject.End()
	}

	callMethod := func(argsIn wire.Input) {
		if method == nil {
			return
		}
		called = true
		checkID()
		var resultOut wire.Output = wire.NullOutput{}
		introduce := func() error { return nil }
		if responding {
			resultOut = output
			introduce = func() error {
				return output.IntroduceObjectMember(wire.None, "result", 2)
			}
		}
		err := method.Call(ctx, Call{
			Args:            argsIn,
			Result:          resultOut,
			IntroduceResult: introduce,
			User:            user,
		})
		if err != nil {
			introduceError(errorCode(err), err.Error())
		}
	}

	readMethod := func() error {
		path, err := input.ReadString(wire.None)
		if err != nil {
			return err
		}
		method = FindCallable(p.root, path, ".")
		if method == nil {
			introduceError(CodeMethodNotFound, "Method not known")
		}
		return nil
	}

	err := input.ReadObject(wire.None, func(name string, _ bool, _ int) (bool, error) {
		switch name {
		case "jsonrpc":
			idSeekStart, _ = input.StorePosition(wire.None)
			version, err := input.ReadString(wire.None)
			if err != nil {
				return false, err
			}
			if version != "2.0" {
				introduceError(CodeInvalidRequest, "Unknown JSON-RPC version")
			}
		case "id":
			if !called {
				if err := writeID(); err != nil {
					return false, err
				}
			} else if err := input.SkipValue(wire.None); err != nil {
				return false, err
			}
		case "method":
			if method == nil {
				idSeekStart, _ = input.StorePosition(wire.None)
				if err := readMethod(); err != nil {
					return false, err
				}
			} else if err := input.SkipValue(wire.None); err != nil {
				return false, err
			}
		case "params":
			idSeekStart, _ = input.StorePosition(wire.None)
			if method != nil {
				callMethod(input)
				break
			}
			// The method name has not arrived yet: peek ahead for it, then
			// come back and read the params for real.
			paramsPosition, err := input.StorePosition(wire.None)
			if err != nil {
				return false, err
			}
			found, err := input.SeekObjectMember(wire.None, "method")
			if err != nil {
				return false, err
			}
			if !found {
				_ = input.RestorePosition(wire.None, paramsPosition)
				_ = input.SkipValue(wire.None)
				introduceError(CodeInvalidRequest, "Method name not found in the request")
				break
			}
			if err := readMethod(); err != nil {
				return false, err
			}
			if err := input.RestorePosition(wire.None, paramsPosition); err != nil {
				return false, err
			}
			if method != nil {
				callMethod(input)
			} else {
				_ = input.SkipValue(wire.None)
			}
		default:
			if err := input.SkipValue(wire.None); err != nil {
				return false, err
			}
			introduceError(CodeInvalidRequest, "Unexpected member in request")
		}
		return !failed, nil
	})
	if err != nil && !failed {
		var parseError *wire.ParseError
		if errors.As(err, &parseError) {
			introduceError(CodeParseError, err.Error())
		} else {
			introduceError(CodeInternalError, err.Error())
		}
	}

	if !failed && !called {
		callMethod(nil)
	}
	if responding {
		_ = output.EndObject(wire.None)
	}
	return !failed
}

// errorCode places an error in the JSON-RPC taxonomy.
func errorCode(err error) Code {
	var rpcError *Error
	if errors.As(err, &rpcError) {
		return rpcError.Code
	}
	var parseError *wire.ParseError
	if errors.As(err, &parseError) {
		return CodeParseError
	}
	return CodeInternalError
}
