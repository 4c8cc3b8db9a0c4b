package rpc

import (
	"context"
	"errors"
	"reflect"

	"github.com/honganh1206/relay/serial"
	"github.com/honganh1206/relay/wire"
)

// Method is a procedure in the callable tree. A is the argument struct whose
// `wire` tags name the parameters; R is the return type. The argument table —
// what the dispatcher routes by, what gets serialized and what the
// description documents — is A's field table, built once and shared by all
// three paths.
type Method[A any, R any] struct {
	leaf
	doc    string
	retDoc string
	fn     func(ctx context.Context, user *UserID, args A) (R, error)
}

var _ Callable = (*Method[struct{}, int])(nil)

// NewMethod declares a procedure over a plain function.
func NewMethod[A any, R any](doc string, fn func(ctx context.Context, args A) (R, error)) *Method[A, R] {
	return &Method[A, R]{
		doc: doc,
		fn: func(ctx context.Context, _ *UserID, args A) (R, error) {
			return fn(ctx, args)
		},
	}
}

// NewMethodWithUser declares a procedure that also receives the opaque user
// identifier the transport attached, when there is one.
func NewMethodWithUser[A any, R any](doc string, fn func(ctx context.Context, user *UserID, args A) (R, error)) *Method[A, R] {
	return &Method[A, R]{doc: doc, fn: fn}
}

// WithReturnDoc attaches documentation to the return value.
func (m *Method[A, R]) WithReturnDoc(doc string) *Method[A, R] {
	m.retDoc = doc
	return m
}

// Call reads the arguments as one known-layout object, runs the procedure
// and serializes its return value after announcing it. Panics in the
// procedure are contained and surface as internal errors.
func (m *Method[A, R]) Call(ctx context.Context, call Call) (err error) {
	var args A
	if call.Args != nil {
		if err := serial.Read(call.Args, &args, wire.ObjectLayoutKnown); err != nil {
			return err
		}
	}
	result, err := m.invoke(ctx, call.User, args)
	if err != nil {
		if call.ReportError != nil {
			code := CodeInternalError
			var rpcErr *Error
			if errors.As(err, &rpcErr) {
				code = rpcErr.Code
			}
			return call.ReportError(code, err.Error())
		}
		return err
	}
	if call.IntroduceResult != nil {
		if err := call.IntroduceResult(); err != nil {
			return err
		}
	}
	return writeResult(call.Result, result)
}

func (m *Method[A, R]) invoke(ctx context.Context, user *UserID, args A) (result R, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = NewError(CodeInternalError, "procedure panicked: %v", recovered)
		}
	}()
	return m.fn(ctx, user, args)
}

// Invoke runs the procedure locally, without any serialization.
func (m *Method[A, R]) Invoke(ctx context.Context, args A) (R, error) {
	return m.invoke(ctx, nil, args)
}

// Send frames a remote call through the responder and returns a future for
// its result.
func (m *Method[A, R]) Send(responder Responder, user UserID, args A) (*Future[R], error) {
	token, err := responder.Send(user, m, func(out wire.Output, _ RequestToken) error {
		return serial.Write(out, args, wire.ObjectLayoutKnown)
	})
	if err != nil {
		return nil, err
	}
	return newFuture[R](responder, token), nil
}

func (m *Method[A, R]) Describe() (*MethodDesc, error) {
	params, err := serial.StructFields(reflect.TypeFor[A]())
	if err != nil {
		return nil, err
	}
	ret, err := describeReturn[R]()
	if err != nil {
		return nil, err
	}
	return &MethodDesc{
		Doc:      m.doc,
		Params:   params,
		Ret:      ret,
		RetDoc:   m.retDoc,
		ArgsType: reflect.TypeFor[A](),
	}, nil
}

func (m *Method[A, R]) ListTypes(add func(name string, fields []serial.FieldDescription) error) error {
	if err := serial.ReferencedTypes(reflect.TypeFor[A](), add); err != nil {
		return err
	}
	if isNoResult[R]() {
		return nil
	}
	return serial.ReferencedTypes(reflect.TypeFor[R](), add)
}

// NoResult marks a procedure without a return value.
type NoResult = struct{}

func isNoResult[R any]() bool {
	return reflect.TypeFor[R]() == reflect.TypeFor[NoResult]()
}

func describeReturn[R any]() (serial.TypeDescription, error) {
	if isNoResult[R]() {
		return serial.TypeDescription{Kind: serial.TypeNull}, nil
	}
	return serial.DescribeType(reflect.TypeFor[R]())
}

func writeResult(out wire.Output, result any) error {
	if out == nil {
		return nil
	}
	if _, none := result.(NoResult); none {
		// EmptyIsNull lets formats without a null representation drop it.
		return out.WriteNull(wire.EmptyIsNull)
	}
	return serial.Write(out, result, wire.None)
}
