// Package rpc is the object model for remote procedures: a tree of callables
// fixed at startup, traversable by name at run time, invokable from parsed
// argument streams and reflectable into a service description. It also holds
// the JSON-RPC 2.0 server protocol that drives the tree.
package rpc

import (
	"context"
	"reflect"
	"strings"

	"github.com/honganh1206/relay/serial"
	"github.com/honganh1206/relay/wire"
)

// UserID is an opaque user identifier passed through to procedures. The
// framework never interprets it.
type UserID int64

// RequestToken identifies an outstanding client request. It wraps around on
// overflow; equality is by value.
type RequestToken uint32

// Next returns the token following t, with defined wraparound.
func (t RequestToken) Next() RequestToken { return t + 1 }

// Call carries everything a procedure invocation needs besides the context.
type Call struct {
	// Args is the argument stream, nil when the request carried none.
	Args wire.Input
	// Result receives the return value.
	Result wire.Output
	// IntroduceResult is called once before the return value is written,
	// letting the envelope writer emit whatever introduces it.
	IntroduceResult func() error
	// ReportError receives procedure failures when the caller wants them
	// reported instead of returned; may be nil.
	ReportError func(code Code, message string) error
	// User is the opaque user identifier, when the transport knows one.
	User *UserID
}

// MethodDesc describes one procedure: its documentation and the same
// argument table the dispatcher routes by.
type MethodDesc struct {
	Doc    string
	Params []serial.FieldDescription
	Ret    serial.TypeDescription
	RetDoc string
	// ArgsType is the argument struct's type, for schema reflectors.
	ArgsType reflect.Type
}

// DescriptionFiller is the sink a callable tree describes itself into.
// Implementations turn the walk into a concrete document format.
type DescriptionFiller interface {
	AddMethod(name, doc string, params []serial.FieldDescription, ret serial.TypeDescription, retDoc string) error
	AddNamespace(name string, fill func(DescriptionFiller) error) error
}

// Callable is a node in the RPC tree: a procedure or a namespace of them.
// Children are fixed at construction; their names are literals.
type Callable interface {
	// Call invokes the procedure. Namespaces fail.
	Call(ctx context.Context, call Call) error

	// ChildByName returns the named child, or nil.
	ChildByName(name string) Callable
	// ChildByIndex returns the child at the given registration index, or nil.
	ChildByIndex(index int) Callable
	// ChildName finds the name and index a child was registered under.
	ChildName(child Callable) (name string, index int, ok bool)
	// Parent returns the containing namespace, or nil at the root.
	Parent() Callable
	// SetParent back-references the containing namespace. It is called once,
	// during registration.
	SetParent(parent Callable)

	// Describe returns the procedure's description, or nil for namespaces.
	Describe() (*MethodDesc, error)
	// DescribeMethods walks a namespace's children into the filler.
	DescribeMethods(filler DescriptionFiller) error
	// ListTypes reports every declared data type the callable references,
	// once each.
	ListTypes(add func(name string, fields []serial.FieldDescription) error) error
}

// FindCallable resolves a separator-joined path in the tree, returning nil
// when any segment is unknown. An empty path is the root itself.
func FindCallable(root Callable, path, separator string) Callable {
	if root == nil {
		return nil
	}
	current := root
	if path == "" {
		return current
	}
	for _, segment := range strings.Split(path, separator) {
		current = current.ChildByName(segment)
		if current == nil {
			return nil
		}
	}
	return current
}

// PathOf reconstructs a callable's separator-joined path from its parent
// back-references.
func PathOf(callable Callable, separator string) string {
	var segments []string
	for callable != nil {
		parent := callable.Parent()
		if parent == nil {
			break
		}
		name, _, ok := parent.ChildName(callable)
		if !ok {
			break
		}
		segments = append(segments, name)
		callable = parent
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, separator)
}

// Responder frames requests for a bound callable and later yields their
// responses. The HTTP client implements it; tests use in-process fakes.
type Responder interface {
	// Send assigns a token, frames a request for the method and hands the
	// argument writing to write.
	Send(user UserID, method Callable, write func(out wire.Output, token RequestToken) error) (RequestToken, error)
	// GetResponse finds the response matching token and feeds its parsed
	// body to read. It blocks until the response arrives.
	GetResponse(token RequestToken, read func(in wire.Input) error) error
	// HasResponse polls for a response without blocking.
	HasResponse(token RequestToken) (bool, error)
}

// leaf is embedded by procedures: no children, a parent back-reference.
type leaf struct {
	parent Callable
}

func (l *leaf) ChildByName(string) Callable { return nil }

func (l *leaf) ChildByIndex(int) Callable { return nil }

func (l *leaf) ChildName(Callable) (string, int, bool) { return "", 0, false }

func (l *leaf) Parent() Callable { return l.parent }

func (l *leaf) SetParent(parent Callable) { l.parent = parent }

func (l *leaf) DescribeMethods(DescriptionFiller) error { return nil }
