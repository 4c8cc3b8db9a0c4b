package server

import (
	"context"
	"strings"

	"github.com/honganh1206/relay/codec"
	"github.com/honganh1206/relay/rpc"
	"github.com/honganh1206/relay/wire"
	"github.com/honganh1206/relay/wsp"
)

// RPCPostResponder feeds JSON POST bodies to the JSON-RPC dispatcher. A
// request that produced no response bytes — a notification — starts no
// response, which the session answers with 204.
type RPCPostResponder struct {
	Protocol *rpc.ServerProtocol
}

// NewRPCPostResponder wires a dispatcher over the callable tree.
func NewRPCPostResponder(root rpc.Callable) *RPCPostResponder {
	return &RPCPostResponder{Protocol: rpc.NewServerProtocol(root)}
}

func (r *RPCPostResponder) Post(ctx context.Context, _ string, contentType string, body []byte, w WriteStarter) (bool, error) {
	if contentType != "application/json" {
		return false, nil
	}
	response := wire.NewExpandingBuffer()
	if !r.Protocol.Respond(ctx, nil, body, response) {
		return false, nil
	}
	if response.Size() == 0 {
		return true, nil
	}
	err := w.WriteUnknownSize("application/json", func(body wire.Buffer) error {
		_, err := body.Write(response.Bytes())
		return err
	})
	return err == nil, err
}

// FormPostResponder invokes a slash-path procedure from an HTML form body,
// discarding the result. The empty 204 response is the acknowledgement.
type FormPostResponder struct {
	Root rpc.Callable
}

func (r *FormPostResponder) Post(ctx context.Context, path, _ string, body []byte, _ WriteStarter) (bool, error) {
	method := rpc.FindCallable(r.Root, strings.TrimPrefix(path, "/"), "/")
	if method == nil {
		return false, nil
	}
	input := codec.NewFormInput(string(body))
	if err := method.Call(ctx, rpc.Call{Args: input, Result: wire.NullOutput{}}); err != nil {
		return false, nil
	}
	return true, nil
}

// GetRPCResponder resolves GET requests with a query string as procedure
// calls: the slash path locates the callable, the query becomes its
// URL-form-encoded arguments. Requests without a query fall through to the
// page provider, and when a page shadows a method's path the method still
// runs with its output discarded.
type GetRPCResponder struct {
	Pages GetResponder
	Root  rpc.Callable
}

func (r *GetRPCResponder) Get(ctx context.Context, fullPath string, w WriteStarter) (bool, error) {
	path, query, hasQuery := strings.Cut(fullPath, "?")
	var method rpc.Callable
	if hasQuery && r.Root != nil {
		method = rpc.FindCallable(r.Root, strings.TrimPrefix(path, "/"), "/")
	}

	pageFound := false
	var pageErr error
	if r.Pages != nil {
		pageFound, pageErr = r.Pages.Get(ctx, path, w)
	}

	if method == nil {
		return pageFound, pageErr
	}
	args := codec.NewFormInput(query)
	if pageFound {
		// The page took the response; run the method silently.
		_ = method.Call(ctx, rpc.Call{Args: args, Result: wire.NullOutput{}})
		return true, nil
	}
	err := w.WriteUnknownSize("application/x-www-form-urlencoded", func(body wire.Buffer) error {
		return method.Call(ctx, rpc.Call{Args: args, Result: codec.NewFormOutput(body)})
	})
	return err == nil, err
}

// DescriptionGetResponder serves the service description documents and
// passes every other path along.
type DescriptionGetResponder struct {
	Next        GetResponder
	Root        rpc.Callable
	ServiceName string
	URL         string
}

// DescriptionPath is where the JSON-WSP document is served.
const DescriptionPath = "/description.json"

// SchemaPath is where the argument JSON Schemas are served.
const SchemaPath = "/schema.json"

func (r *DescriptionGetResponder) Get(ctx context.Context, path string, w WriteStarter) (bool, error) {
	switch path {
	case DescriptionPath:
		err := w.WriteUnknownSize("application/json", func(body wire.Buffer) error {
			return wsp.Describe(r.Root, r.ServiceName, r.URL, body)
		})
		return err == nil, err
	case SchemaPath:
		document, err := wsp.SchemaDocument(r.Root, r.ServiceName)
		if err != nil {
			return false, err
		}
		err = w.WriteKnownSize("application/json", len(document), func(body wire.Buffer) error {
			_, err := body.Write(document)
			return err
		})
		return err == nil, err
	}
	if r.Next == nil {
		return false, nil
	}
	return r.Next.Get(ctx, path, w)
}

// RPCServerOptions configure NewRPCServer.
type RPCServerOptions struct {
	ServiceName string
	URL         string
	// Pages optionally serves static content next to the RPC endpoints.
	Pages GetResponder
}

// NewRPCServer composes the full JSON-RPC-over-HTTP server: POST dispatch,
// GET-side calls, and the description endpoints.
func NewRPCServer(root rpc.Callable, opts RPCServerOptions) *Server {
	get := &DescriptionGetResponder{
		Root:        root,
		ServiceName: opts.ServiceName,
		URL:         opts.URL,
		Next:        &GetRPCResponder{Pages: opts.Pages, Root: root},
	}
	return New(get, NewRPCPostResponder(root))
}
