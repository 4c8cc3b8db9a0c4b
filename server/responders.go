// Package server turns byte streams into HTTP requests and composed
// responder calls: the session state machine, the response writer with its
// back-patched Content-Length, and the responders that bridge HTTP to the
// RPC dispatcher and the callable tree.
package server

import (
	"context"

	"github.com/honganh1206/relay/httpmsg"
	"github.com/honganh1206/relay/wire"
)

// WriteStarter assembles one HTTP response. A responder calls exactly one of
// the two methods, then writes the body into the buffer it is handed. With
// an unknown size the Content-Length field is reserved padded and
// back-patched once the body is complete; with a known size it is written
// outright and the filler must produce exactly that many bytes.
type WriteStarter interface {
	WriteUnknownSize(contentType string, fill func(body wire.Buffer) error) error
	WriteKnownSize(contentType string, size int, fill func(body wire.Buffer) error) error
}

// GetResponder answers GET requests. Returning false without an error yields
// the canned 404 response.
type GetResponder interface {
	Get(ctx context.Context, path string, w WriteStarter) (bool, error)
}

// PostResponder answers POST requests once the whole body has been read.
// Returning false without an error yields the canned 400 response.
type PostResponder interface {
	Post(ctx context.Context, path, contentType string, body []byte, w WriteStarter) (bool, error)
}

// TCPResponder is what the transport drives: feed bytes, receive bytes to
// send through write, receive a framing verdict and the count of consumed
// bytes.
type TCPResponder interface {
	Respond(ctx context.Context, input []byte, write func(data []byte) error) (httpmsg.Reaction, int, error)
}

// DummyGetResponder refuses every GET.
type DummyGetResponder struct{}

func (DummyGetResponder) Get(context.Context, string, WriteStarter) (bool, error) {
	return false, nil
}

// DummyPostResponder refuses every POST.
type DummyPostResponder struct{}

func (DummyPostResponder) Post(context.Context, string, string, []byte, WriteStarter) (bool, error) {
	return false, nil
}

// SimpleGetResponder serves one fixed resource on every path.
type SimpleGetResponder struct {
	Resource    string
	ContentType string
}

func (r SimpleGetResponder) Get(_ context.Context, _ string, w WriteStarter) (bool, error) {
	contentType := r.ContentType
	if contentType == "" {
		contentType = "text/html"
	}
	err := w.WriteKnownSize(contentType, len(r.Resource), func(body wire.Buffer) error {
		_, err := body.WriteString(r.Resource)
		return err
	})
	return err == nil, err
}
