package rpc

import (
	"github.com/honganh1206/relay/serial"
	"github.com/honganh1206/relay/wire"
)

// Future is a one-shot handle to an in-flight remote call. Get blocks until
// the response for the token arrives and caches the value; Ready polls the
// responder without blocking. A future that will not be consumed must be
// Discarded so the response is still drained off the transport — otherwise
// it sits in the responder's cache forever.
type Future[R any] struct {
	responder Responder
	token     RequestToken
	value     R
	done      bool
	err       error
}

func newFuture[R any](responder Responder, token RequestToken) *Future[R] {
	return &Future[R]{responder: responder, token: token}
}

// Token exposes the request token the future waits on.
func (f *Future[R]) Token() RequestToken { return f.token }

// Get blocks until the response arrives and returns the decoded value.
// Repeated calls return the cached result.
func (f *Future[R]) Get() (R, error) {
	if f.done {
		return f.value, f.err
	}
	f.done = true
	f.err = f.responder.GetResponse(f.token, func(in wire.Input) error {
		return serial.Read(in, &f.value, wire.None)
	})
	return f.value, f.err
}

// Ready reports whether Get would return without blocking.
func (f *Future[R]) Ready() (bool, error) {
	if f.done {
		return true, nil
	}
	return f.responder.HasResponse(f.token)
}

// Discard consumes the response without decoding it, keeping the transport
// free of orphaned entries. It is safe to call after Get.
func (f *Future[R]) Discard() error {
	if f.done {
		return nil
	}
	f.done = true
	f.err = ErrDiscarded
	return f.responder.GetResponse(f.token, func(in wire.Input) error {
		return in.SkipValue(wire.None)
	})
}

// ErrDiscarded is returned by Get after Discard.
var ErrDiscarded = NewError(CodeInternalError, "response was discarded")
