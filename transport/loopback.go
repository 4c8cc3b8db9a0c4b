// Package transport carries the byte streams between clients and server
// sessions: an in-process loopback, and the blocking TCP client plus accept
// loop used by real deployments. The framing and protocol layers only ever
// see the TCPClient and TCPResponder interfaces implemented here.
package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/honganh1206/relay/client"
	"github.com/honganh1206/relay/httpmsg"
	"github.com/honganh1206/relay/rpc"
	"github.com/honganh1206/relay/server"
)

// ErrClosed reports an operation on a finished loopback.
var ErrClosed = errors.New("transport: connection closed")

// Loopback connects a client directly to a server session in the same
// process. Requests are answered synchronously during WriteRequest, so
// GetResponse never blocks: either the bytes are already here or they are
// never coming.
type Loopback struct {
	ctx      context.Context
	session  server.TCPResponder
	pending  []byte // request bytes not yet consumed by the session
	received []byte // response bytes not yet consumed by the client
	closed   bool
}

// NewLoopback wires a fresh loopback to the session.
func NewLoopback(ctx context.Context, session server.TCPResponder) *Loopback {
	return &Loopback{ctx: ctx, session: session}
}

// WriteRequest feeds the bytes to the session and collects whatever it
// answers.
func (l *Loopback) WriteRequest(data []byte) error {
	if l.closed {
		return ErrClosed
	}
	l.pending = append(l.pending, data...)
	for len(l.pending) > 0 {
		reaction, consumed, err := l.session.Respond(l.ctx, l.pending, func(response []byte) error {
			l.received = append(l.received, response...)
			return nil
		})
		if err != nil {
			l.closed = true
			return err
		}
		switch reaction {
		case httpmsg.OK:
			l.pending = l.pending[consumed:]
		case httpmsg.ReadOn:
			return nil
		default:
			l.closed = true
			l.pending = nil
			return nil
		}
	}
	return nil
}

// GetResponse implements client.TCPClient over the synchronously collected
// bytes.
func (l *Loopback) GetResponse(token rpc.RequestToken, read func(data []byte, identified bool) (httpmsg.Reaction, rpc.RequestToken, int, error)) error {
	for {
		if len(l.received) == 0 {
			if l.closed {
				return ErrClosed
			}
			return fmt.Errorf("transport: no response buffered for token %d", token)
		}
		reaction, _, consumed, err := read(l.received, false)
		if err != nil {
			return err
		}
		switch reaction {
		case httpmsg.OK:
			l.received = l.received[consumed:]
			return nil
		case httpmsg.WrongReply:
			l.received = l.received[consumed:]
		case httpmsg.ReadOn:
			return fmt.Errorf("transport: response for token %d is truncated", token)
		default:
			l.closed = true
			return ErrClosed
		}
	}
}

// TryGetResponse implements client.NonBlockingTCPClient.
func (l *Loopback) TryGetResponse(token rpc.RequestToken, read func(data []byte, identified bool) (httpmsg.Reaction, rpc.RequestToken, int, error)) (bool, error) {
	for {
		if len(l.received) == 0 {
			return false, nil
		}
		reaction, _, consumed, err := read(l.received, false)
		if err != nil {
			return false, err
		}
		switch reaction {
		case httpmsg.OK:
			l.received = l.received[consumed:]
			return true, nil
		case httpmsg.WrongReply:
			l.received = l.received[consumed:]
		case httpmsg.ReadOn:
			return false, nil
		default:
			l.closed = true
			return false, ErrClosed
		}
	}
}

var _ client.TCPClient = (*Loopback)(nil)
var _ client.NonBlockingTCPClient = (*Loopback)(nil)
