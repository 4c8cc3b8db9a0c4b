// Package client is the calling side: it frames JSON-RPC requests as HTTP
// POSTs over a byte-stream transport, allocates request tokens, and
// demultiplexes responses that may arrive in any order.
package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/honganh1206/relay/codec"
	"github.com/honganh1206/relay/httpmsg"
	"github.com/honganh1206/relay/rpc"
	"github.com/honganh1206/relay/wire"
)

// TCPClient is the byte-stream transport a client drives. GetResponse keeps
// feeding the connection's buffered bytes to read until it settles: ReadOn
// asks for more bytes, WrongReply discards the consumed prefix (the caller
// took custody of it) and continues, OK finishes. identified is true when
// the bytes were already matched to the requested token by the transport.
type TCPClient interface {
	WriteRequest(data []byte) error
	GetResponse(token rpc.RequestToken, read func(data []byte, identified bool) (httpmsg.Reaction, rpc.RequestToken, int, error)) error
}

// NonBlockingTCPClient is implemented by transports that can poll.
// TryGetResponse behaves like GetResponse but returns false instead of
// blocking when no complete response is available.
type NonBlockingTCPClient interface {
	TryGetResponse(token rpc.RequestToken, read func(data []byte, identified bool) (httpmsg.Reaction, rpc.RequestToken, int, error)) (bool, error)
}

// RemoteError reports that the server answered with a failure: a non-2xx
// status, or a JSON-RPC error member.
type RemoteError struct {
	Status  int
	Code    rpc.Code
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server did not respond with OK (status %d)", e.Status)
	}
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// HTTPClient speaks JSON-RPC 2.0 over HTTP POST. It owns the outbound
// stream, the next token to assign, the last token it parsed, and a cache of
// response bodies that arrived before anyone asked for them. It implements
// rpc.Responder, so typed methods can be sent through it. Like the sessions
// on the server side, a client belongs to one executor; it is not for
// concurrent use.
type HTTPClient struct {
	transport        TCPClient
	virtualHost      string
	lastTokenWritten rpc.RequestToken
	lastTokenRead    rpc.RequestToken
	responses        map[rpc.RequestToken][]byte
}

var _ rpc.Responder = (*HTTPClient)(nil)

// NewHTTPClient returns a client over the transport, with the Host header
// value to advertise.
func NewHTTPClient(transport TCPClient, virtualHost string) *HTTPClient {
	return &HTTPClient{
		transport:   transport,
		virtualHost: virtualHost,
		responses:   make(map[rpc.RequestToken][]byte),
	}
}

// Send implements rpc.Responder: it frames one JSON-RPC request envelope for
// the method and hands the params object to write.
func (c *HTTPClient) Send(_ rpc.UserID, method rpc.Callable, write func(out wire.Output, token rpc.RequestToken) error) (rpc.RequestToken, error) {
	methodName := rpc.PathOf(method, ".")
	return c.SendRequest("application/json", func(body wire.Buffer, token rpc.RequestToken) error {
		output := codec.NewJSONOutput(body)
		envelope := wire.BeginObject(output, 4)
		envelope.WriteString("jsonrpc", "2.0")
		envelope.WriteInt("id", int64(token))
		envelope.WriteString("method", methodName)
		params := envelope.Member("params")
		if err := envelope.Err(); err != nil {
			return err
		}
		if err := write(params, token); err != nil {
			return err
		}
		return envelope.End()
	})
}

const lengthFieldPadding = 10

// SendRequest allocates the next token, frames a POST to / with a reserved
// Content-Length, lets write produce the body, back-patches the length and
// flushes the request to the transport.
func (c *HTTPClient) SendRequest(contentType string, write func(body wire.Buffer, token rpc.RequestToken) error) (rpc.RequestToken, error) {
	token := c.lastTokenWritten.Next()

	request := wire.NewExpandingBuffer()
	request.WriteString("POST / HTTP/1.1\r\nContent-Length: ")
	patchAt := request.Size()
	request.WriteString("0" + strings.Repeat(" ", lengthFieldPadding-1))
	request.WriteString("\r\nHost: ")
	request.WriteString(c.virtualHost)
	request.WriteString("\r\nContent-Type: ")
	request.WriteString(contentType)
	request.WriteString("\r\n\r\n")
	headerSize := request.Size()

	if err := write(request, token); err != nil {
		return 0, err
	}
	digits := strconv.Itoa(request.Size() - headerSize)
	copy(request.Bytes()[patchAt:patchAt+len(digits)], digits)

	if err := c.transport.WriteRequest(request.Bytes()); err != nil {
		return 0, err
	}
	c.lastTokenWritten = token
	return token, nil
}

// Get frames a bare GET request for a resource; its response is not a
// JSON-RPC envelope and is retrieved through GetRawResponse.
func (c *HTTPClient) Get(resource string) (rpc.RequestToken, error) {
	if resource == "" {
		resource = "/"
	}
	token := c.lastTokenWritten.Next()
	request := wire.NewExpandingBuffer()
	request.WriteString("GET ")
	request.WriteString(resource)
	request.WriteString(" HTTP/1.1\r\nHost: ")
	request.WriteString(c.virtualHost)
	request.WriteString("\r\n\r\n")
	if err := c.transport.WriteRequest(request.Bytes()); err != nil {
		return 0, err
	}
	c.lastTokenWritten = token
	return token, nil
}

// GetRawResponse retrieves the next HTTP response on the stream without
// interpreting its body as JSON-RPC — for plain GET resources like the
// description documents.
func (c *HTTPClient) GetRawResponse(token rpc.RequestToken, read func(status int, body []byte) error) error {
	state := httpmsg.NewParseState()
	var status int
	return c.transport.GetResponse(token, func(data []byte, identified bool) (httpmsg.Reaction, rpc.RequestToken, int, error) {
		if !state.Done {
			reaction, _, err := state.Parse(data, func(line []byte) error {
				status = parseStatusLine(line)
				return nil
			}, nil)
			if reaction != httpmsg.OK {
				return reaction, 0, 0, err
			}
		}
		if state.BodySize > 0 && len(data) < state.Consumed() {
			return httpmsg.ReadOn, 0, 0, nil
		}
		if err := read(status, state.Body(data)); err != nil {
			return httpmsg.Disconnect, 0, state.Consumed(), err
		}
		return httpmsg.OK, token, state.Consumed(), nil
	})
}

// GetResponse implements rpc.Responder: it blocks until the response for
// token is available and feeds the result value of its envelope to read.
func (c *HTTPClient) GetResponse(token rpc.RequestToken, read func(in wire.Input) error) error {
	if body, ok := c.responses[token]; ok {
		delete(c.responses, token)
		return parseResponseEnvelope(body, read)
	}
	var delivered bool
	var deliverErr error
	sink := c.responseSink(token, read, &delivered, &deliverErr)
	for !delivered {
		if err := c.transport.GetResponse(token, sink); err != nil {
			return err
		}
		if !delivered {
			if body, ok := c.responses[token]; ok {
				delete(c.responses, token)
				return parseResponseEnvelope(body, read)
			}
		}
	}
	return deliverErr
}

// HasResponse implements rpc.Responder without blocking.
func (c *HTTPClient) HasResponse(token rpc.RequestToken) (bool, error) {
	if _, ok := c.responses[token]; ok {
		return true, nil
	}
	poller, ok := c.transport.(NonBlockingTCPClient)
	if !ok {
		return false, nil
	}
	// Probe only: a matching response is cached for the real GetResponse.
	handled, err := poller.TryGetResponse(token, func(data []byte, identified bool) (httpmsg.Reaction, rpc.RequestToken, int, error) {
		state := httpmsg.NewParseState()
		reaction, _, err := state.Parse(data, func([]byte) error { return nil }, nil)
		if reaction != httpmsg.OK {
			return reaction, 0, 0, err
		}
		if state.BodySize > 0 && len(data) < state.Consumed() {
			return httpmsg.ReadOn, 0, 0, nil
		}
		body := state.Body(data)
		envelopeToken, ok := probeEnvelopeID(body)
		if !ok {
			return httpmsg.Disconnect, 0, state.Consumed(), fmt.Errorf("response carried no usable id")
		}
		c.responses[envelopeToken] = append([]byte(nil), body...)
		if envelopeToken == token {
			c.lastTokenRead = envelopeToken
			return httpmsg.OK, envelopeToken, state.Consumed(), nil
		}
		return httpmsg.WrongReply, envelopeToken, state.Consumed(), nil
	})
	if err != nil {
		return false, err
	}
	if !handled {
		return false, nil
	}
	_, buffered := c.responses[token]
	return buffered, nil
}

// responseSink builds the transport callback that parses HTTP responses,
// delivers the one matching token and stashes the rest under their own
// tokens.
func (c *HTTPClient) responseSink(token rpc.RequestToken, read func(in wire.Input) error, delivered *bool, deliverErr *error) func(data []byte, identified bool) (httpmsg.Reaction, rpc.RequestToken, int, error) {
	state := httpmsg.NewParseState()
	var status int
	return func(data []byte, identified bool) (httpmsg.Reaction, rpc.RequestToken, int, error) {
		if !state.Done {
			reaction, _, err := state.Parse(data, func(line []byte) error {
				status = parseStatusLine(line)
				return nil
			}, nil)
			if reaction != httpmsg.OK {
				return reaction, 0, 0, err
			}
		}
		if state.BodySize > 0 && len(data) < state.Consumed() {
			return httpmsg.ReadOn, 0, 0, nil
		}
		body := state.Body(data)
		consumed := state.Consumed()
		statusSeen := status
		state = httpmsg.NewParseState()
		status = 0

		envelopeToken, ok := probeEnvelopeID(body)
		if !ok {
			return httpmsg.Disconnect, 0, consumed, fmt.Errorf("response carried no usable id")
		}
		if identified || envelopeToken == token {
			*delivered = true
			if statusSeen < 200 || statusSeen >= 300 {
				*deliverErr = &RemoteError{Status: statusSeen}
			} else {
				*deliverErr = parseResponseEnvelope(body, read)
			}
			if !identified {
				c.lastTokenRead = envelopeToken
			}
			return httpmsg.OK, envelopeToken, consumed, nil
		}
		// A response for a different request: keep its body and read on.
		c.responses[envelopeToken] = append([]byte(nil), body...)
		return httpmsg.WrongReply, envelopeToken, consumed, nil
	}
}

func parseStatusLine(line []byte) int {
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) < 2 {
		return 0
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	return status
}

// probeEnvelopeID extracts the id of a response envelope without consuming
// anything else. Only integer ids can be mapped back to tokens.
func probeEnvelopeID(body []byte) (rpc.RequestToken, bool) {
	input := codec.NewJSONInput(body)
	var id int64
	found := false
	err := input.ReadObject(wire.None, func(name string, _ bool, _ int) (bool, error) {
		if name != "id" {
			return true, input.SkipValue(wire.None)
		}
		kind, err := input.IdentifyType(wire.None)
		if err != nil {
			return false, err
		}
		if kind != wire.KindInteger {
			return false, input.SkipValue(wire.None)
		}
		value, err := input.ReadInt(wire.None)
		if err != nil {
			return false, err
		}
		id = value
		found = true
		return false, nil
	})
	if err != nil || !found {
		return 0, false
	}
	return rpc.RequestToken(uint32(id)), true
}

// parseResponseEnvelope walks a response envelope, tolerating any member
// order, and feeds the result value to read. An error member becomes a
// RemoteError.
func parseResponseEnvelope(body []byte, read func(in wire.Input) error) error {
	input := codec.NewJSONInput(body)
	sawResult := false
	var remoteErr *RemoteError
	err := input.ReadObject(wire.None, func(name string, _ bool, _ int) (bool, error) {
		switch name {
		case "jsonrpc":
			version, err := input.ReadString(wire.None)
			if err != nil {
				return false, err
			}
			if version != "2.0" {
				return false, fmt.Errorf("unknown JSON-RPC version %q", version)
			}
		case "id":
			if err := input.SkipValue(wire.None); err != nil {
				return false, err
			}
		case "result":
			if err := read(input); err != nil {
				return false, err
			}
			sawResult = true
		case "error":
			remoteErr = &RemoteError{Status: 200}
			err := input.ReadObject(wire.None, func(member string, _ bool, _ int) (bool, error) {
				switch member {
				case "code":
					code, err := input.ReadInt(wire.None)
					if err != nil {
						return false, err
					}
					remoteErr.Code = rpc.Code(code)
				case "message":
					message, err := input.ReadString(wire.None)
					if err != nil {
						return false, err
					}
					remoteErr.Message = message
				default:
					if err := input.SkipValue(wire.None); err != nil {
						return false, err
					}
				}
				return true, nil
			})
			if err != nil {
				return false, err
			}
		default:
			if err := input.SkipValue(wire.None); err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if remoteErr != nil {
		return remoteErr
	}
	if !sawResult {
		return fmt.Errorf("response carried neither result nor error")
	}
	return nil
}
