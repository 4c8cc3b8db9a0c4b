package server

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/honganh1206/relay/httpmsg"
	"github.com/honganh1206/relay/wire"
)

// Server pairs a GET responder with a POST responder and hands out sessions.
// The server itself holds no per-connection state; each connection gets its
// own Session, owned by whatever executor accepted it.
type Server struct {
	get  GetResponder
	post PostResponder
}

// New builds a server from the two responders; nil ones refuse their method.
func New(get GetResponder, post PostResponder) *Server {
	if get == nil {
		get = DummyGetResponder{}
	}
	if post == nil {
		post = DummyPostResponder{}
	}
	return &Server{get: get, post: post}
}

// NewSession returns a fresh per-connection session.
func (s *Server) NewSession() *Session {
	return &Session{
		responders: s,
		state:      httpmsg.NewParseState(),
	}
}

type requestType int

const (
	uninvestigatedRequest requestType = iota
	getRequest
	postRequest
	weirdRequest
)

// Session is the per-connection request state machine. Feed it the buffered
// bytes of the connection; it consumes exactly the bytes of each complete
// message and answers through the write callback.
type Session struct {
	responders  *Server
	requestType requestType
	path        string
	contentType string
	ending      httpmsg.Reaction
	state       httpmsg.ParseState
}

func (s *Session) restore() {
	s.state.Reset()
	s.requestType = uninvestigatedRequest
	s.path = ""
	s.contentType = ""
}

var _ TCPResponder = (*Session)(nil)

// Respond implements TCPResponder.
func (s *Session) Respond(ctx context.Context, input []byte, write func(data []byte) error) (httpmsg.Reaction, int, error) {
	firstLine := func(line []byte) error {
		parts := strings.SplitN(string(line), " ", 3)
		if len(parts) != 3 {
			s.requestType = weirdRequest
			return nil
		}
		switch parts[0] {
		case "GET":
			s.requestType = getRequest
		case "POST":
			s.requestType = postRequest
		default:
			s.requestType = weirdRequest
		}
		s.path = parts[1]
		if parts[2] != "HTTP/1.1" && parts[2] != "HTTP/1.0" {
			s.requestType = weirdRequest
		}
		return nil
	}
	header := func(name, value []byte) error {
		switch string(name) {
		case "Content-Type":
			s.contentType = string(value)
		case "Connection":
			if string(value) == "close" {
				s.ending = httpmsg.Disconnect
			}
		}
		return nil
	}

	if !s.state.Done {
		reaction, position, err := s.state.Parse(input, firstLine, header)
		if reaction != httpmsg.OK {
			return reaction, position, err
		}
	}

	if s.requestType != postRequest {
		s.state.BodySize = 0
	} else if s.state.BodySize == httpmsg.BodySizeUnknown || len(input) < s.state.Consumed() {
		return httpmsg.ReadOn, len(input), nil
	}
	consuming := s.state.Consumed()

	if s.requestType != getRequest && s.requestType != postRequest {
		if err := write(cannedResponse(501, "Method Not Implemented", "Error 501: Method not implemented")); err != nil {
			return httpmsg.Disconnect, consuming, err
		}
		s.restore()
		return s.ending, consuming, nil
	}

	response := wire.NewExpandingBuffer()
	starter := &responseWriter{response: response}
	success, err := s.dispatch(ctx, input, starter)
	switch {
	case err != nil:
		response.Clear()
		response.Write(cannedResponse(500, "Internal Server Error", "Error 500: Internal server error"))
	case !success && s.requestType == getRequest:
		response.Clear()
		response.Write(cannedResponse(404, "Not Found", "Error 404: Resource not found"))
	case !success:
		response.Clear()
		response.Write(cannedResponse(400, "Bad Request", "Error 400: Bad request"))
	case starter.started:
		starter.patchLength()
	default:
		// The responder succeeded without writing anything: no content.
		response.WriteString("HTTP/1.1 204 No Content\r\n\r\n")
	}

	if err := write(response.Bytes()); err != nil {
		return httpmsg.Disconnect, consuming, err
	}
	s.restore()
	return s.ending, consuming, nil
}

// dispatch runs the matching responder, containing its panics.
func (s *Session) dispatch(ctx context.Context, input []byte, starter *responseWriter) (success bool, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			success = false
			err = fmt.Errorf("responder panicked: %v", recovered)
		}
	}()
	if s.requestType == getRequest {
		return s.responders.get.Get(ctx, s.path, starter)
	}
	return s.responders.post.Post(ctx, s.path, s.contentType, s.state.Body(input), starter)
}

func cannedResponse(status int, reason, title string) []byte {
	body := "<!doctype html><html lang=en><title>" + title + "</title>"
	return []byte(fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Length: %d\r\n\r\n%s", status, reason, len(body), body))
}

const lengthFieldPadding = 10

// responseWriter assembles a 200 response into the session's buffer. With an
// unknown body size it reserves a padded Content-Length value and patches
// the digits in place once the body has been written.
type responseWriter struct {
	response    *wire.ExpandingBuffer
	started     bool
	patchAt     int
	headerSize  int
	knownLength bool
}

func (w *responseWriter) start(contentType, lengthField string) {
	w.started = true
	w.response.WriteString("HTTP/1.1 200 OK\r\nContent-Length: ")
	w.patchAt = w.response.Size()
	w.response.WriteString(lengthField)
	w.response.WriteString("\r\nContent-Type: ")
	w.response.WriteString(contentType)
	w.response.WriteString("\r\n\r\n")
	w.headerSize = w.response.Size()
}

func (w *responseWriter) WriteUnknownSize(contentType string, fill func(body wire.Buffer) error) error {
	w.start(contentType, "0"+strings.Repeat(" ", lengthFieldPadding-1))
	return fill(w.response)
}

func (w *responseWriter) WriteKnownSize(contentType string, size int, fill func(body wire.Buffer) error) error {
	w.start(contentType, strconv.Itoa(size))
	w.knownLength = true
	before := w.response.Size()
	if err := fill(w.response); err != nil {
		return err
	}
	if w.response.Size()-before != size {
		return fmt.Errorf("responder wrote %d body bytes, promised %d", w.response.Size()-before, size)
	}
	return nil
}

// patchLength writes the real body size over the reserved field.
func (w *responseWriter) patchLength() {
	if w.knownLength {
		return
	}
	digits := strconv.Itoa(w.response.Size() - w.headerSize)
	copy(w.response.Bytes()[w.patchAt:w.patchAt+len(digits)], digits)
}
