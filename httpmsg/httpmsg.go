// Package httpmsg parses HTTP/1.x request and response messages
// incrementally. A ParseState can be fed a growing buffer over and over; it
// remembers how far it scanned, asks for more bytes when the message is
// incomplete, and reports exactly how much it consumed once whole. The rest
// of HTTP — methods, status codes, response assembly — lives with the server
// and client that drive it.
package httpmsg

import (
	"bytes"
	"strconv"
)

// Reaction is the verdict a parser or responder gives about a buffer.
type Reaction int

const (
	// OK: a complete message was processed.
	OK Reaction = iota
	// ReadOn: the message is incomplete, feed more bytes.
	ReadOn
	// WrongReply: the message belongs to a different request token.
	WrongReply
	// Disconnect: the stream is beyond repair, close the connection.
	Disconnect
)

func (r Reaction) String() string {
	switch r {
	case OK:
		return "ok"
	case ReadOn:
		return "read-on"
	case WrongReply:
		return "wrong-reply"
	case Disconnect:
		return "disconnect"
	}
	return "unknown"
}

// BodySizeUnknown means no Content-Length header has been seen yet.
const BodySizeUnknown = -1

var headerEnd = []byte("\r\n\r\n")

// ParseState is the resumable header parser shared by the server and the
// client. Transition is how many bytes of the buffer were scanned (and, once
// the header is found, the offset where the body starts); BodySize is the
// parsed Content-Length.
type ParseState struct {
	Transition int
	BodySize   int
	// Done flips once the whole header has been scanned; Parse must not be
	// called again on the same message after that.
	Done bool
}

// NewParseState returns a fresh parser.
func NewParseState() ParseState {
	return ParseState{BodySize: BodySizeUnknown}
}

// Reset prepares the state for the next message on the same stream.
func (s *ParseState) Reset() {
	s.Transition = 0
	s.BodySize = BodySizeUnknown
	s.Done = false
}

// Parse scans input for a complete header. While the terminating CRLFCRLF is
// missing it returns (ReadOn, scanned). Once found, firstLine receives the
// bytes before the first CR and header receives each "Name: Value" pair;
// Content-Length is captured into BodySize instead of being passed on. The
// return is then (OK, headerEnd) — the offset one past the blank line. A
// firstLine error means the stream is not speaking HTTP: (Disconnect, all).
//
// Only CRLF terminates lines, and header names are matched byte-exactly.
func (s *ParseState) Parse(input []byte, firstLine func(line []byte) error, header func(name, value []byte) error) (Reaction, int, error) {
	if len(input) < len(headerEnd) {
		return ReadOn, 0, nil
	}
	// Resume scanning where the previous feed stopped.
	from := s.Transition - len(headerEnd) + 1
	if from < 0 {
		from = 0
	}
	at := bytes.Index(input[from:], headerEnd)
	if at < 0 {
		s.Transition = len(input)
		return ReadOn, len(input), nil
	}
	s.Transition = from + at + len(headerEnd)

	head := input[:s.Transition-2] // keep one CRLF as the final terminator
	lineEnd := bytes.Index(head, []byte("\r\n"))
	if lineEnd < 0 {
		return Disconnect, len(input), nil
	}
	if err := firstLine(head[:lineEnd]); err != nil {
		return Disconnect, len(input), err
	}
	rest := head[lineEnd+2:]
	for len(rest) > 0 {
		lineEnd = bytes.Index(rest, []byte("\r\n"))
		if lineEnd < 0 {
			break
		}
		line := rest[:lineEnd]
		rest = rest[lineEnd+2:]
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		name := line[:colon]
		value := line[colon+1:]
		for len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
		if bytes.Equal(name, []byte("Content-Length")) {
			// A back-patched length field keeps its trailing space padding.
			size, err := strconv.Atoi(string(bytes.TrimRight(value, " ")))
			if err != nil {
				return Disconnect, len(input), err
			}
			s.BodySize = size
			continue
		}
		if header != nil {
			if err := header(name, value); err != nil {
				return Disconnect, len(input), err
			}
		}
	}
	s.Done = true
	return OK, s.Transition, nil
}

// Body bounds the body span [Transition, Transition+size) once the header is
// complete; a message without Content-Length has an empty body.
func (s *ParseState) Body(input []byte) []byte {
	size := s.BodySize
	if size < 0 {
		size = 0
	}
	return input[s.Transition : s.Transition+size]
}

// Consumed is the total size of the framed message: header plus body.
func (s *ParseState) Consumed() int {
	size := s.BodySize
	if size < 0 {
		size = 0
	}
	return s.Transition + size
}
