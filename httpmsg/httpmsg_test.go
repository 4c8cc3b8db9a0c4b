package httpmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRequest = "POST / HTTP/1.1\r\n" +
	"Host: example.com\r\n" +
	"Content-Type: application/json\r\n" +
	"Content-Length: 11\r\n" +
	"\r\n" +
	`{"a":"b c"}`

type parsedMessage struct {
	firstLine string
	headers   map[string]string
	bodySize  int
	headerEnd int
}

func parseAll(t *testing.T, state *ParseState, input []byte) (Reaction, parsedMessage) {
	t.Helper()
	message := parsedMessage{headers: map[string]string{}}
	reaction, position, err := state.Parse(input,
		func(line []byte) error {
			message.firstLine = string(line)
			return nil
		},
		func(name, value []byte) error {
			message.headers[string(name)] = string(value)
			return nil
		})
	require.NoError(t, err)
	message.bodySize = state.BodySize
	message.headerEnd = position
	return reaction, message
}

func TestParseCompleteMessage(t *testing.T) {
	state := NewParseState()
	reaction, message := parseAll(t, &state, []byte(sampleRequest))

	assert.Equal(t, OK, reaction)
	assert.Equal(t, "POST / HTTP/1.1", message.firstLine)
	assert.Equal(t, "example.com", message.headers["Host"])
	assert.Equal(t, "application/json", message.headers["Content-Type"])
	// Content-Length is captured, not passed through.
	assert.NotContains(t, message.headers, "Content-Length")
	assert.Equal(t, 11, message.bodySize)
	assert.Equal(t, `{"a":"b c"}`, string(state.Body([]byte(sampleRequest))))
	assert.Equal(t, len(sampleRequest), state.Consumed())
}

func TestParseByteByByteMatchesAllAtOnce(t *testing.T) {
	wholeState := NewParseState()
	wholeReaction, whole := parseAll(t, &wholeState, []byte(sampleRequest))
	require.Equal(t, OK, wholeReaction)

	// Feed the same message one byte at a time through one resumable state.
	state := NewParseState()
	var reaction Reaction
	var message parsedMessage
	for i := 1; i <= len(sampleRequest); i++ {
		if state.Done {
			break
		}
		reaction, message = parseAll(t, &state, []byte(sampleRequest[:i]))
		if reaction == OK {
			break
		}
		require.Equal(t, ReadOn, reaction)
	}
	require.Equal(t, OK, reaction)

	assert.Equal(t, whole.firstLine, message.firstLine)
	assert.Equal(t, whole.headers, message.headers)
	assert.Equal(t, whole.bodySize, message.bodySize)
	assert.Equal(t, whole.headerEnd, message.headerEnd)
	assert.Equal(t, wholeState.Consumed(), state.Consumed())
}

func TestParseNeedsCRLF(t *testing.T) {
	// Bare LF line endings never complete a header.
	state := NewParseState()
	reaction, _, err := state.Parse([]byte("GET / HTTP/1.1\n\n"), func([]byte) error { return nil }, nil)
	require.NoError(t, err)
	assert.Equal(t, ReadOn, reaction)
}

func TestParseHeaderNamesAreCaseSensitive(t *testing.T) {
	request := "GET / HTTP/1.1\r\ncontent-length: 5\r\n\r\n"
	state := NewParseState()
	reaction, message := parseAll(t, &state, []byte(request))
	require.Equal(t, OK, reaction)

	// The lowercase variant is passed through as an ordinary header, not
	// captured as the body size.
	assert.Equal(t, BodySizeUnknown, message.bodySize)
	assert.Equal(t, "5", message.headers["content-length"])
}

func TestParseFirstLineErrorDisconnects(t *testing.T) {
	state := NewParseState()
	reaction, _, err := state.Parse([]byte("NONSENSE\r\n\r\n"), func(line []byte) error {
		return assert.AnError
	}, nil)
	assert.Equal(t, Disconnect, reaction)
	assert.Error(t, err)
}

func TestParseResumesWithoutRescanning(t *testing.T) {
	half := sampleRequest[:20]
	state := NewParseState()
	reaction, _, err := state.Parse([]byte(half), func([]byte) error { return nil }, nil)
	require.NoError(t, err)
	require.Equal(t, ReadOn, reaction)
	before := state.Transition

	reaction, message := parseAll(t, &state, []byte(sampleRequest))
	assert.Equal(t, OK, reaction)
	assert.Greater(t, state.Transition, before)
	assert.Equal(t, "POST / HTTP/1.1", message.firstLine)
}

func TestReset(t *testing.T) {
	state := NewParseState()
	reaction, _ := parseAll(t, &state, []byte(sampleRequest))
	require.Equal(t, OK, reaction)

	state.Reset()
	assert.Equal(t, 0, state.Transition)
	assert.Equal(t, BodySizeUnknown, state.BodySize)
	assert.False(t, state.Done)
}
