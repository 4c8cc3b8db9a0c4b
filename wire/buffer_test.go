package wire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandingBufferSmallWrites(t *testing.T) {
	buf := NewExpandingBuffer()
	buf.WriteString("hello ")
	buf.WriteString("world")
	buf.WriteByte('!')

	assert.Equal(t, 12, buf.Size())
	assert.Equal(t, "hello world!", buf.String())
}

func TestExpandingBufferGrowth(t *testing.T) {
	buf := NewExpandingBuffer()
	payload := strings.Repeat("x", 5000)
	buf.WriteString(payload)

	assert.Equal(t, len(payload), buf.Size())
	assert.Equal(t, payload, buf.String())

	// Keep growing well past the doubled area.
	buf.WriteString(payload)
	assert.Equal(t, 2*len(payload), buf.Size())
	assert.Equal(t, payload+payload, buf.String())
}

func TestExpandingBufferClear(t *testing.T) {
	buf := NewExpandingBuffer()
	buf.WriteString(strings.Repeat("y", 3000))
	buf.Clear()

	assert.Equal(t, 0, buf.Size())
	buf.WriteString("fresh")
	assert.Equal(t, "fresh", buf.String())
}

func TestFixedBufferTruncates(t *testing.T) {
	storage := make([]byte, 8)
	buf := NewFixedBuffer(storage)
	n, err := buf.WriteString("0123456789")
	require.NoError(t, err)

	// Overflow is suppressed, size truncates to what fit.
	assert.Equal(t, 10, n)
	assert.Equal(t, 8, buf.Size())
	assert.Equal(t, "01234567", string(buf.Bytes()))

	require.NoError(t, buf.WriteByte('z'))
	assert.Equal(t, 8, buf.Size())
}

func TestStreamingBufferFlushes(t *testing.T) {
	var flushed bytes.Buffer
	buf := NewStreamingBuffer(4, func(chunk []byte) error {
		_, err := flushed.Write(chunk)
		return err
	})

	buf.WriteString("abcdefghij")
	assert.Equal(t, 10, buf.Size())
	// Only full staging areas have drained so far.
	assert.Equal(t, "abcdefgh", flushed.String())

	require.NoError(t, buf.Flush())
	assert.Equal(t, "abcdefghij", flushed.String())
}
