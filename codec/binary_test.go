package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honganh1206/relay/wire"
)

func TestBinaryIntWidths(t *testing.T) {
	buf := wire.NewExpandingBuffer()
	out := NewBinaryOutput(buf)
	require.NoError(t, out.WriteInt(wire.Int8, -1))
	require.NoError(t, out.WriteInt(wire.Uint16, 0x1234))
	require.NoError(t, out.WriteInt(wire.Int32, -2))
	require.NoError(t, out.WriteInt(wire.Int64, 1<<40))
	require.NoError(t, out.WriteInt(wire.None, 7)) // undetermined defaults to 4 bytes

	assert.Equal(t, 1+2+4+8+4, buf.Size())
	// Little-endian layout.
	assert.Equal(t, byte(0xff), buf.Bytes()[0])
	assert.Equal(t, []byte{0x34, 0x12}, buf.Bytes()[1:3])

	in := NewBinaryInput(buf.Bytes())
	readBack := func(flags wire.Flags) int64 {
		value, err := in.ReadInt(flags)
		require.NoError(t, err)
		return value
	}
	assert.Equal(t, int64(-1), readBack(wire.Int8))
	assert.Equal(t, int64(0x1234), readBack(wire.Uint16))
	assert.Equal(t, int64(-2), readBack(wire.Int32))
	assert.Equal(t, int64(1<<40), readBack(wire.Int64))
	assert.Equal(t, int64(7), readBack(wire.None))
}

func TestBinaryFloats(t *testing.T) {
	buf := wire.NewExpandingBuffer()
	out := NewBinaryOutput(buf)
	require.NoError(t, out.WriteFloat(wire.Float64, 3.25))
	require.NoError(t, out.WriteFloat(wire.Float32, -0.5))
	require.NoError(t, out.WriteFloat(wire.Float16, 1.5))

	in := NewBinaryInput(buf.Bytes())
	f64, err := in.ReadFloat(wire.Float64)
	require.NoError(t, err)
	assert.Equal(t, 3.25, f64)
	f32, err := in.ReadFloat(wire.Float32)
	require.NoError(t, err)
	assert.Equal(t, -0.5, f32)
	f16, err := in.ReadFloat(wire.Float16)
	require.NoError(t, err)
	assert.Equal(t, 1.5, f16)
}

func TestBinaryStringLengthPrefix(t *testing.T) {
	buf := wire.NewExpandingBuffer()
	out := NewBinaryOutput(buf)
	require.NoError(t, out.WriteString(wire.None, "hello"))

	assert.Equal(t, []byte{5, 0}, buf.Bytes()[:2])
	assert.Equal(t, "hello", string(buf.Bytes()[2:]))

	in := NewBinaryInput(buf.Bytes())
	value, err := in.ReadString(wire.None)
	require.NoError(t, err)
	assert.Equal(t, "hello", value)
}

func TestBinaryArrayRoundTrip(t *testing.T) {
	buf := wire.NewExpandingBuffer()
	out := NewBinaryOutput(buf)
	require.NoError(t, out.StartArray(wire.None, 3))
	for i := 0; i < 3; i++ {
		require.NoError(t, out.IntroduceArrayElement(wire.None, i))
		require.NoError(t, out.WriteInt(wire.Int32, int64(10+i)))
	}
	require.NoError(t, out.EndArray(wire.None))

	in := NewBinaryInput(buf.Bytes())
	require.NoError(t, in.StartArray(wire.None))
	var got []int64
	for {
		more, err := in.NextArrayElement(wire.None)
		require.NoError(t, err)
		if !more {
			break
		}
		value, err := in.ReadInt(wire.Int32)
		require.NoError(t, err)
		got = append(got, value)
	}
	require.NoError(t, in.EndArray(wire.None))
	assert.Equal(t, []int64{10, 11, 12}, got)
}

func TestBinaryUnknownSizeIsLogicError(t *testing.T) {
	out := NewBinaryOutput(wire.NewExpandingBuffer())
	err := out.StartArray(wire.None, wire.UnknownSize)
	var logicErr *wire.LogicError
	require.ErrorAs(t, err, &logicErr)
}

func TestBinaryObjectLayoutKnownOmitsNames(t *testing.T) {
	flags := wire.ObjectLayoutKnown
	buf := wire.NewExpandingBuffer()
	out := NewBinaryOutput(buf)
	require.NoError(t, out.StartObject(flags, 2))
	require.NoError(t, out.IntroduceObjectMember(flags, "a", 0))
	require.NoError(t, out.WriteInt(wire.Int8, 1))
	require.NoError(t, out.IntroduceObjectMember(flags, "b", 1))
	require.NoError(t, out.WriteInt(wire.Int8, 2))
	require.NoError(t, out.EndObject(flags))

	// Only the two value bytes made it to the wire.
	assert.Equal(t, []byte{1, 2}, buf.Bytes())

	in := NewBinaryInput(buf.Bytes())
	var got []int64
	err := in.ReadObject(flags, func(name string, named bool, index int) (bool, error) {
		assert.False(t, named)
		value, err := in.ReadInt(wire.Int8)
		if err != nil {
			return false, err
		}
		got = append(got, value)
		return len(got) < 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, got)
}

func TestBinaryObjectUnknownLayoutCarriesNames(t *testing.T) {
	buf := wire.NewExpandingBuffer()
	out := NewBinaryOutput(buf)
	require.NoError(t, out.StartObject(wire.None, 1))
	require.NoError(t, out.IntroduceObjectMember(wire.None, "answer", 0))
	require.NoError(t, out.WriteInt(wire.Int32, 42))
	require.NoError(t, out.EndObject(wire.None))

	in := NewBinaryInput(buf.Bytes())
	err := in.ReadObject(wire.None, func(name string, named bool, index int) (bool, error) {
		assert.True(t, named)
		assert.Equal(t, "answer", name)
		value, err := in.ReadInt(wire.Int32)
		assert.Equal(t, int64(42), value)
		return true, err
	})
	require.NoError(t, err)
}

func TestBinaryNestedArrayDepthLimit(t *testing.T) {
	// Encode a depth-4 nesting by hand: sizes of 1 all the way down.
	var encoded []byte
	for i := 0; i < 4; i++ {
		encoded = append(encoded, 1, 0)
	}
	in := NewBinaryInput(encoded)
	require.NoError(t, in.StartArray(wire.None))
	require.NoError(t, in.StartArray(wire.None))
	require.NoError(t, in.StartArray(wire.None))
	err := in.StartArray(wire.None)
	var logicErr *wire.LogicError
	require.ErrorAs(t, err, &logicErr)
}

func TestBinaryCannotSeekOrSkip(t *testing.T) {
	in := NewBinaryInput([]byte{1, 2, 3})
	var logicErr *wire.LogicError

	_, err := in.SeekObjectMember(wire.None, "x")
	require.ErrorAs(t, err, &logicErr)
	err = in.SkipValue(wire.None)
	require.ErrorAs(t, err, &logicErr)
	_, err = in.IdentifyType(wire.None)
	require.ErrorAs(t, err, &logicErr)
}

func TestBinaryOptional(t *testing.T) {
	buf := wire.NewExpandingBuffer()
	out := NewBinaryOutput(buf)
	require.NoError(t, out.WriteOptional(wire.None, false, func() error { return nil }))
	require.NoError(t, out.WriteOptional(wire.None, true, func() error {
		return out.WriteInt(wire.Int16, 99)
	}))

	in := NewBinaryInput(buf.Bytes())
	present, err := in.ReadOptional(wire.None, func() error { t.Fatal("absent value read"); return nil })
	require.NoError(t, err)
	assert.False(t, present)

	var got int64
	present, err = in.ReadOptional(wire.None, func() error {
		var readErr error
		got, readErr = in.ReadInt(wire.Int16)
		return readErr
	})
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, int64(99), got)
}
