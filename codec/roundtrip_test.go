package codec

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/honganh1206/relay/wire"
)

// Round trips: for every codec and supported scalar, deserialize(serialize(v))
// must give v back, modulo documented widening.

func TestJSONRoundTripProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("int64 survives JSON", prop.ForAll(func(v int64) bool {
		buf := wire.NewExpandingBuffer()
		if NewJSONOutput(buf).WriteInt(wire.None, v) != nil {
			return false
		}
		got, err := NewJSONInput(buf.Bytes()).ReadInt(wire.None)
		return err == nil && got == v
	}, gen.Int64()))

	properties.Property("string survives JSON", prop.ForAll(func(v string) bool {
		buf := wire.NewExpandingBuffer()
		if NewJSONOutput(buf).WriteString(wire.None, v) != nil {
			return false
		}
		got, err := NewJSONInput(buf.Bytes()).ReadString(wire.None)
		return err == nil && got == v
	}, gen.AnyString()))

	properties.Property("bool survives JSON", prop.ForAll(func(v bool) bool {
		buf := wire.NewExpandingBuffer()
		if NewJSONOutput(buf).WriteBool(wire.None, v) != nil {
			return false
		}
		got, err := NewJSONInput(buf.Bytes()).ReadBool(wire.None)
		return err == nil && got == v
	}, gen.Bool()))

	properties.TestingRun(t)
}

func TestBinaryRoundTripProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("int64 survives binary", prop.ForAll(func(v int64) bool {
		buf := wire.NewExpandingBuffer()
		if NewBinaryOutput(buf).WriteInt(wire.Int64, v) != nil {
			return false
		}
		got, err := NewBinaryInput(buf.Bytes()).ReadInt(wire.Int64)
		return err == nil && got == v
	}, gen.Int64()))

	properties.Property("int16 survives binary at its width", prop.ForAll(func(v int16) bool {
		buf := wire.NewExpandingBuffer()
		if NewBinaryOutput(buf).WriteInt(wire.Int16, int64(v)) != nil {
			return false
		}
		got, err := NewBinaryInput(buf.Bytes()).ReadInt(wire.Int16)
		return err == nil && got == int64(v)
	}, gen.Int16()))

	properties.Property("float64 survives binary", prop.ForAll(func(v float64) bool {
		buf := wire.NewExpandingBuffer()
		if NewBinaryOutput(buf).WriteFloat(wire.Float64, v) != nil {
			return false
		}
		got, err := NewBinaryInput(buf.Bytes()).ReadFloat(wire.Float64)
		return err == nil && got == v
	}, gen.Float64()))

	properties.Property("string survives binary", prop.ForAll(func(v string) bool {
		if len(v) > 0xffff {
			return true // beyond the 16-bit length prefix by construction
		}
		buf := wire.NewExpandingBuffer()
		if NewBinaryOutput(buf).WriteString(wire.None, v) != nil {
			return false
		}
		got, err := NewBinaryInput(buf.Bytes()).ReadString(wire.None)
		return err == nil && got == v
	}, gen.AnyString()))

	properties.TestingRun(t)
}

func TestFormRoundTripProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("string survives the form codec", prop.ForAll(func(v string) bool {
		return formDemangle(formMangle(v)) == v
	}, gen.AnyString()))

	properties.Property("int64 survives the form codec", prop.ForAll(func(v int64) bool {
		buf := wire.NewExpandingBuffer()
		out := NewFormOutput(buf)
		if out.StartObject(wire.None, 1) != nil {
			return false
		}
		if out.IntroduceObjectMember(wire.None, "v", 0) != nil {
			return false
		}
		if out.WriteInt(wire.Int64, v) != nil {
			return false
		}
		if out.EndObject(wire.None) != nil {
			return false
		}
		in := NewFormInput(buf.String())
		found, err := in.SeekObjectMember(wire.None, "v")
		if err != nil || !found {
			return false
		}
		got, err := in.ReadInt(wire.Int64)
		return err == nil && got == v
	}, gen.Int64()))

	properties.TestingRun(t)
}
