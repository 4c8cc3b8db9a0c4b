package codec

import (
	"encoding/binary"
	"math"

	"github.com/honganh1206/relay/wire"
)

// BinaryMaxDepth bounds nested arrays in the binary format. Exceeding it is a
// programmer error, not a wire condition.
const BinaryMaxDepth = 3

// BinaryOutput writes the little-endian binary format: fixed-width numbers
// chosen by the numeric flag, length-prefixed strings and arrays, and objects
// that omit names entirely when the layout is known to both sides.
type BinaryOutput struct {
	buf wire.Buffer
}

// NewBinaryOutput returns a binary writer over buf.
func NewBinaryOutput(buf wire.Buffer) *BinaryOutput {
	return &BinaryOutput{buf: buf}
}

func (o *BinaryOutput) writeLittleEndian(value uint64, size int) error {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], value)
	_, err := o.buf.Write(scratch[:size])
	return err
}

func (o *BinaryOutput) WriteInt(flags wire.Flags, value int64) error {
	return o.writeLittleEndian(uint64(value), flags.NumericSize())
}

func (o *BinaryOutput) WriteFloat(flags wire.Flags, value float64) error {
	switch flags.Numeric() {
	case wire.Float16:
		return o.writeLittleEndian(uint64(halfFromFloat(value)), 2)
	case wire.Float64:
		return o.writeLittleEndian(math.Float64bits(value), 8)
	default:
		return o.writeLittleEndian(uint64(math.Float32bits(float32(value))), 4)
	}
}

func (o *BinaryOutput) writeSize(size int) error {
	return o.writeLittleEndian(uint64(size), 2)
}

func (o *BinaryOutput) WriteString(flags wire.Flags, value string) error {
	if err := o.writeSize(len(value)); err != nil {
		return err
	}
	_, err := o.buf.WriteString(value)
	return err
}

func (o *BinaryOutput) WriteBool(flags wire.Flags, value bool) error {
	var b byte
	if value {
		b = 1
	}
	return o.buf.WriteByte(b)
}

func (o *BinaryOutput) WriteNull(flags wire.Flags) error {
	return nil
}

func (o *BinaryOutput) StartArray(flags wire.Flags, size int) error {
	if size == wire.UnknownSize {
		return wire.NewLogicError("the binary format needs array sizes upfront")
	}
	return o.writeSize(size)
}

func (o *BinaryOutput) IntroduceArrayElement(flags wire.Flags, index int) error {
	return nil
}

func (o *BinaryOutput) EndArray(flags wire.Flags) error {
	return nil
}

func (o *BinaryOutput) StartObject(flags wire.Flags, size int) error {
	if flags.Has(wire.ObjectLayoutKnown) {
		return nil
	}
	if size == wire.UnknownSize {
		return wire.NewLogicError("the binary format needs object sizes upfront")
	}
	return o.writeSize(size)
}

func (o *BinaryOutput) IntroduceObjectMember(flags wire.Flags, name string, index int) error {
	if flags.Has(wire.ObjectLayoutKnown) {
		return nil
	}
	return o.WriteString(flags&^wire.DeterminedNumericType, name)
}

func (o *BinaryOutput) EndObject(flags wire.Flags) error {
	return nil
}

func (o *BinaryOutput) WriteOptional(flags wire.Flags, present bool, write func() error) error {
	if err := o.WriteBool(flags, present); err != nil {
		return err
	}
	if present {
		return write()
	}
	return nil
}

// BinaryInput reads the little-endian binary format. It cannot identify,
// skip or seek: the byte stream carries no type information.
type BinaryInput struct {
	data  []byte
	pos   int
	sizes [BinaryMaxDepth]int
	depth int
}

// NewBinaryInput returns a binary reader over data.
func NewBinaryInput(data []byte) *BinaryInput {
	return &BinaryInput{data: data, depth: -1}
}

func (in *BinaryInput) readLittleEndian(size int) (uint64, error) {
	if in.pos+size > len(in.data) {
		return 0, wire.NewParseError(in.pos, "incomplete message")
	}
	var scratch [8]byte
	copy(scratch[:], in.data[in.pos:in.pos+size])
	in.pos += size
	return binary.LittleEndian.Uint64(scratch[:]), nil
}

func (in *BinaryInput) IdentifyType(flags wire.Flags) (wire.Kind, error) {
	return wire.KindInvalid, wire.NewLogicError("the binary format cannot identify types")
}

func (in *BinaryInput) ReadInt(flags wire.Flags) (int64, error) {
	size := flags.NumericSize()
	raw, err := in.readLittleEndian(size)
	if err != nil {
		return 0, err
	}
	if flags.NumericSigned() {
		// Sign-extend from the encoded width.
		shift := uint(64 - 8*size)
		return int64(raw<<shift) >> shift, nil
	}
	return int64(raw), nil
}

func (in *BinaryInput) ReadFloat(flags wire.Flags) (float64, error) {
	switch flags.Numeric() {
	case wire.Float16:
		raw, err := in.readLittleEndian(2)
		if err != nil {
			return 0, err
		}
		return halfToFloat(uint16(raw)), nil
	case wire.Float64:
		raw, err := in.readLittleEndian(8)
		if err != nil {
			return 0, err
		}
		return math.Float64frombits(raw), nil
	default:
		raw, err := in.readLittleEndian(4)
		if err != nil {
			return 0, err
		}
		return float64(math.Float32frombits(uint32(raw))), nil
	}
}

func (in *BinaryInput) readSize() (int, error) {
	raw, err := in.readLittleEndian(2)
	return int(raw), err
}

func (in *BinaryInput) ReadString(flags wire.Flags) (string, error) {
	length, err := in.readSize()
	if err != nil {
		return "", err
	}
	if in.pos+length > len(in.data) {
		return "", wire.NewParseError(in.pos, "incomplete message")
	}
	result := string(in.data[in.pos : in.pos+length])
	in.pos += length
	return result, nil
}

func (in *BinaryInput) ReadBool(flags wire.Flags) (bool, error) {
	if in.pos >= len(in.data) {
		return false, wire.NewParseError(in.pos, "incomplete message")
	}
	result := in.data[in.pos] != 0
	in.pos++
	return result, nil
}

func (in *BinaryInput) ReadNull(flags wire.Flags) error {
	return nil
}

func (in *BinaryInput) StartArray(flags wire.Flags) error {
	if in.depth+1 == BinaryMaxDepth {
		return wire.NewLogicError("nested arrays exceed the maximum depth of %d", BinaryMaxDepth)
	}
	size, err := in.readSize()
	if err != nil {
		return err
	}
	in.depth++
	in.sizes[in.depth] = size
	return nil
}

func (in *BinaryInput) NextArrayElement(flags wire.Flags) (bool, error) {
	if in.depth < 0 {
		return false, wire.NewLogicError("not inside an array")
	}
	if in.sizes[in.depth] == 0 {
		return false, nil
	}
	in.sizes[in.depth]--
	return true, nil
}

func (in *BinaryInput) EndArray(flags wire.Flags) error {
	if in.depth < 0 {
		return wire.NewLogicError("not inside an array")
	}
	in.depth--
	return nil
}

func (in *BinaryInput) ReadObject(flags wire.Flags, each func(name string, named bool, index int) (bool, error)) error {
	if flags.Has(wire.ObjectLayoutKnown) {
		for index := 0; ; index++ {
			more, err := each("", false, index)
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
	}
	size, err := in.readSize()
	if err != nil {
		return err
	}
	for index := 0; index < size; index++ {
		name, err := in.ReadString(flags &^ wire.DeterminedNumericType)
		if err != nil {
			return err
		}
		more, err := each(name, true, index)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return nil
}

func (in *BinaryInput) SkipValue(flags wire.Flags) error {
	return wire.NewLogicError("the binary format cannot skip values")
}

func (in *BinaryInput) ReadOptional(flags wire.Flags, read func() error) (bool, error) {
	present, err := in.ReadBool(flags)
	if err != nil {
		return false, err
	}
	if present {
		return true, read()
	}
	return false, nil
}

func (in *BinaryInput) SeekObjectMember(flags wire.Flags, name string) (bool, error) {
	return false, wire.NewLogicError("the binary format cannot seek")
}

func (in *BinaryInput) StorePosition(flags wire.Flags) (wire.Position, error) {
	return wire.Position(in.pos), nil
}

func (in *BinaryInput) RestorePosition(flags wire.Flags, position wire.Position) error {
	if position < 0 || int(position) > len(in.data) {
		return wire.NewLogicError("position %d outside the message", position)
	}
	in.pos = int(position)
	return nil
}

var (
	_ wire.Output = (*BinaryOutput)(nil)
	_ wire.Input  = (*BinaryInput)(nil)
)

// Half-precision conversions for the Float16 hint.

func halfFromFloat(value float64) uint16 {
	bits := math.Float32bits(float32(value))
	sign := uint16(bits>>16) & 0x8000
	exponent := int32(bits>>23&0xff) - 127 + 15
	mantissa := bits & 0x7fffff
	switch {
	case exponent <= 0:
		return sign
	case exponent >= 0x1f:
		return sign | 0x7c00
	default:
		return sign | uint16(exponent)<<10 | uint16(mantissa>>13)
	}
}

func halfToFloat(half uint16) float64 {
	sign := uint32(half&0x8000) << 16
	exponent := uint32(half >> 10 & 0x1f)
	mantissa := uint32(half & 0x3ff)
	var bits uint32
	switch exponent {
	case 0:
		bits = sign
	case 0x1f:
		bits = sign | 0x7f800000 | mantissa<<13
	default:
		bits = sign | (exponent-15+127)<<23 | mantissa<<13
	}
	return float64(math.Float32frombits(bits))
}
