package wire

// Flags alter how a single value is written to or read from a structured
// stream. The groups are orthogonal: layout, optionality and numeric type.
// Formats that cannot use a group ignore it.
type Flags uint32

const (
	// None is the default: no layout assumptions, natural numeric width.
	None Flags = 0

	// ObjectLayoutKnown declares that both sides agree on member order, so
	// formats that can may omit member names entirely.
	ObjectLayoutKnown Flags = 0x1
	// Mandatory makes absence an error instead of a default value.
	Mandatory Flags = 0x2
	// OmitFalse skips a boolean member when its value is false.
	OmitFalse Flags = 0x4
	// EmptyIsNull serializes a null as absence of the member.
	EmptyIsNull Flags = 0x8

	// Numeric type hints. Exactly one may be set; they share one byte of the
	// flag word and are mutually exclusive.
	Int8    Flags = 0x100
	Uint8   Flags = 0x110
	Int16   Flags = 0x120
	Uint16  Flags = 0x130
	Int32   Flags = 0x140
	Uint32  Flags = 0x150
	Int64   Flags = 0x160
	Uint64  Flags = 0x170
	Float16 Flags = 0x180
	Float32 Flags = 0x190
	Float64 Flags = 0x1a0

	// DeterminedNumericType masks all bits used by the numeric type hints.
	DeterminedNumericType Flags = 0x1f0
)

// Numeric extracts the numeric type hint, or None if the width was not
// determined by the caller.
func (f Flags) Numeric() Flags {
	return f & DeterminedNumericType
}

// Has reports whether every bit of other is set in f.
func (f Flags) Has(other Flags) bool {
	return f&other == other
}

// NumericSize returns the byte width a format with fixed-width numbers should
// use for the given hint. Undetermined numbers default to 4 bytes.
func (f Flags) NumericSize() int {
	switch f.Numeric() {
	case Int8, Uint8:
		return 1
	case Int16, Uint16, Float16:
		return 2
	case Int64, Uint64, Float64:
		return 8
	default:
		return 4
	}
}

// NumericSigned reports whether the hinted numeric type is signed.
// Undetermined numbers are treated as signed 32-bit.
func (f Flags) NumericSigned() bool {
	switch f.Numeric() {
	case Uint8, Uint16, Uint32, Uint64:
		return false
	}
	return true
}

// NumericFloat reports whether the hinted numeric type is floating-point.
func (f Flags) NumericFloat() bool {
	switch f.Numeric() {
	case Float16, Float32, Float64:
		return true
	}
	return false
}
