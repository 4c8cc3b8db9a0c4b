// Package codec implements the wire event streams for the three supported
// formats: JSON, a little-endian binary encoding and URL-encoded forms.
package codec

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/honganh1206/relay/wire"
)

// JSONOutput writes strict JSON into a buffer, pretty-printed with one tab
// per nesting level.
type JSONOutput struct {
	buf   wire.Buffer
	depth int
}

// NewJSONOutput returns a JSON writer over buf.
func NewJSONOutput(buf wire.Buffer) *JSONOutput {
	return &JSONOutput{buf: buf}
}

func (o *JSONOutput) newLine() error {
	if err := o.buf.WriteByte('\n'); err != nil {
		return err
	}
	for i := 0; i < o.depth; i++ {
		if err := o.buf.WriteByte('\t'); err != nil {
			return err
		}
	}
	return nil
}

func (o *JSONOutput) WriteInt(flags wire.Flags, value int64) error {
	if !flags.NumericSigned() {
		_, err := o.buf.WriteString(strconv.FormatUint(uint64(value), 10))
		return err
	}
	_, err := o.buf.WriteString(strconv.FormatInt(value, 10))
	return err
}

func (o *JSONOutput) WriteFloat(flags wire.Flags, value float64) error {
	// JSON has no NaN or infinity.
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return o.buf.WriteByte('0')
	}
	_, err := o.buf.WriteString(strconv.FormatFloat(value, 'g', -1, 64))
	return err
}

func (o *JSONOutput) WriteString(flags wire.Flags, value string) error {
	if err := o.buf.WriteByte('"'); err != nil {
		return err
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch c {
		case '\\', '"':
			if err := o.buf.WriteByte('\\'); err != nil {
				return err
			}
		case '\n':
			if err := o.buf.WriteByte('\\'); err != nil {
				return err
			}
			c = 'n'
		}
		if err := o.buf.WriteByte(c); err != nil {
			return err
		}
	}
	return o.buf.WriteByte('"')
}

func (o *JSONOutput) WriteBool(flags wire.Flags, value bool) error {
	_, err := o.buf.WriteString(strconv.FormatBool(value))
	return err
}

func (o *JSONOutput) WriteNull(flags wire.Flags) error {
	_, err := o.buf.WriteString("null")
	return err
}

func (o *JSONOutput) StartArray(flags wire.Flags, size int) error {
	o.depth++
	return o.buf.WriteByte('[')
}

func (o *JSONOutput) IntroduceArrayElement(flags wire.Flags, index int) error {
	if index > 0 {
		if err := o.buf.WriteByte(','); err != nil {
			return err
		}
	}
	return o.newLine()
}

func (o *JSONOutput) EndArray(flags wire.Flags) error {
	o.depth--
	if err := o.newLine(); err != nil {
		return err
	}
	return o.buf.WriteByte(']')
}

func (o *JSONOutput) StartObject(flags wire.Flags, size int) error {
	o.depth++
	return o.buf.WriteByte('{')
}

func (o *JSONOutput) IntroduceObjectMember(flags wire.Flags, name string, index int) error {
	if index > 0 {
		if err := o.buf.WriteByte(','); err != nil {
			return err
		}
	}
	if err := o.newLine(); err != nil {
		return err
	}
	if err := o.WriteString(flags, name); err != nil {
		return err
	}
	_, err := o.buf.WriteString(" : ")
	return err
}

func (o *JSONOutput) EndObject(flags wire.Flags) error {
	o.depth--
	if err := o.newLine(); err != nil {
		return err
	}
	return o.buf.WriteByte('}')
}

func (o *JSONOutput) WriteOptional(flags wire.Flags, present bool, write func() error) error {
	if !present {
		return o.WriteNull(flags)
	}
	return write()
}

// JSONInput reads strict JSON from a byte slice. Whitespace, commas and
// colons are treated alike as separators to be eaten between values, which is
// what makes positions storable: a position is a plain byte index.
type JSONInput struct {
	data []byte
	pos  int
}

// NewJSONInput returns a JSON reader over data.
func NewJSONInput(data []byte) *JSONInput {
	return &JSONInput{data: data}
}

func isJSONSeparator(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',' || c == ':'
}

func (in *JSONInput) eatSeparators() {
	for in.pos < len(in.data) && isJSONSeparator(in.data[in.pos]) {
		in.pos++
	}
}

func (in *JSONInput) peek() (byte, error) {
	in.eatSeparators()
	if in.pos >= len(in.data) {
		return 0, wire.NewParseError(in.pos, "unexpected end of input")
	}
	return in.data[in.pos], nil
}

func (in *JSONInput) expect(c byte) error {
	got, err := in.peek()
	if err != nil {
		return err
	}
	if got != c {
		return wire.NewParseError(in.pos, "expected %q, found %q", c, got)
	}
	in.pos++
	return nil
}

// numberToken scans the extent of the number starting at the current
// position without consuming it.
func (in *JSONInput) numberToken() (token string, isFloat bool) {
	end := in.pos
	for end < len(in.data) {
		c := in.data[end]
		if (c >= '0' && c <= '9') || c == '-' || c == '+' {
			end++
			continue
		}
		if c == '.' || c == 'e' || c == 'E' {
			isFloat = true
			end++
			continue
		}
		break
	}
	return string(in.data[in.pos:end]), isFloat
}

func (in *JSONInput) IdentifyType(flags wire.Flags) (wire.Kind, error) {
	c, err := in.peek()
	if err != nil {
		return wire.KindInvalid, err
	}
	switch {
	case c == '"':
		return wire.KindString, nil
	case c == '{':
		return wire.KindObject, nil
	case c == '[':
		return wire.KindArray, nil
	case c == 't' || c == 'f':
		return wire.KindBoolean, nil
	case c == 'n':
		return wire.KindNull, nil
	case c == '-' || (c >= '0' && c <= '9'):
		if _, isFloat := in.numberToken(); isFloat {
			return wire.KindFloat, nil
		}
		return wire.KindInteger, nil
	}
	return wire.KindInvalid, nil
}

func (in *JSONInput) ReadInt(flags wire.Flags) (int64, error) {
	if _, err := in.peek(); err != nil {
		return 0, err
	}
	token, _ := in.numberToken()
	if token == "" {
		return 0, wire.NewParseError(in.pos, "expected a number")
	}
	in.pos += len(token)
	value, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		// An integer read over a float token keeps its whole part.
		if f, ferr := strconv.ParseFloat(token, 64); ferr == nil {
			return int64(f), nil
		}
		return 0, wire.NewParseError(in.pos, "invalid integer %q", token)
	}
	return value, nil
}

func (in *JSONInput) ReadFloat(flags wire.Flags) (float64, error) {
	if _, err := in.peek(); err != nil {
		return 0, err
	}
	token, _ := in.numberToken()
	if token == "" {
		return 0, wire.NewParseError(in.pos, "expected a number")
	}
	in.pos += len(token)
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, wire.NewParseError(in.pos, "invalid number %q", token)
	}
	return value, nil
}

func (in *JSONInput) ReadString(flags wire.Flags) (string, error) {
	if err := in.expect('"'); err != nil {
		return "", err
	}
	var sb strings.Builder
	for {
		if in.pos >= len(in.data) {
			return "", wire.NewParseError(in.pos, "unterminated string")
		}
		c := in.data[in.pos]
		in.pos++
		if c == '"' {
			return sb.String(), nil
		}
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		if in.pos >= len(in.data) {
			return "", wire.NewParseError(in.pos, "unterminated escape")
		}
		esc := in.data[in.pos]
		in.pos++
		switch esc {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'u':
			r, err := in.readUnicodeEscape()
			if err != nil {
				return "", err
			}
			sb.WriteRune(r)
		default:
			// \\, \", \/ and anything else map to the escaped byte.
			sb.WriteByte(esc)
		}
	}
}

func (in *JSONInput) readUnicodeEscape() (rune, error) {
	if in.pos+4 > len(in.data) {
		return 0, wire.NewParseError(in.pos, "truncated \\u escape")
	}
	value, err := strconv.ParseUint(string(in.data[in.pos:in.pos+4]), 16, 32)
	if err != nil {
		return 0, wire.NewParseError(in.pos, "invalid \\u escape")
	}
	in.pos += 4
	r := rune(value)
	if utf16.IsSurrogate(r) && in.pos+6 <= len(in.data) &&
		in.data[in.pos] == '\\' && in.data[in.pos+1] == 'u' {
		low, err := strconv.ParseUint(string(in.data[in.pos+2:in.pos+6]), 16, 32)
		if err == nil {
			if combined := utf16.DecodeRune(r, rune(low)); combined != utf8.RuneError {
				in.pos += 6
				return combined, nil
			}
		}
	}
	return r, nil
}

func (in *JSONInput) ReadBool(flags wire.Flags) (bool, error) {
	c, err := in.peek()
	if err != nil {
		return false, err
	}
	if c == 't' && in.pos+4 <= len(in.data) && string(in.data[in.pos:in.pos+4]) == "true" {
		in.pos += 4
		return true, nil
	}
	if c == 'f' && in.pos+5 <= len(in.data) && string(in.data[in.pos:in.pos+5]) == "false" {
		in.pos += 5
		return false, nil
	}
	return false, wire.NewParseError(in.pos, "expected a boolean")
}

func (in *JSONInput) ReadNull(flags wire.Flags) error {
	if _, err := in.peek(); err != nil {
		return err
	}
	if in.pos+4 <= len(in.data) && string(in.data[in.pos:in.pos+4]) == "null" {
		in.pos += 4
		return nil
	}
	return wire.NewParseError(in.pos, "expected null")
}

func (in *JSONInput) StartArray(flags wire.Flags) error {
	return in.expect('[')
}

func (in *JSONInput) NextArrayElement(flags wire.Flags) (bool, error) {
	c, err := in.peek()
	if err != nil {
		return false, err
	}
	return c != ']', nil
}

func (in *JSONInput) EndArray(flags wire.Flags) error {
	return in.expect(']')
}

func (in *JSONInput) ReadObject(flags wire.Flags, each func(name string, named bool, index int) (bool, error)) error {
	if err := in.expect('{'); err != nil {
		return err
	}
	for index := 0; ; index++ {
		c, err := in.peek()
		if err != nil {
			return err
		}
		if c == '}' {
			in.pos++
			return nil
		}
		name, err := in.ReadString(flags)
		if err != nil {
			return err
		}
		more, err := each(name, true, index)
		if err != nil {
			return err
		}
		if !more {
			return in.skipToObjectEnd()
		}
	}
}

// skipToObjectEnd consumes the rest of the current object, including its
// closing brace.
func (in *JSONInput) skipToObjectEnd() error {
	for {
		c, err := in.peek()
		if err != nil {
			return err
		}
		if c == '}' {
			in.pos++
			return nil
		}
		if _, err := in.ReadString(wire.None); err != nil {
			return err
		}
		if err := in.SkipValue(wire.None); err != nil {
			return err
		}
	}
}

func (in *JSONInput) SkipValue(flags wire.Flags) error {
	kind, err := in.IdentifyType(flags)
	if err != nil {
		return err
	}
	switch kind {
	case wire.KindInteger, wire.KindFloat:
		token, _ := in.numberToken()
		in.pos += len(token)
		return nil
	case wire.KindString:
		_, err := in.ReadString(flags)
		return err
	case wire.KindBoolean:
		_, err := in.ReadBool(flags)
		return err
	case wire.KindNull:
		return in.ReadNull(flags)
	case wire.KindArray:
		if err := in.StartArray(flags); err != nil {
			return err
		}
		for {
			more, err := in.NextArrayElement(flags)
			if err != nil {
				return err
			}
			if !more {
				break
			}
			if err := in.SkipValue(flags); err != nil {
				return err
			}
		}
		return in.EndArray(flags)
	case wire.KindObject:
		return in.ReadObject(flags, func(string, bool, int) (bool, error) {
			return false, in.SkipValue(flags)
		})
	}
	return wire.NewParseError(in.pos, "cannot skip invalid value")
}

func (in *JSONInput) ReadOptional(flags wire.Flags, read func() error) (bool, error) {
	kind, err := in.IdentifyType(flags)
	if err != nil {
		return false, err
	}
	if kind == wire.KindNull {
		return false, in.ReadNull(flags)
	}
	return true, read()
}

// SeekObjectMember scans forward through the current object for a member of
// the given name, honoring nested braces, brackets and string literals. The
// stream must be positioned at the value of some member; that value is
// skipped before scanning. On success the stream is positioned at the found
// member's value; on failure it is left where it was.
func (in *JSONInput) SeekObjectMember(flags wire.Flags, name string) (bool, error) {
	start := in.pos
	if err := in.SkipValue(flags); err != nil {
		in.pos = start
		return false, err
	}
	for {
		c, err := in.peek()
		if err != nil {
			in.pos = start
			return false, nil
		}
		if c == '}' || c == ']' {
			in.pos = start
			return false, nil
		}
		member, err := in.ReadString(flags)
		if err != nil {
			in.pos = start
			return false, err
		}
		if member == name {
			return true, nil
		}
		if err := in.SkipValue(flags); err != nil {
			in.pos = start
			return false, err
		}
	}
}

var (
	_ wire.Output = (*JSONOutput)(nil)
	_ wire.Input  = (*JSONInput)(nil)
)

func (in *JSONInput) StorePosition(flags wire.Flags) (wire.Position, error) {
	return wire.Position(in.pos), nil
}

func (in *JSONInput) RestorePosition(flags wire.Flags, position wire.Position) error {
	if position < 0 || int(position) > len(in.data) {
		return wire.NewLogicError("position %d outside the message", position)
	}
	in.pos = int(position)
	return nil
}
