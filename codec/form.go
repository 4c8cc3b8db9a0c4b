package codec

import (
	"strconv"
	"strings"

	"github.com/honganh1206/relay/wire"
)

// The URL-form codec speaks application/x-www-form-urlencoded: a single flat
// object of key=value pairs. Escapes carry codepoints up to 0xff directly;
// larger codepoints travel as percent-encoded &#NNN; HTML entities, which the
// reader decodes in a second pass after percent decoding. That second pass
// also fires for entities a client percent-encoded itself; kept for
// compatibility with HTML form clients.

const formUnescapedPunctuation = ".*-_^\\~'`|<>[]{}()"

func formEncodeByte(sb *strings.Builder, c byte) {
	if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		strings.IndexByte(formUnescapedPunctuation, c) >= 0 {
		sb.WriteByte(c)
		return
	}
	sb.WriteByte('%')
	const hex = "0123456789abcdef"
	sb.WriteByte(hex[c>>4])
	sb.WriteByte(hex[c&0xf])
}

// formMangle encodes a string for the form wire format.
func formMangle(value string) string {
	var sb strings.Builder
	for _, r := range value {
		switch {
		case r == ' ':
			sb.WriteByte('+')
		case r <= 0xff:
			formEncodeByte(&sb, byte(r))
		default:
			formEncodeByte(&sb, '&')
			formEncodeByte(&sb, '#')
			sb.WriteString(strconv.Itoa(int(r)))
			formEncodeByte(&sb, ';')
		}
	}
	return sb.String()
}

// formDemangle decodes a form fragment: '+' to space, percent escapes to
// codepoints, and percent-encoded &#NNN; entities to their codepoints.
func formDemangle(value string) string {
	hexAt := func(i int) int {
		if i+3 > len(value) || value[i] != '%' {
			return -1
		}
		decoded, err := strconv.ParseUint(value[i+1:i+3], 16, 8)
		if err != nil {
			return -1
		}
		return int(decoded)
	}
	var sb strings.Builder
	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c == '+':
			sb.WriteByte(' ')
		case c == '%':
			decoded := hexAt(i)
			if decoded < 0 {
				return sb.String()
			}
			if decoded == '&' && hexAt(i+3) == '#' && i+6 < len(value) && isDigit(value[i+6]) {
				numberEnd := i + 6
				for numberEnd < len(value) && isDigit(value[numberEnd]) {
					numberEnd++
				}
				if numberEnd+2 < len(value) && hexAt(numberEnd) == ';' {
					if parsed, err := strconv.Atoi(value[i+6 : numberEnd]); err == nil {
						decoded = parsed
						i = numberEnd
					}
				}
			}
			sb.WriteRune(rune(decoded))
			i += 2
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// FormOutput writes one flat key=value&key=value object. Booleans need the
// OmitFalse flag and appear only when true; nulls need EmptyIsNull and never
// appear. A suppressed value takes its key with it.
type FormOutput struct {
	buf         wire.Buffer
	pendingKey  string
	keyPending  bool
	inObject    bool
	wroteMember bool
}

// NewFormOutput returns a form writer over buf.
func NewFormOutput(buf wire.Buffer) *FormOutput {
	return &FormOutput{buf: buf}
}

func (o *FormOutput) commitKey() error {
	if !o.keyPending {
		return nil
	}
	o.keyPending = false
	if o.wroteMember {
		if err := o.buf.WriteByte('&'); err != nil {
			return err
		}
	}
	o.wroteMember = true
	if _, err := o.buf.WriteString(formMangle(o.pendingKey)); err != nil {
		return err
	}
	return o.buf.WriteByte('=')
}

func (o *FormOutput) WriteInt(flags wire.Flags, value int64) error {
	if err := o.commitKey(); err != nil {
		return err
	}
	if !flags.NumericSigned() {
		_, err := o.buf.WriteString(strconv.FormatUint(uint64(value), 10))
		return err
	}
	_, err := o.buf.WriteString(strconv.FormatInt(value, 10))
	return err
}

func (o *FormOutput) WriteFloat(flags wire.Flags, value float64) error {
	if err := o.commitKey(); err != nil {
		return err
	}
	_, err := o.buf.WriteString(strconv.FormatFloat(value, 'g', -1, 64))
	return err
}

func (o *FormOutput) WriteString(flags wire.Flags, value string) error {
	if err := o.commitKey(); err != nil {
		return err
	}
	_, err := o.buf.WriteString(formMangle(value))
	return err
}

func (o *FormOutput) WriteBool(flags wire.Flags, value bool) error {
	if !flags.Has(wire.OmitFalse) {
		return wire.NewLogicError("form booleans need the OmitFalse flag")
	}
	if !value {
		o.keyPending = false
		return nil
	}
	if err := o.commitKey(); err != nil {
		return err
	}
	_, err := o.buf.WriteString("true")
	return err
}

func (o *FormOutput) WriteNull(flags wire.Flags) error {
	if !flags.Has(wire.EmptyIsNull) {
		return wire.NewLogicError("form nulls need the EmptyIsNull flag")
	}
	o.keyPending = false
	return nil
}

func (o *FormOutput) StartArray(flags wire.Flags, size int) error {
	return wire.NewLogicError("the form format does not support arrays")
}

func (o *FormOutput) IntroduceArrayElement(flags wire.Flags, index int) error {
	return wire.NewLogicError("the form format does not support arrays")
}

func (o *FormOutput) EndArray(flags wire.Flags) error {
	return wire.NewLogicError("the form format does not support arrays")
}

func (o *FormOutput) StartObject(flags wire.Flags, size int) error {
	if o.inObject {
		return wire.NewLogicError("the form format does not support nested objects")
	}
	o.inObject = true
	return nil
}

func (o *FormOutput) IntroduceObjectMember(flags wire.Flags, name string, index int) error {
	o.pendingKey = name
	o.keyPending = true
	return nil
}

func (o *FormOutput) EndObject(flags wire.Flags) error {
	o.inObject = false
	return nil
}

func (o *FormOutput) WriteOptional(flags wire.Flags, present bool, write func() error) error {
	if !present {
		o.keyPending = false
		return nil
	}
	return write()
}

// FormInput reads one flat key=value&key=value object.
type FormInput struct {
	data     string
	pos      int
	inObject bool
}

// NewFormInput returns a form reader over data.
func NewFormInput(data string) *FormInput {
	return &FormInput{data: data}
}

func (in *FormInput) valueEnd() int {
	end := in.pos
	for end < len(in.data) && in.data[end] != '&' {
		end++
	}
	return end
}

func (in *FormInput) IdentifyType(flags wire.Flags) (wire.Kind, error) {
	demangled := formDemangle(in.data[in.pos:in.valueEnd()])
	if demangled == "" {
		return wire.KindString, nil
	}
	isFloat := false
	rest := demangled
	if rest[0] == '-' {
		rest = rest[1:]
	}
	if rest == "" {
		return wire.KindString, nil
	}
	for i := 0; i < len(rest); i++ {
		switch {
		case isDigit(rest[i]):
		case rest[i] == '.' || rest[i] == 'e' || rest[i] == 'E' || rest[i] == '-' || rest[i] == '+':
			isFloat = true
		default:
			return wire.KindString, nil
		}
	}
	if isFloat {
		return wire.KindFloat, nil
	}
	return wire.KindInteger, nil
}

func (in *FormInput) ReadInt(flags wire.Flags) (int64, error) {
	end := in.valueEnd()
	value, err := strconv.ParseInt(in.data[in.pos:end], 10, 64)
	in.pos = end
	if err != nil {
		return 0, wire.NewParseError(in.pos, "expected an integer")
	}
	return value, nil
}

func (in *FormInput) ReadFloat(flags wire.Flags) (float64, error) {
	end := in.valueEnd()
	value, err := strconv.ParseFloat(formDemangle(in.data[in.pos:end]), 64)
	in.pos = end
	if err != nil {
		return 0, wire.NewParseError(in.pos, "expected a number")
	}
	return value, nil
}

func (in *FormInput) ReadString(flags wire.Flags) (string, error) {
	end := in.valueEnd()
	result := formDemangle(in.data[in.pos:end])
	in.pos = end
	return result, nil
}

// ReadBool reports presence: a key that made it onto the wire is true.
func (in *FormInput) ReadBool(flags wire.Flags) (bool, error) {
	in.pos = in.valueEnd()
	return true, nil
}

func (in *FormInput) ReadNull(flags wire.Flags) error {
	return nil
}

func (in *FormInput) StartArray(flags wire.Flags) error {
	return wire.NewLogicError("the form format does not support arrays")
}

func (in *FormInput) NextArrayElement(flags wire.Flags) (bool, error) {
	return false, wire.NewLogicError("the form format does not support arrays")
}

func (in *FormInput) EndArray(flags wire.Flags) error {
	return wire.NewLogicError("the form format does not support arrays")
}

func (in *FormInput) ReadObject(flags wire.Flags, each func(name string, named bool, index int) (bool, error)) error {
	if in.inObject {
		return wire.NewLogicError("the form format does not support nested objects")
	}
	in.inObject = true
	defer func() { in.inObject = false }()
	for index := 0; in.pos < len(in.data); index++ {
		if in.data[in.pos] == '&' {
			in.pos++
			if in.pos >= len(in.data) {
				break
			}
		}
		nameEnd := in.pos
		for nameEnd < len(in.data) && in.data[nameEnd] != '=' && in.data[nameEnd] != '&' {
			nameEnd++
		}
		name := formDemangle(in.data[in.pos:nameEnd])
		in.pos = nameEnd
		if in.pos < len(in.data) && in.data[in.pos] == '=' {
			in.pos++
		}
		more, err := each(name, true, index)
		if err != nil {
			return err
		}
		if !more {
			in.pos = len(in.data)
			return nil
		}
	}
	return nil
}

func (in *FormInput) SkipValue(flags wire.Flags) error {
	in.pos = in.valueEnd()
	return nil
}

// ReadOptional treats an empty value as absent.
func (in *FormInput) ReadOptional(flags wire.Flags, read func() error) (bool, error) {
	if in.pos >= len(in.data) || in.data[in.pos] == '&' {
		return false, nil
	}
	return true, read()
}

func (in *FormInput) SeekObjectMember(flags wire.Flags, name string) (bool, error) {
	start := in.pos
	pos := in.pos
	for pos < len(in.data) {
		if in.data[pos] == '&' {
			pos++
		}
		nameEnd := pos
		for nameEnd < len(in.data) && in.data[nameEnd] != '=' && in.data[nameEnd] != '&' {
			nameEnd++
		}
		found := formDemangle(in.data[pos:nameEnd])
		pos = nameEnd
		if pos < len(in.data) && in.data[pos] == '=' {
			pos++
		}
		if found == name {
			in.pos = pos
			return true, nil
		}
		for pos < len(in.data) && in.data[pos] != '&' {
			pos++
		}
	}
	in.pos = start
	return false, nil
}

var (
	_ wire.Output = (*FormOutput)(nil)
	_ wire.Input  = (*FormInput)(nil)
)

func (in *FormInput) StorePosition(flags wire.Flags) (wire.Position, error) {
	return wire.Position(in.pos), nil
}

func (in *FormInput) RestorePosition(flags wire.Flags, position wire.Position) error {
	if position < 0 || int(position) > len(in.data) {
		return wire.NewLogicError("position %d outside the message", position)
	}
	in.pos = int(position)
	return nil
}
