package wire

// UnknownSize marks an array or object whose element count is not known when
// writing starts.
const UnknownSize = -1

// Output is the push half of the structured event stream. Every wire format
// implements it; serializers call it without knowing which format is behind
// it.
//
// Arrays are written as StartArray, then IntroduceArrayElement before every
// element value, then EndArray. Objects are written the same way with
// IntroduceObjectMember carrying the member name. Every StartArray/StartObject
// must be matched by exactly one EndArray/EndObject on the same stream.
type Output interface {
	WriteInt(flags Flags, value int64) error
	WriteFloat(flags Flags, value float64) error
	WriteString(flags Flags, value string) error
	WriteBool(flags Flags, value bool) error
	WriteNull(flags Flags) error

	StartArray(flags Flags, size int) error
	IntroduceArrayElement(flags Flags, index int) error
	EndArray(flags Flags) error

	StartObject(flags Flags, size int) error
	IntroduceObjectMember(flags Flags, name string, index int) error
	EndObject(flags Flags) error

	// WriteOptional writes an optional value: absent when present is false,
	// otherwise whatever write emits.
	WriteOptional(flags Flags, present bool, write func() error) error
}

// NullOutput discards everything written to it. The dispatcher uses it to run
// notifications, which must execute but produce no response.
type NullOutput struct{}

func (NullOutput) WriteInt(Flags, int64) error                { return nil }
func (NullOutput) WriteFloat(Flags, float64) error            { return nil }
func (NullOutput) WriteString(Flags, string) error            { return nil }
func (NullOutput) WriteBool(Flags, bool) error                { return nil }
func (NullOutput) WriteNull(Flags) error                      { return nil }
func (NullOutput) StartArray(Flags, int) error                { return nil }
func (NullOutput) IntroduceArrayElement(Flags, int) error     { return nil }
func (NullOutput) EndArray(Flags) error                       { return nil }
func (NullOutput) StartObject(Flags, int) error               { return nil }
func (NullOutput) IntroduceObjectMember(Flags, string, int) error { return nil }
func (NullOutput) EndObject(Flags) error                      { return nil }

func (NullOutput) WriteOptional(flags Flags, present bool, write func() error) error {
	if present {
		return write()
	}
	return nil
}

// ObjectWriter is a convenience wrapper that pairs IntroduceObjectMember with
// the value writes and closes the object when done. It keeps hand-written
// emitters, like the description document, from miscounting indexes.
type ObjectWriter struct {
	out   Output
	index int
	err   error
}

// BeginObject starts an object of the given size on out.
func BeginObject(out Output, size int) *ObjectWriter {
	w := &ObjectWriter{out: out}
	w.err = out.StartObject(None, size)
	return w
}

// Member introduces the next member and returns the underlying output for its
// value.
func (w *ObjectWriter) Member(name string) Output {
	if w.err == nil {
		w.err = w.out.IntroduceObjectMember(None, name, w.index)
		w.index++
	}
	return w.out
}

func (w *ObjectWriter) WriteInt(name string, value int64) {
	if out := w.Member(name); w.err == nil {
		w.err = out.WriteInt(None, value)
	}
}

func (w *ObjectWriter) WriteString(name, value string) {
	if out := w.Member(name); w.err == nil {
		w.err = out.WriteString(None, value)
	}
}

func (w *ObjectWriter) WriteBool(name string, value bool) {
	if out := w.Member(name); w.err == nil {
		w.err = out.WriteBool(None, value)
	}
}

// End closes the object and reports the first error seen.
func (w *ObjectWriter) End() error {
	if w.err != nil {
		return w.err
	}
	return w.out.EndObject(None)
}

// Err exposes the first error without closing the object.
func (w *ObjectWriter) Err() error { return w.err }

// ArrayWriter is the array counterpart of ObjectWriter.
type ArrayWriter struct {
	out   Output
	index int
	err   error
}

// BeginArray starts an array of the given size on out.
func BeginArray(out Output, size int) *ArrayWriter {
	w := &ArrayWriter{out: out}
	w.err = out.StartArray(None, size)
	return w
}

// Element introduces the next element and returns the underlying output.
func (w *ArrayWriter) Element() Output {
	if w.err == nil {
		w.err = w.out.IntroduceArrayElement(None, w.index)
		w.index++
	}
	return w.out
}

func (w *ArrayWriter) WriteString(value string) {
	if out := w.Element(); w.err == nil {
		w.err = out.WriteString(None, value)
	}
}

// End closes the array and reports the first error seen.
func (w *ArrayWriter) End() error {
	if w.err != nil {
		return w.err
	}
	return w.out.EndArray(None)
}
