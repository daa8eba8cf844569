package wiremsg

import (
	"encoding/binary"
	"io"
)

// Encode turns a message into its wire bytes under the given format: every
// field's bytes back to back, with no framing, checksum or terminator.
//
// Fields are encoded left to right; a variable field's length is the current
// value of the Len field it references. The encoder does not derive that Len
// value from the variable payload — callers keep the two consistent. A
// string or bytes payload longer than its resolved length fails with
// ValueLenError, as does a FixedString/FixedBytes payload that does not fill
// its width exactly; a variable payload may run shorter than its referenced
// Len, for formats that cap one Len field across several variable fields.
func Encode(format *MessageFormat, msg Message) ([]byte, error) {
	if len(msg) != len(format.fields) {
		return nil, ErrValueCount
	}

	var buf []byte
	for i, f := range format.fields {
		l, err := f.resolvedLen(i, msg[:i])
		if err != nil {
			return nil, err
		}

		buf, err = appendValue(buf, f.Kind, i, l, msg[i])
		if err != nil {
			return nil, err
		}
	}

	return buf, nil
}

// appendValue appends exactly l bytes for one field: integers as big-endian
// truncated to the low l bytes, text as UTF-8, raw bytes as-is.
func appendValue(buf []byte, kind Kind, idx, l int, value Value) ([]byte, error) {
	switch kind {
	case KindLen, KindUint, KindInt:
		if l > maxIntWidth {
			return nil, &LenTooLargeError{Field: idx, Len: uint64(l), MaxLen: maxIntWidth}
		}

		var v uint64
		switch n := value.(type) {
		case Len:
			if kind != KindLen {
				return nil, &ValueKindError{Field: idx, Kind: kind}
			}
			v = uint64(n)
		case Uint:
			if kind != KindUint {
				return nil, &ValueKindError{Field: idx, Kind: kind}
			}
			v = uint64(n)
		case Int:
			if kind != KindInt {
				return nil, &ValueKindError{Field: idx, Kind: kind}
			}
			v = uint64(n)
		default:
			return nil, &ValueKindError{Field: idx, Kind: kind}
		}

		var be [maxIntWidth]byte
		binary.BigEndian.PutUint64(be[:], v)
		return append(buf, be[maxIntWidth-l:]...), nil

	case KindFixedString, KindVarString:
		s, ok := value.(String)
		if !ok {
			return nil, &ValueKindError{Field: idx, Kind: kind}
		}
		// Fixed widths must be filled exactly; a var field may run shorter
		// than its referenced Len.
		if len(s) > l || (kind == KindFixedString && len(s) < l) {
			return nil, &ValueLenError{Field: idx, SpecifiedLen: l, ValueLen: len(s)}
		}
		return append(buf, string(s)...), nil

	case KindFixedBytes, KindVarBytes:
		b, ok := value.(Bytes)
		if !ok {
			return nil, &ValueKindError{Field: idx, Kind: kind}
		}
		if len(b) > l || (kind == KindFixedBytes && len(b) < l) {
			return nil, &ValueLenError{Field: idx, SpecifiedLen: l, ValueLen: len(b)}
		}
		return append(buf, b...), nil

	default:
		return nil, &ValueKindError{Field: idx, Kind: kind}
	}
}

// Encoder writes messages of one format onto a stream. Each message is
// encoded in full and written with a single Write call, so a writer task
// that owns the socket never leaves a partial message behind a failed send.
type Encoder struct {
	format *MessageFormat
	w      io.Writer
}

// NewEncoder returns an encoder writing messages of the given format to w.
func NewEncoder(format *MessageFormat, w io.Writer) *Encoder {
	return &Encoder{format: format, w: w}
}

// Encode writes one message to the underlying stream.
func (e *Encoder) Encode(msg Message) error {
	buf, err := Encode(e.format, msg)
	if err != nil {
		return err
	}

	_, err = e.w.Write(buf)
	return err
}
