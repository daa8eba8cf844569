package wiremsg

import (
	"bytes"
	"encoding/binary"
	"io"
	"unicode/utf8"
)

// Decode reads one message from data under the given format.
//
// Fields are decoded left to right; a variable field's length is the already
// decoded value of the Len field it references (schema validation guarantees
// that field appears earlier). If fewer bytes remain than the current field
// needs, decoding fails with ErrEndOfData and no partial message is
// returned. Trailing bytes beyond the last field are ignored.
func Decode(format *MessageFormat, data []byte) (Message, error) {
	values := make(Message, 0, len(format.fields))

	rest := data
	for i, f := range format.fields {
		l, err := f.resolvedLen(i, values)
		if err != nil {
			return nil, err
		}
		if l > len(rest) {
			return nil, ErrEndOfData
		}

		v, err := decodeValue(f.Kind, i, rest[:l])
		if err != nil {
			return nil, err
		}

		values = append(values, v)
		rest = rest[l:]
	}

	return values, nil
}

// decodeValue interprets exactly the given bytes as one value of the kind.
func decodeValue(kind Kind, idx int, b []byte) (Value, error) {
	switch kind {
	case KindLen, KindUint, KindInt:
		if len(b) > maxIntWidth {
			return nil, &LenTooLargeError{Field: idx, Len: uint64(len(b)), MaxLen: maxIntWidth}
		}

		var be [maxIntWidth]byte
		copy(be[maxIntWidth-len(b):], b)
		u := binary.BigEndian.Uint64(be[:])

		switch kind {
		case KindLen:
			return Len(u), nil
		case KindUint:
			return Uint(u), nil
		default:
			// Sign-extend from len(b) bytes to the full 64 bits. A full
			// 8-byte field shifts by zero.
			shift := (maxIntWidth - len(b)) * 8
			return Int(int64(u) << shift >> shift), nil
		}

	case KindFixedString, KindVarString:
		if !utf8.Valid(b) {
			return nil, &UTF8Error{Field: idx}
		}
		return String(b), nil

	case KindFixedBytes, KindVarBytes:
		v := make(Bytes, len(b))
		copy(v, b)
		return v, nil

	default:
		return nil, &ValueKindError{Field: idx, Kind: kind}
	}
}

// Decoder reads messages of one format off a stream, field by field. It
// never looks ahead: each read consumes exactly the resolved length of the
// current field, so back-to-back messages on one connection need no framing.
type Decoder struct {
	format *MessageFormat
	r      io.Reader
}

// NewDecoder returns a decoder reading messages of the given format from r.
func NewDecoder(format *MessageFormat, r io.Reader) *Decoder {
	return &Decoder{format: format, r: r}
}

// Decode reads one complete message from the underlying stream. Read errors
// are returned as-is; io.EOF before the first byte of the first field means
// the stream ended cleanly between messages, while a stream ending
// mid-message surfaces as ErrEndOfData.
func (d *Decoder) Decode() (Message, error) {
	values := make(Message, 0, len(d.format.fields))

	for i, f := range d.format.fields {
		l, err := f.resolvedLen(i, values)
		if err != nil {
			return nil, err
		}
		if f.Kind == KindLen || f.Kind == KindUint || f.Kind == KindInt {
			if l > maxIntWidth {
				return nil, &LenTooLargeError{Field: i, Len: uint64(l), MaxLen: maxIntWidth}
			}
		}

		// CopyN grows the buffer with the bytes actually received, so a Len
		// value claiming more than the peer ever sends cannot force an
		// allocation of that size up front.
		var buf bytes.Buffer
		n, err := io.CopyN(&buf, d.r, int64(l))
		if err != nil {
			if err == io.EOF && i == 0 && n == 0 {
				// Clean end of stream between messages.
				return nil, io.EOF
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, ErrEndOfData
			}
			return nil, err
		}

		v, err := decodeValue(f.Kind, i, buf.Bytes())
		if err != nil {
			return nil, err
		}

		values = append(values, v)
	}

	return values, nil
}
