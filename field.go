package wiremsg

import (
	"fmt"
	"math"
)

// Kind identifies how one field is sized, encoded and decoded.
type Kind int

// The closed set of field kinds.
const (
	// KindLen is a fixed-width unsigned integer whose decoded value supplies
	// the byte length of a later variable field.
	KindLen Kind = iota
	// KindUint is a fixed-width unsigned integer.
	KindUint
	// KindInt is a fixed-width signed integer, sign-extended on decode.
	KindInt
	// KindFixedString is a UTF-8 string of a fixed byte width.
	KindFixedString
	// KindVarString is a UTF-8 string whose byte length is the value of an
	// earlier Len field.
	KindVarString
	// KindFixedBytes is a raw byte sequence of a fixed byte width.
	KindFixedBytes
	// KindVarBytes is a raw byte sequence whose byte length is the value of
	// an earlier Len field.
	KindVarBytes
)

// maxIntWidth is the widest integer field, in bytes. Len, Uint and Int
// values round-trip through 64-bit integers.
const maxIntWidth = 8

func (k Kind) String() string {
	switch k {
	case KindLen:
		return "len"
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindFixedString:
		return "fixed_string"
	case KindVarString:
		return "var_string"
	case KindFixedBytes:
		return "fixed_bytes"
	case KindVarBytes:
		return "var_bytes"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// variable reports whether the kind takes its length from an earlier field.
func (k Kind) variable() bool {
	return k == KindVarString || k == KindVarBytes
}

// maxWidth returns the largest declared width the kind accepts.
func (k Kind) maxWidth() int {
	switch k {
	case KindLen, KindUint, KindInt:
		return maxIntWidth
	default:
		return int(^uint(0) >> 1)
	}
}

// FieldFormat describes one field of a message: its kind plus either a fixed
// byte width or the index of the earlier Len field supplying its length.
type FieldFormat struct {
	Kind Kind
	// Width is the fixed byte length. Unused by variable kinds.
	Width int
	// LenIdx is the position of the Len field holding this field's byte
	// length. Used only by variable kinds.
	LenIdx int
}

// LenField returns a Len field of the given byte width (1 to 8).
func LenField(width int) FieldFormat {
	return FieldFormat{Kind: KindLen, Width: width}
}

// UintField returns an unsigned integer field of the given byte width (1 to 8).
func UintField(width int) FieldFormat {
	return FieldFormat{Kind: KindUint, Width: width}
}

// IntField returns a signed integer field of the given byte width (1 to 8).
func IntField(width int) FieldFormat {
	return FieldFormat{Kind: KindInt, Width: width}
}

// FixedStringField returns a string field of the given byte width.
func FixedStringField(width int) FieldFormat {
	return FieldFormat{Kind: KindFixedString, Width: width}
}

// VarStringField returns a string field whose byte length is the value of
// the Len field at lenIdx.
func VarStringField(lenIdx int) FieldFormat {
	return FieldFormat{Kind: KindVarString, LenIdx: lenIdx}
}

// FixedBytesField returns a raw bytes field of the given byte width.
func FixedBytesField(width int) FieldFormat {
	return FieldFormat{Kind: KindFixedBytes, Width: width}
}

// VarBytesField returns a raw bytes field whose byte length is the value of
// the Len field at lenIdx.
func VarBytesField(lenIdx int) FieldFormat {
	return FieldFormat{Kind: KindVarBytes, LenIdx: lenIdx}
}

// resolvedLen returns the byte length of the field at idx. Fixed kinds
// return their declared width. Variable kinds look the length up in the
// values materialized so far; on a validated format processed left to right
// the lookup always succeeds, the error paths guard unvalidated formats.
func (f FieldFormat) resolvedLen(idx int, values []Value) (int, error) {
	if !f.Kind.variable() {
		return f.Width, nil
	}

	if f.LenIdx < 0 || f.LenIdx >= len(values) {
		return 0, &LenIdxError{Field: idx, LenIdx: f.LenIdx}
	}

	l, ok := values[f.LenIdx].(Len)
	if !ok {
		return 0, &NotALenError{Field: idx, LenIdx: f.LenIdx}
	}

	// A Len value is 64 bits on the wire; reject anything a non-negative
	// int cannot hold before it reaches a slice expression.
	if uint64(l) > math.MaxInt {
		return 0, &LenTooLargeError{Field: idx, Len: uint64(l), MaxLen: math.MaxInt}
	}

	return int(l), nil
}
