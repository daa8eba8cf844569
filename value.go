package wiremsg

// Value is one decoded or to-be-encoded field value. The case set is closed:
// Len, Uint, Int, String and Bytes. Len and Uint share a wire representation
// (unsigned big-endian); a Len value additionally serves as the byte length
// of any later variable field that references its position.
type Value interface {
	isValue()
}

// Len is an unsigned integer consumed as the byte length of a later
// variable-length field.
type Len uint64

// Uint is an unsigned integer value.
type Uint uint64

// Int is a signed integer value.
type Int int64

// String is a UTF-8 text value.
type String string

// Bytes is a raw byte sequence value.
type Bytes []byte

func (Len) isValue()    {}
func (Uint) isValue()   {}
func (Int) isValue()    {}
func (String) isValue() {}
func (Bytes) isValue()  {}

// Message is an ordered sequence of values, positionally aligned with the
// fields of the MessageFormat that produced or will consume it. A message
// carries no reference to its format; callers pass both together.
type Message []Value
