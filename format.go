// Package wiremsg lets an operator define a binary message layout at
// runtime — an ordered sequence of typed fields whose variable lengths are
// taken from earlier decoded Len values — and exchange messages in that
// layout over TCP, as a multi-client server or a single connecting client.
//
// A MessageFormat is validated once at construction and then shared
// read-only by the codec and by every connection. Messages themselves are
// plain value sequences with no identity beyond their contents.
package wiremsg

// MessageFormat is the validated, ordered list of field formats describing
// one message shape. It is immutable once constructed; invariants are
// checked by NewMessageFormat and never re-checked per message.
type MessageFormat struct {
	fields []FieldFormat
}

// NewMessageFormat validates the given fields in order and returns the
// format. It fails on the first violation found: an empty field list
// (ErrEmptyFormat), a fixed width outside the kind's range (WidthError), a
// length reference at or after its own field (LenRefError), or a length
// reference whose target is not a Len field (NotALenError).
func NewMessageFormat(fields ...FieldFormat) (*MessageFormat, error) {
	if len(fields) == 0 {
		return nil, ErrEmptyFormat
	}

	for i, f := range fields {
		if f.Kind.variable() {
			if f.LenIdx < 0 || f.LenIdx >= i {
				return nil, &LenRefError{Field: i, LenIdx: f.LenIdx}
			}
			if fields[f.LenIdx].Kind != KindLen {
				return nil, &NotALenError{Field: i, LenIdx: f.LenIdx}
			}
			continue
		}

		if f.Width < 1 || f.Width > f.Kind.maxWidth() {
			return nil, &WidthError{Field: i, Kind: f.Kind, Width: f.Width}
		}
	}

	// Copy so a caller holding the original slice cannot mutate the
	// validated format.
	copied := make([]FieldFormat, len(fields))
	copy(copied, fields)

	return &MessageFormat{fields: copied}, nil
}

// Len returns the number of fields in the format.
func (f *MessageFormat) Len() int {
	return len(f.fields)
}

// Fields returns a copy of the format's field list.
func (f *MessageFormat) Fields() []FieldFormat {
	fields := make([]FieldFormat, len(f.fields))
	copy(fields, f.fields)
	return fields
}
