package wiremsg

import (
	"errors"
	"fmt"
)

// Errors returned by format construction and the codec.
var (
	// ErrEmptyFormat is returned when a message format contains no fields.
	ErrEmptyFormat = errors.New("message format must contain at least one field")
	// ErrEndOfData is returned when decoding runs out of bytes before the
	// current field is complete. No partial message is ever returned.
	ErrEndOfData = errors.New("no more bytes can be read")
)

// Errors returned by endpoint operations.
var (
	// ErrNotConnected is returned when sending through a client that has no
	// active connection.
	ErrNotConnected = errors.New("client is not connected to a server")
	// ErrNotRunning is returned when stopping an endpoint that never ran.
	ErrNotRunning = errors.New("endpoint is not running")
	// ErrAlreadyRunning is returned when running an endpoint twice without
	// stopping it in between.
	ErrAlreadyRunning = errors.New("endpoint is already running")
	// ErrBufferFull is returned when a peer's send queue cannot accept more
	// messages. The message was not queued.
	ErrBufferFull = errors.New("send queue full")
	// ErrStopped reports that a blocked socket operation was released by a
	// cooperative stop. It terminates background tasks and is never returned
	// to callers of the public surface.
	ErrStopped = errors.New("endpoint is stopping")
)

// ErrValueCount is returned when a message carries a different number of
// values than its format has fields.
var ErrValueCount = errors.New("message value count does not match the format")

// ValueKindError reports a value whose case does not match its field's kind.
type ValueKindError struct {
	Field int
	Kind  Kind
}

func (e *ValueKindError) Error() string {
	return fmt.Sprintf("field %d: value does not match kind %v", e.Field, e.Kind)
}

// WidthError reports a fixed field whose declared byte width is outside the
// range its kind allows.
type WidthError struct {
	Field int
	Kind  Kind
	Width int
}

func (e *WidthError) Error() string {
	switch e.Kind {
	case KindLen, KindUint, KindInt:
		return fmt.Sprintf("field %d: %v width %d out of range [1, %d]", e.Field, e.Kind, e.Width, maxIntWidth)
	default:
		return fmt.Sprintf("field %d: %v width %d must be at least 1", e.Field, e.Kind, e.Width)
	}
}

// LenRefError reports a variable field whose length reference points at its
// own position or a later one.
type LenRefError struct {
	Field  int
	LenIdx int
}

func (e *LenRefError) Error() string {
	return fmt.Sprintf("field %d: length reference %d is not an earlier field", e.Field, e.LenIdx)
}

// LenIdxError reports a length lookup into a position that has no value yet.
type LenIdxError struct {
	Field  int
	LenIdx int
}

func (e *LenIdxError) Error() string {
	return fmt.Sprintf("field %d: length index %d is out of bound", e.Field, e.LenIdx)
}

// NotALenError reports a length reference whose target is not a Len field.
type NotALenError struct {
	Field  int
	LenIdx int
}

func (e *NotALenError) Error() string {
	return fmt.Sprintf("field %d: field %d is not a length", e.Field, e.LenIdx)
}

// LenTooLargeError reports a resolved length that exceeds what the field's
// container can represent (8 bytes for integer kinds).
type LenTooLargeError struct {
	Field  int
	Len    uint64
	MaxLen int
}

func (e *LenTooLargeError) Error() string {
	return fmt.Sprintf("field %d: length %d exceeds the maximum of %d", e.Field, e.Len, e.MaxLen)
}

// ValueLenError reports a string or bytes value whose length does not
// satisfy the length the format resolved for its field: longer than the
// resolved length for any kind, or shorter than the declared width of a
// fixed kind.
type ValueLenError struct {
	Field        int
	SpecifiedLen int
	ValueLen     int
}

func (e *ValueLenError) Error() string {
	if e.ValueLen > e.SpecifiedLen {
		return fmt.Sprintf("field %d: value length %d exceeds the specified length %d", e.Field, e.ValueLen, e.SpecifiedLen)
	}
	return fmt.Sprintf("field %d: value length %d does not fill the fixed width %d", e.Field, e.ValueLen, e.SpecifiedLen)
}

// UTF8Error reports string bytes that are not valid UTF-8.
type UTF8Error struct {
	Field int
}

func (e *UTF8Error) Error() string {
	return fmt.Sprintf("field %d: bytes are not a valid utf8 string", e.Field)
}

// AddrParseError reports an address string that is not a valid IPv4
// host:port pair.
type AddrParseError struct {
	Addr string
	Err  error
}

func (e *AddrParseError) Error() string {
	return fmt.Sprintf("invalid address %q: %v", e.Addr, e.Err)
}

func (e *AddrParseError) Unwrap() error { return e.Err }

// NoSuchClientError reports a send to a peer address the server has no
// registered connection for.
type NoSuchClientError struct {
	Addr string
}

func (e *NoSuchClientError) Error() string {
	return fmt.Sprintf("no such client connected: %q", e.Addr)
}
