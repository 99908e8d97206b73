package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncatedBuffer means the buffer ends before a field its own flags
	// declare.
	ErrTruncatedBuffer = errors.New("truncated buffer")
	// ErrUnsupportedField means a flag bit selects a field layout this
	// decoder does not know. The whole message is rejected.
	ErrUnsupportedField = errors.New("unsupported field")
)

// DecodeError describes where decoding of a single message stopped.
// It unwraps to ErrTruncatedBuffer or ErrUnsupportedField.
type DecodeError struct {
	Message string
	Field   string
	Offset  int
	Need    int
	Len     int
	Bit     int
	Err     error
}

func (e *DecodeError) Error() string {
	if errors.Is(e.Err, ErrUnsupportedField) {
		return fmt.Sprintf("%s: %v: flag bit %d", e.Message, e.Err, e.Bit)
	}
	return fmt.Sprintf("%s: buffer too short for %s at offset %d (need %d bytes, have %d): %v",
		e.Message, e.Field, e.Offset, e.Need, e.Len-e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func truncated(message, field string, offset, need, length int) error {
	return &DecodeError{
		Message: message,
		Field:   field,
		Offset:  offset,
		Need:    need,
		Len:     length,
		Err:     ErrTruncatedBuffer,
	}
}
