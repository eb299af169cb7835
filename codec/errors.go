package codec

import "fmt"

// Error reports a decode failure or an internal length mismatch. The codec
// has no side effects; this is its only error shape.
type Error struct {
	Entity string
	Reason string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("codec: %s: %s", e.Entity, e.Reason)
}

func errf(entity, format string, args ...any) error {
	return &Error{Entity: entity, Reason: fmt.Sprintf(format, args...)}
}
