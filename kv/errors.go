package kv

import "fmt"

// StorageFault wraps an underlying key-value store failure. Per the error
// policy, a StorageFault aborts any in-progress batch and must propagate to
// the caller unmodified in kind.
type StorageFault struct {
	Op  string
	Err error
}

func (e *StorageFault) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return fmt.Sprintf("storage fault: %s", e.Op)
	}
	return fmt.Sprintf("storage fault: %s: %v", e.Op, e.Err)
}

func (e *StorageFault) Unwrap() error { return e.Err }

func faultf(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageFault{Op: op, Err: err}
}
