// Package chainstore implements the persistent block-chain storage engine:
// the in-memory cached chain index (C3), the reorg-aware UTXO mutator (C4),
// and the address-indexed query surface (C5), all layered on package kv
// (C1) and package codec (C2).
package chainstore

import "fmt"

// ErrKind classifies a chainstore error for programmatic handling.
type ErrKind int

const (
	// KindStorageFault indicates an underlying kv failure.
	KindStorageFault ErrKind = iota
	// KindNotFound indicates a requested hash/id/address is absent. This is
	// a normal read outcome, not a fault.
	KindNotFound
	// KindInconsistentStore indicates a referential-integrity violation
	// discovered while applying a block (e.g. a missing source tx).
	KindInconsistentStore
	// KindCodecError indicates a decode failure or length mismatch.
	KindCodecError
	// KindCancelled indicates cooperative cancellation of a long-running
	// query via context.
	KindCancelled
)

func (k ErrKind) String() string {
	switch k {
	case KindStorageFault:
		return "storage_fault"
	case KindNotFound:
		return "not_found"
	case KindInconsistentStore:
		return "inconsistent_store"
	case KindCodecError:
		return "codec_error"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the engine's uniform error shape: a Kind, an operation label,
// a message, and an optional wrapped cause.
type Error struct {
	Kind ErrKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Sentinel values for errors.Is comparisons against a Kind, independent of
// Op/Msg/wrapped cause.
var (
	ErrStorageFault      = &Error{Kind: KindStorageFault}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInconsistentStore = &Error{Kind: KindInconsistentStore}
	ErrCodecError        = &Error{Kind: KindCodecError}
	ErrCancelled         = &Error{Kind: KindCancelled}
)

// Is makes *Error comparable via errors.Is by Kind alone, so callers can
// write errors.Is(err, chainstore.ErrNotFound) without matching Op/Msg.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind ErrKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func newErrf(kind ErrKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// asNotFound maps a codec decode failure on a read path to NotFound, per
// the engine's error policy: CodecError on read is recoverable at the
// query level.
func asNotFound(op string, err error) error {
	if err == nil {
		return nil
	}
	return newErr(KindNotFound, op, err)
}

// storageErr wraps a kv-layer failure as a StorageFault.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return newErr(KindStorageFault, op, err)
}
