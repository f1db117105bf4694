// Package errors defines the typed error kinds the ledger core reports.
// Validation failures on adversarial input are always returned as one of
// these kinds, never surfaced as a panic.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a ledger error.
type Kind uint8

const (
	// KindUnknown is the zero value and should not be produced directly.
	KindUnknown Kind = iota
	// KindInvalidBlock covers header sequencing, previous-hash, timestamp,
	// difficulty, merkle root, proof-of-work, size and coinbase failures.
	KindInvalidBlock
	// KindInvalidTransaction covers structural and economic transaction
	// failures: empty lists, zero outputs, missing UTXO references,
	// immature coinbase spends, inputs < outputs, excessive fee.
	KindInvalidTransaction
	// KindInsufficientFunds is returned by UTXO selection when the mature
	// balance of an address cannot cover a requested amount.
	KindInsufficientFunds
	// KindNotFound is returned by lookups for unknown blocks or transactions.
	KindNotFound
	// KindMining covers a cancelled nonce search and empty candidate templates.
	KindMining
	// KindOverflow is returned when a value accumulation would exceed the
	// integer range. Arithmetic fails closed instead of wrapping.
	KindOverflow
	// KindStorage covers persistence collaborator failures.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindInvalidBlock:
		return "invalid block"
	case KindInvalidTransaction:
		return "invalid transaction"
	case KindInsufficientFunds:
		return "insufficient funds"
	case KindNotFound:
		return "not found"
	case KindMining:
		return "mining error"
	case KindOverflow:
		return "arithmetic overflow"
	case KindStorage:
		return "storage error"
	default:
		return "unknown error"
	}
}

// Error is a ledger error carrying a kind, a description and an
// optional wrapped cause.
type Error struct {
	kind    Kind
	message string
	wrapped error
}

func (e *Error) Error() string {
	if e.message == "" {
		return e.kind.String()
	}
	return e.kind.String() + ": " + e.message
}

// Kind returns the classification of this error.
func (e *Error) Kind() Kind { return e.kind }

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.wrapped }

// New creates a ledger error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap creates a ledger error of the given kind around an existing cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...), wrapped: err}
}

// NewInvalidBlock returns a KindInvalidBlock error.
func NewInvalidBlock(format string, args ...interface{}) *Error {
	return New(KindInvalidBlock, format, args...)
}

// NewInvalidTransaction returns a KindInvalidTransaction error.
func NewInvalidTransaction(format string, args ...interface{}) *Error {
	return New(KindInvalidTransaction, format, args...)
}

// NewInsufficientFunds returns a KindInsufficientFunds error.
func NewInsufficientFunds(format string, args ...interface{}) *Error {
	return New(KindInsufficientFunds, format, args...)
}

// NewNotFound returns a KindNotFound error.
func NewNotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

// NewMiningError returns a KindMining error.
func NewMiningError(format string, args ...interface{}) *Error {
	return New(KindMining, format, args...)
}

// NewOverflow returns a KindOverflow error.
func NewOverflow(format string, args ...interface{}) *Error {
	return New(KindOverflow, format, args...)
}

// NewStorageError returns a KindStorage error wrapping cause.
func NewStorageError(err error, format string, args ...interface{}) *Error {
	return Wrap(KindStorage, err, format, args...)
}

// IsKind reports whether err or any error in its chain is a ledger
// error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.kind == kind
	}
	return false
}
