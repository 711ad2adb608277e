package ome

import (
	"errors"
	"fmt"
)

var (
	// ErrRejected matches every *RejectError
	ErrRejected = errors.New("order rejected")
	// ErrInvariant matches every *InvariantError
	ErrInvariant = errors.New("invariant violation")
	// ErrHalted is returned by mutations of an engine stopped by an invariant violation
	ErrHalted = errors.New("engine halted")
	// ErrStopped is returned when a worker no longer accepts commands
	ErrStopped = errors.New("worker stopped")
)

// Reason why an input was rejected without any state change
type Reason string

const (
	ReasonInvalidSide         Reason = "invalid_side"
	ReasonInvalidKind         Reason = "invalid_kind"
	ReasonMissingPrice        Reason = "missing_price"
	ReasonNonPositivePrice    Reason = "non_positive_price"
	ReasonNonPositiveQuantity Reason = "non_positive_quantity"
	ReasonUnexpectedPrice     Reason = "unexpected_price"
	ReasonUnknownInstrument   Reason = "unknown_instrument"
	ReasonInvalidCommand      Reason = "invalid_command"
)

type RejectError struct {
	Reason Reason
}

func Reject(r Reason) error {
	return &RejectError{Reason: r}
}

func (e *RejectError) Error() string {
	return "order rejected: " + string(e.Reason)
}

func (e *RejectError) Is(target error) bool {
	return target == ErrRejected
}

// RejectReason extracts the reason of a rejection anywhere in err's chain
func RejectReason(err error) (Reason, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}

// InvariantError a broken book or ledger invariant. It is never expected with a
// correct single writer and halts the engine that raised it.
type InvariantError struct {
	Symbol string
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s %s: invariant violation: %s", e.Symbol, e.Op, e.Detail)
}

func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariant
}
