package strategy

import (
	"errors"
	"fmt"
)

var (
	// ErrPositionExists is returned when opening a symbol that already has
	// an active position.
	ErrPositionExists = errors.New("a position already exists")

	// ErrNoPosition is returned when updating or closing a symbol with no
	// active position.
	ErrNoPosition = errors.New("no position exists")

	// ErrNoPriceUpdate is returned when a market-price operation runs
	// before any price update has been seen for the symbol.
	ErrNoPriceUpdate = errors.New("no price update received")
)

// PositionError wraps a rejected position operation. These are strategy
// logic errors, surfaced synchronously to the caller and never retried; the
// position state is left untouched.
type PositionError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *PositionError) Unwrap() error { return e.Err }

func positionErr(op, symbol string, err error) error {
	return &PositionError{Op: op, Symbol: symbol, Err: err}
}
