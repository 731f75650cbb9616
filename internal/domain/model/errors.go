package model

import (
	"errors"
	"fmt"
)

// input errors: reported to the caller, never retried
var (
	ErrNoCredentials       = errors.New("trading credentials not configured")
	ErrInsufficientBalance = errors.New("insufficient USDT balance")
	ErrInvalidQuantity     = errors.New("normalized quantity is not positive")
	ErrInvalidPair         = errors.New("futures contract does not match perpetual")
	ErrInvalidNotional     = errors.New("notional must be positive")
)

// state errors
var (
	ErrPositionNotFound = errors.New("position not found")
	ErrPositionNotOpen  = errors.New("position is not open")
)

// PartialLegError one leg of a two-leg transition was accepted by the exchange and the
// other was not. Nothing is persisted and nothing is compensated; the filled leg needs
// manual reconciliation.
type PartialLegError struct {
	Transition   string // "open" or "close"
	FilledSymbol string
	FilledSide   OrderSide
	FilledOrder  string
	FailedSymbol string
	FailedSide   OrderSide
	Err          error
}

func (e *PartialLegError) Error() string {
	return fmt.Sprintf("partial %s: %s %s filled (order %s) but %s %s failed: %v",
		e.Transition, e.FilledSide, e.FilledSymbol, e.FilledOrder, e.FailedSide, e.FailedSymbol, e.Err)
}

func (e *PartialLegError) Unwrap() error { return e.Err }
