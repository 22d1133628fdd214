package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptStore marks pattern-store payloads that violate the schema.
	// It is the only training/identification failure that must abort a run.
	ErrCorruptStore = errors.New("corrupt pattern store")

	// ErrOracleUnavailable marks a degraded or unreachable header oracle.
	// Callers absorb it and fall back; it never aborts a run.
	ErrOracleUnavailable = errors.New("header oracle unavailable")

	// ErrIncompatiblePair marks a before/after sheet pair that cannot be
	// aligned. Recorded as a training warning, never fatal.
	ErrIncompatiblePair = errors.New("incompatible sheet pair")

	ErrSheetNotFound = errors.New("sheet not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrTemporary     = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
