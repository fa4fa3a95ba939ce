package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRetrievalUnavailable means both signals on both indices failed;
	// no partial answer is possible.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrSynthesisFailure means the generation call failed or returned an
	// unusable structure.
	ErrSynthesisFailure = errors.New("answer synthesis failed")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrTemporary        = errors.New("temporary failure")
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
