package retrieval

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreEmpty is returned when an operation needs at least one example.
	ErrStoreEmpty = errors.New("example store is empty")

	// ErrEmptyInput is returned when an index is built from zero vectors.
	ErrEmptyInput = errors.New("no vectors to index")

	// ErrDimensionMismatch is matched by every *DimensionMismatchError.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrPersistence wraps storage failures surfaced by the example store.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidExample is returned for examples with a blank description or command.
	ErrInvalidExample = errors.New("invalid example")
)

// DimensionMismatchError reports a vector whose length differs from the
// dimension already established by the store or index.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
