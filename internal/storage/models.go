package storage

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// DimensionError is returned when an embedding's length differs from the
// dimension of the embeddings already stored.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding has dimension %d, store holds %d", e.Got, e.Want)
}

// Example is a curated (description, command) pair together with the
// embedding of its description. ID is assigned by the database and is
// strictly increasing in insertion order.
type Example struct {
	ID          int64
	Description string
	Command     string
	Embedding   []float32
	CreatedAt   time.Time
}
