package store

import "fmt"

// DimensionMismatchError reports an embedding whose dimension does not
// match the index.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: index expects %d, got %d", e.Want, e.Got)
}

// IndexConflictError reports an existing index whose definition is
// incompatible with the requested one.
type IndexConflictError struct {
	Index  string
	Reason string
}

func (e *IndexConflictError) Error() string {
	return fmt.Sprintf("index %q conflicts with requested definition: %s", e.Index, e.Reason)
}
