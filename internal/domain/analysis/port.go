package analysis

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when no record has the requested ID.
var ErrNotFound = errors.New("analysis not found")

// StoreError wraps backend failures so they stay distinct from analysis errors.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

// Repository port (Result Store): an opaque keyed store of records.
type Repository interface {
	Save(ctx context.Context, r *Record) (ID, error)
	Get(ctx context.Context, id ID) (*Record, error)
	// List returns every stored ID, most recent first.
	List(ctx context.Context) ([]ID, error)
}

// FailureLog persists failures for auditing.
type FailureLog interface {
	Save(ctx context.Context, f *Failure) error
	ListByAnalysis(ctx context.Context, analysisID string, limit int) ([]*Failure, error)
}
