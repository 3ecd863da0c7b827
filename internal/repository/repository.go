// Package repository defines data access for the folder tree, grants, share links and
// the activity log. Implementations live in subpackages (postgres, memory).
// No business logic here, strictly persistence operations.
package repository

import (
	"context"
	"errors"
)

// ErrNotFound is returned by implementations when a looked-up row does not exist.
var ErrNotFound = errors.New("record not found")

// TxFn is a function that runs within a transaction.
type TxFn func(ctx context.Context) error

// TxManager runs a function atomically. Repositories called with the context passed to fn
// participate in the transaction; if fn returns an error nothing it wrote is kept.
type TxManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")
