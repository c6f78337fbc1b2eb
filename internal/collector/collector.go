// Package collector produces flat PathEntry sequences from a local directory
// walk or a remote repository listing API.
package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/temirov/repomap/internal/types"
)

// Collector enumerates a source into a flat sequence of path entries.
// Implementations make no ordering promise; the tree builder sorts.
type Collector interface {
	Collect(ctx context.Context) ([]types.PathEntry, error)
}

// Error kinds classifying collection failures.
const (
	KindInput     = "input"
	KindNotFound  = "not_found"
	KindAuth      = "auth"
	KindRateLimit = "rate_limit"
	KindUpstream  = "upstream"
	KindIO        = "io"
)

// Error is a structured collection failure carrying a kind and a human message.
type Error struct {
	Kind    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (collectionError *Error) Error() string {
	if collectionError.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", collectionError.Kind, collectionError.Message, collectionError.Cause)
	}
	return fmt.Sprintf("%s: %s", collectionError.Kind, collectionError.Message)
}

// Unwrap exposes the underlying cause for errors.Is and errors.As.
func (collectionError *Error) Unwrap() error {
	return collectionError.Cause
}

// NewError constructs an Error with the given kind and formatted message.
func NewError(kind string, format string, arguments ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, arguments...)}
}

// WrapError constructs an Error that wraps an underlying cause.
func WrapError(kind string, cause error, format string, arguments ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, arguments...), Cause: cause}
}

// KindOf returns the error kind for classified errors and KindIO otherwise.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindIO
}
