package models

import "errors"

var (
	// ErrEmbedding is returned when the embedding provider fails or returns malformed output.
	ErrEmbedding = errors.New("embedding failed")
	// ErrDimensionMismatch is returned when a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrInvalidArgument is returned for non-positive k or malformed records.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when a customer ID is unknown.
	ErrNotFound = errors.New("not found")
)
