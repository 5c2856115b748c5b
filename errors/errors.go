package errors

import "errors"

// Sentinel errors for common error conditions
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrCollectionNotFound indicates that a vector collection does not exist
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch indicates that a vector does not match the
	// collection's declared embedding size
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrNoAssets indicates that a project has no files to process
	ErrNoAssets = errors.New("no assets to process")

	// ErrInvalidConfig indicates that configuration validation failed
	ErrInvalidConfig = errors.New("invalid configuration")
)
