package vectorindex

import "errors"

var (
	ErrUnreachable       = errors.New("qdrant server unreachable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
