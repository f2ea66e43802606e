package registry

import "errors"

var (
	ErrNotFound       = errors.New("registry: not found")
	ErrAmbiguous      = errors.New("registry: ambiguous match")
	ErrBatchFinalized = errors.New("registry: batch already finalized")
)
