package controller

import "errors"

var (
	ErrBatchResultMismatch = errors.New("batch result count mismatch")
	ErrInvalidBatchResult  = errors.New("batch result has neither success nor error")
	ErrMissingObjectID     = errors.New("object id is required")
)
