package ops

import "errors"

var (
	ErrTypeMismatch          = errors.New("operation does not apply to the current value type")
	ErrInvalidMerge          = errors.New("operation is invalid after previous operation")
	ErrInvalidAmount         = errors.New("increment amount must be a number")
	ErrRelationClassMismatch = errors.New("related objects must share one class")
	ErrUnsavedRelationTarget = errors.New("cannot add an unsaved object to a relation")
	ErrNoRelationTargets     = errors.New("relation operation needs at least one target")
)
