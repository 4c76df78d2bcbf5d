package object

import "errors"

var (
	ErrCircularDependency = errors.New("found a circular dependency while saving")
	ErrRelationCycle      = errors.New("unable to save an object with a relation to a cycle")
	ErrImmutableKey       = errors.New("key is read-only")
	ErrInvalidValue       = errors.New("invalid field value")
	ErrObjectNotSaved     = errors.New("object has no id")
	ErrHubClosed          = errors.New("hub is closed")
	ErrInvalidClass       = errors.New("invalid class definition")
	ErrSaveInFlight       = errors.New("cannot merge while a save is in progress")
	ErrClassMismatch      = errors.New("objects belong to different classes")
)
