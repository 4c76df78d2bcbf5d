package client

import "github.com/zeusync/objectsync/internal/core/object"

type (
	Object          = object.Object
	Entity          = object.Entity
	Class           = object.Class
	Relation        = object.Relation
	SaveError       = object.SaveError
	SessionProvider = object.SessionProvider
	SessionFunc     = object.SessionFunc
)

// Unwrap returns the *Object behind an entity.
func Unwrap(e Entity) *Object { return object.Unwrap(e) }
