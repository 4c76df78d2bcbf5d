package codec

import "errors"

var (
	ErrUnsavedPointer   = errors.New("cannot encode a pointer to an unsaved object")
	ErrUnsupportedType  = errors.New("value type cannot be encoded")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrMalformedValue   = errors.New("malformed encoded value")
)
