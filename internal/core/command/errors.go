package command

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNoServerURL     = errors.New("server url is required")
	ErrInvalidResponse = errors.New("invalid server response")
)

// ErrorCode is the numeric error code reported by the server.
type ErrorCode int

const (
	CodeOtherCause         ErrorCode = -1
	CodeInternalServer     ErrorCode = 1
	CodeConnectionFailed   ErrorCode = 100
	CodeObjectNotFound     ErrorCode = 101
	CodeInvalidQuery       ErrorCode = 102
	CodeInvalidClassName   ErrorCode = 103
	CodeMissingObjectID    ErrorCode = 104
	CodeInvalidKeyName     ErrorCode = 105
	CodeInvalidPointer     ErrorCode = 106
	CodeInvalidJSON        ErrorCode = 107
	CodeIncorrectType      ErrorCode = 111
	CodeOperationForbidden ErrorCode = 119
	CodeTimeout            ErrorCode = 124
	CodeInvalidSession     ErrorCode = 209
)

// Error is a failure reported by the server for one command.
type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
}

// Error formats the code and message.
func (e *Error) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ErrorFromBody builds an Error from an error payload {"code":..., "error":...}.
func ErrorFromBody(body map[string]any, status int) *Error {
	e := &Error{Code: CodeOtherCause, StatusCode: status}
	if body == nil {
		return e
	}
	if msg, ok := body["error"].(string); ok {
		e.Message = msg
	}
	switch c := body["code"].(type) {
	case int64:
		e.Code = ErrorCode(c)
	case float64:
		e.Code = ErrorCode(c)
	case int:
		e.Code = ErrorCode(c)
	case json.Number:
		if n, err := c.Int64(); err == nil {
			e.Code = ErrorCode(n)
		}
	}
	return e
}
