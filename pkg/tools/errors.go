package tools

import (
	"errors"

	"github.com/dd0wney/cluso-attackgraph/pkg/model"
)

// Error is the only error shape returned across the tool boundary
type Error struct {
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Unwrap exposes the classified error so errors.Is still matches sentinels
func (e *Error) Unwrap() error {
	return e.cause
}

// AsError converts any error into the boundary envelope. A value that is
// already an *Error is returned unchanged.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return &Error{Kind: model.ErrorKindOf(err), Message: err.Error(), cause: err}
}
