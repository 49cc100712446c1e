package errors

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"
)

// Kind classifies a service failure for the HTTP boundary.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindValidation
	KindConflict
	KindPermissionDenied
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation failed"
	case KindConflict:
		return "conflict"
	case KindPermissionDenied:
		return "permission denied"
	}
	return "unknown"
}

// ServiceError is a domain failure with a user-facing message.
// Two ServiceErrors match under errors.Is when the target carries no
// message and the kinds are equal, so errors.Is(err, ErrNotFound) works
// for every not-found sentinel.
type ServiceError struct {
	Kind    Kind
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	if t.Message == "" {
		return t.Kind == e.Kind
	}
	return t == e
}

// Kind sentinels for errors.Is checks.
var (
	ErrNotFound         = &ServiceError{Kind: KindNotFound}
	ErrValidation       = &ServiceError{Kind: KindValidation}
	ErrConflict         = &ServiceError{Kind: KindConflict}
	ErrPermissionDenied = &ServiceError{Kind: KindPermissionDenied}
)

func NewNotFound(message string) *ServiceError {
	return &ServiceError{Kind: KindNotFound, Message: message}
}

func NewValidation(message string) *ServiceError {
	return &ServiceError{Kind: KindValidation, Message: message}
}

func NewConflict(message string) *ServiceError {
	return &ServiceError{Kind: KindConflict, Message: message}
}

func NewPermissionDenied(message string) *ServiceError {
	return &ServiceError{Kind: KindPermissionDenied, Message: message}
}

// RespondWithServiceError translates err into the matching HTTP response.
// Anything that is not a ServiceError becomes a 500 with a generic message.
func RespondWithServiceError(c *gin.Context, err error) {
	var se *ServiceError
	if !stderrors.As(err, &se) {
		InternalError(c, "")
		return
	}

	switch se.Kind {
	case KindNotFound:
		NotFound(c, se.Error())
	case KindValidation:
		BadRequest(c, se.Error())
	case KindConflict:
		Conflict(c, se.Error())
	case KindPermissionDenied:
		Forbidden(c, se.Error())
	default:
		InternalError(c, "")
	}
}
