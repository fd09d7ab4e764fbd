package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"greenhouse_monitor/internal/gateway"
)

// Kind is the category of an auth failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindEmailAlreadyInUse
	KindValidation
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "InvalidCredentials"
	case KindEmailAlreadyInUse:
		return "EmailAlreadyInUse"
	case KindValidation:
		return "ValidationError"
	case KindNetwork:
		return "NetworkError"
	default:
		return "Unknown"
	}
}

const (
	msgInvalidCredentials = "Invalid email or password"
	msgEmailInUse         = "Email already in use"
	msgNetwork            = "Network error. Please check your connection"
	msgInvalidRequest     = "Invalid request"
)

var emailInUsePattern = regexp.MustCompile(`(?i)email\s+(is\s+)?already\s+(in\s+use|registered|exists|taken)`)

// validationStatuses are the remote rejections that are not credential failures.
var validationStatuses = map[int]bool{
	http.StatusBadRequest:          true,
	http.StatusConflict:            true,
	http.StatusUnprocessableEntity: true,
}

// Error is a classified auth failure. Message is what the user sees.
type Error struct {
	Kind    Kind
	Status  int // HTTP status when a response was received
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Classify maps a gateway or storage error onto the auth taxonomy.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	var se *gateway.StatusError
	switch {
	case errors.As(err, &se):
		return classifyStatus(se)
	case errors.Is(err, gateway.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindNetwork, Message: msgNetwork, cause: err}
	default:
		return &Error{Kind: KindUnknown, Message: "Unexpected error", cause: err}
	}
}

func classifyStatus(se *gateway.StatusError) *Error {
	e := &Error{Status: se.Code, cause: se}
	switch {
	case se.Code == http.StatusUnauthorized:
		e.Kind, e.Message = KindInvalidCredentials, msgInvalidCredentials
	case se.Code >= 400 && se.Code < 500 && (emailInUsePattern.MatchString(se.Message) || emailInUsePattern.MatchString(se.Body)):
		e.Kind, e.Message = KindEmailAlreadyInUse, msgEmailInUse
	case validationStatuses[se.Code]:
		e.Kind, e.Message = KindValidation, se.Message
		if e.Message == "" {
			e.Message = msgInvalidRequest
		}
	default:
		e.Kind, e.Message = KindUnknown, fmt.Sprintf("Unexpected error (status %d)", se.Code)
	}
	return e
}
