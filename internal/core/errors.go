package core

// Error codes for domain errors.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeValidation   = "validation"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeInternal     = "internal"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

func errorEvent(code, msg string) *Event {
	return &Event{Kind: EventError, Error: coreError(code, msg)}
}
