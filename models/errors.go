package models

// ValidationError is returned for missing or malformed caller input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError with the given message
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}
