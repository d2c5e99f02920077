package domain

import "errors"

// Error classes. Concrete errors wrap one of these so the transport layer can
// map them to a status code with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrIntegrityViolation = errors.New("integrity violation")
)

var (
	ErrInvalidMode           = validationError("focus mode must be one of: fun, easy, medium, hard")
	ErrInvalidDuration       = validationError("durationMinutes must be an integer between 0 and 1440")
	ErrInvalidSessionTimes   = validationError("startedAt must not be after endedAt, and endedAt must not be in the future")
	ErrInvalidMinutes        = validationError("availableMinutes must be a non-negative integer that fits the ledger")
	ErrInvalidFocusDuration  = validationError("focusDurationMinutes must be an integer between 1 and 240")
	ErrInvalidOutcome        = validationError("status must be one of: completed, failed")
	ErrEmptyPatch            = validationError("at least one of focusDurationMinutes or focusMode must be provided")
	ErrInvalidPayload        = validationError("invalid webhook payload")
	ErrMissingWebhookHeaders = validationError("missing svix headers")

	ErrInvalidSignature = &classError{msg: "invalid webhook signature", class: ErrUnauthorized}

	ErrUserNotFound        = &classError{msg: "user not found", class: ErrNotFound}
	ErrBalanceNotFound     = &classError{msg: "balance not found", class: ErrNotFound}
	ErrPreferencesNotFound = &classError{msg: "preferences not found", class: ErrNotFound}

	ErrUserExists = &classError{msg: "user already exists", class: ErrConflict}
)

// classError is a sentinel that also matches its class via errors.Is.
type classError struct {
	msg   string
	class error
}

func (e *classError) Error() string { return e.msg }

func (e *classError) Unwrap() error { return e.class }

func validationError(msg string) error {
	return &classError{msg: msg, class: ErrValidation}
}

// PublicMessage returns the message of the outermost sentinel in err's chain
// that is safe to show to a client, or "" when there is none.
func PublicMessage(err error) string {
	var ce *classError
	if errors.As(err, &ce) {
		return ce.msg
	}
	return ""
}

// NewValidationError returns a validation error whose message is shown to
// the client as is.
func NewValidationError(msg string) error {
	return validationError(msg)
}
