package services

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/cafe-delivery/storefront/internal/apiclient"
	"github.com/cafe-delivery/storefront/internal/repositories"
)

// ErrSessionExpired is surfaced when the API rejected the visitor's tokens and the session was
// cleared. Handlers redirect to the login view.
var ErrSessionExpired = apiclient.ErrSessionExpired

// ValidationError reports field-keyed input problems in the order they were detected.
type ValidationError struct {
	kind   error
	fields []fieldMessage
}

type fieldMessage struct {
	field   string
	message string
}

func newValidationError(kind error) *ValidationError {
	return &ValidationError{kind: kind}
}

func (e *ValidationError) add(field, message string) {
	for _, existing := range e.fields {
		if existing.field == field {
			return
		}
	}
	e.fields = append(e.fields, fieldMessage{field: field, message: message})
}

func (e *ValidationError) empty() bool { return len(e.fields) == 0 }

// orNil avoids returning a typed nil.
func (e *ValidationError) orNil() error {
	if e.empty() {
		return nil
	}
	return e
}

// Error returns the first message.
func (e *ValidationError) Error() string {
	return e.Message()
}

// Message returns the first message.
func (e *ValidationError) Message() string {
	if len(e.fields) == 0 {
		return "invalid input"
	}
	return e.fields[0].message
}

// Fields maps every rejected field to its message.
func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.fields))
	for _, f := range e.fields {
		out[f.field] = f.message
	}
	return out
}

func (e *ValidationError) Unwrap() error { return e.kind }

// AsValidationError unwraps err into a ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// UserError is a failure carrying a message meant for the visitor.
type UserError struct {
	kind    error
	message string
	cause   error
}

func (e *UserError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

// Message is the visitor-facing text.
func (e *UserError) Message() string { return e.message }

// Is matches the sentinel kind so callers can map it to a status code.
func (e *UserError) Is(target error) bool { return target == e.kind }

func (e *UserError) Unwrap() error { return e.cause }

func userError(kind error, message string, cause error) error {
	return &UserError{kind: kind, message: message, cause: cause}
}

// AsUserError unwraps err into a UserError.
func AsUserError(err error) (*UserError, bool) {
	var uerr *UserError
	if errors.As(err, &uerr) {
		return uerr, true
	}
	return nil, false
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}

func noopLogger(context.Context, string, map[string]any) {}

func loggerOrNoop(logger func(context.Context, string, map[string]any)) func(context.Context, string, map[string]any) {
	if logger == nil {
		return noopLogger
	}
	return logger
}

func newEventID() string {
	return ulid.Make().String()
}

// publish delivers an event without failing the caller; publisher problems are logged.
func publish(ctx context.Context, publisher OrderEventPublisher, logger func(context.Context, string, map[string]any), event OrderEvent) {
	if publisher == nil {
		return
	}
	if event.EventID == "" {
		event.EventID = newEventID()
	}
	if _, err := publisher.PublishOrderEvent(ctx, event); err != nil {
		logger(ctx, "events.publish_failed", map[string]any{
			"type":    event.Type,
			"orderId": event.OrderID.String(),
			"error":   err.Error(),
		})
	}
}

func chooseFirstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// ErrForbidden indicates the API refused the operation for the signed-in user.
var ErrForbidden = errors.New("services: forbidden")

type apiErrorKinds struct {
	invalid     error
	notFound    error
	unavailable error
}

// translateAPIError maps café API failures onto the service's sentinels, keeping the API's
// first message for the visitor.
func translateAPIError(err error, kinds apiErrorKinds) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSessionExpired) {
		return ErrSessionExpired
	}
	apiErr, ok := apiclient.AsAPIError(err)
	if !ok {
		if errors.Is(err, apiclient.ErrNotFound) && kinds.notFound != nil {
			return userError(kinds.notFound, "Not found", err)
		}
		return userError(kinds.unavailable, "Service unavailable. Please try again later.", err)
	}
	switch {
	case apiErr.Status == 401:
		return userError(ErrSessionExpired, apiErr.Message(), err)
	case apiErr.Status == 403:
		return userError(ErrForbidden, apiErr.Message(), err)
	case apiErr.Status == 404 && kinds.notFound != nil:
		return userError(kinds.notFound, apiErr.Message(), err)
	case apiErr.Status >= 400 && apiErr.Status < 500:
		return userError(kinds.invalid, apiErr.Message(), err)
	default:
		return userError(kinds.unavailable, apiErr.Message(), err)
	}
}
