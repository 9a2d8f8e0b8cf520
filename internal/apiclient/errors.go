package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	maxErrorBody          = 64 << 10
	serverErrorMessage    = "Server error. Please try again later."
	sessionExpiredMessage = "Session expired. Please login again."
)

// ErrSessionExpired is returned when a request stays unauthorised after one refresh attempt, or
// when the refresh itself fails. The persisted session has been cleared by then.
var ErrSessionExpired = errors.New(sessionExpiredMessage)

// ErrNotFound is returned by lookups that the API answered with an empty result.
var ErrNotFound = errors.New("apiclient: not found")

// FieldError carries the messages the API attached to one request field, in response order.
type FieldError struct {
	Field    string
	Messages []string
}

// APIError describes a non-2xx response from the café API.
type APIError struct {
	Status int
	// Text is set when the body was a bare JSON string or plain text.
	Text   string
	Fields []FieldError
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apiclient: status %d: %s", e.Status, e.Message())
}

// Message is the user-facing summary: a generic text for 5xx, otherwise the first message in
// the body.
func (e *APIError) Message() string {
	if e.Status >= http.StatusInternalServerError {
		return serverErrorMessage
	}
	if e.Text != "" {
		return e.Text
	}
	for _, field := range e.Fields {
		if len(field.Messages) > 0 {
			return field.Messages[0]
		}
	}
	return http.StatusText(e.Status)
}

// Value returns the first message attached to key, typically "detail" or "message".
func (e *APIError) Value(key string) string {
	for _, field := range e.Fields {
		if field.Field == key && len(field.Messages) > 0 {
			return field.Messages[0]
		}
	}
	return ""
}

// FirstMessages maps every field to its first message.
func (e *APIError) FirstMessages() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, field := range e.Fields {
		if len(field.Messages) > 0 {
			out[field.Field] = field.Messages[0]
		}
	}
	return out
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// AsAPIError unwraps err into an APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func readAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode, Body: body}
	apiErr.Text, apiErr.Fields = parseErrorBody(body)
	return apiErr
}

// parseErrorBody keeps object keys in response order so "first message" is stable.
func parseErrorBody(body []byte) (string, []FieldError) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", nil
	}
	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err == nil {
			return strings.TrimSpace(text), nil
		}
	case '{':
		if fields, ok := orderedFields(trimmed); ok {
			return "", fields
		}
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err == nil {
			return "", []FieldError{{Field: "non_field_errors", Messages: messages(raw)}}
		}
	}
	if json.Valid(trimmed) {
		return "", nil
	}
	return truncate(string(trimmed), 256), nil
}

func orderedFields(body []byte) ([]FieldError, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, false
	}
	var fields []FieldError
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		value = bytes.TrimSpace(value)
		var msgs []string
		if len(value) > 0 && value[0] == '[' {
			var raw []json.RawMessage
			if err := json.Unmarshal(value, &raw); err != nil {
				return nil, false
			}
			msgs = messages(raw)
		} else {
			msgs = messages([]json.RawMessage{value})
		}
		fields = append(fields, FieldError{Field: key, Messages: msgs})
	}
	return fields, true
}

// messages renders strings as-is and any other JSON value as its compact text.
func messages(values []json.RawMessage) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		var text string
		if err := json.Unmarshal(value, &text); err == nil {
			out = append(out, text)
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, value); err == nil {
			out = append(out, compact.String())
		}
	}
	return out
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	for limit > 0 && !utf8.RuneStart(value[limit]) {
		limit--
	}
	return value[:limit]
}
