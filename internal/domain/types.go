// Package domain holds the storefront entities shared by services, repositories and handlers.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ID identifies records owned by the café API. The API emits integer keys but ids are carried as
// strings so the storefront never depends on their representation.
type ID string

// String returns the raw identifier.
func (id ID) String() string { return string(id) }

// IsZero reports whether the identifier is empty.
func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// MarshalJSON writes numeric identifiers as JSON numbers so payloads match what the API expects.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("domain: invalid id %s", data)
	}
	*id = ID(n.String())
	return nil
}

// refOrObject decodes fields that the API renders either as a bare id or as a nested object.
func refOrObject(data []byte, target any) (ID, bool, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, target); err != nil {
			return "", false, err
		}
		var probe struct {
			ID ID `json:"id"`
		}
		if err := json.Unmarshal(data, &probe); err != nil {
			return "", false, err
		}
		return probe.ID, true, nil
	}
	var id ID
	if err := id.UnmarshalJSON(data); err != nil {
		return "", false, err
	}
	return id, false, nil
}

// Money formats an amount with two decimals, the only place rounding happens.
func Money(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// Clock returns the current time.
type Clock func() time.Time
