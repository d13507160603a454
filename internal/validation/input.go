package validation

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Input limits for values sent to the API.
const (
	MaxNameLength  = 255
	MaxEmailLength = 320 // RFC 5321: 64 chars (local) + 1 (@) + 255 (domain) = 320
	MaxPageSize    = 1000
)

// DateLayout is the calendar date format used by metrics, registry and blueprint queries.
const DateLayout = "2006-01-02"

// ValidateName validates a display name length
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}

	length := utf8.RuneCountInString(name)
	if length > MaxNameLength {
		return fmt.Errorf("name exceeds maximum length of %d characters (got %d)", MaxNameLength, length)
	}

	return nil
}

// ValidateEmailFormat validates the format and length of an email address.
// Returns nil for empty emails (optional field).
func ValidateEmailFormat(email string) error {
	if email == "" {
		return nil
	}
	if utf8.RuneCountInString(email) > MaxEmailLength {
		return fmt.Errorf("email exceeds maximum length of %d characters", MaxEmailLength)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	return nil
}

// ValidateDate checks that value is a YYYY-MM-DD calendar date.
func ValidateDate(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("date is required (YYYY-MM-DD)")
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		return fmt.Errorf("invalid date %q: must be YYYY-MM-DD", value)
	}
	return nil
}

// ParsePage parses a 1-based page number or page size flag value.
func ParsePage(s string, fieldName string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", fieldName, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", fieldName)
	}
	if n > MaxPageSize {
		return 0, fmt.Errorf("invalid %s: must be at most %d", fieldName, MaxPageSize)
	}
	return n, nil
}

// RejectCRLF returns an error when value contains a carriage return or line feed.
// Multipart header values are built from these strings.
func RejectCRLF(value, fieldName string) error {
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%s must not contain CR or LF characters", fieldName)
	}
	return nil
}
