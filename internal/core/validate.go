package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrInvalidInput is matched by every validation failure.
var ErrInvalidInput = errors.New("invalid input")

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Single-digit months and days are accepted, e.g. 2003/1/17.
var dobLayouts = []string{"2006-1-2", "2006/1/2", "2006.1.2"}

const (
	maxEmailLength = 100
	minWishLength  = 5
	maxWishLength  = 500
	maxNameLength  = 50
	earliestDOB    = 1900
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is reports ErrInvalidInput as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NormalizeEmail validates an address and returns it trimmed and lowercased.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", invalid("email", "is required")
	}
	if len(email) > maxEmailLength {
		return "", invalid("email", "must not exceed %d characters", maxEmailLength)
	}
	if !emailPattern.MatchString(email) {
		return "", invalid("email", "%q is not a valid address", email)
	}
	return email, nil
}

// NormalizeName trims a display name and enforces its length.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("name", "is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", invalid("name", "must not exceed %d characters", maxNameLength)
	}
	return name, nil
}

// ParseDOB accepts YYYY-MM-DD, YYYY/MM/DD or YYYY.MM.DD. The date may not lie
// after today nor before 1900.
func ParseDOB(value string, today time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, invalid("dob", "is required")
	}
	for _, layout := range dobLayouts {
		dob, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		if dob.Year() < earliestDOB {
			return time.Time{}, invalid("dob", "year must not be earlier than %d", earliestDOB)
		}
		limit := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		if dob.After(limit) {
			return time.Time{}, invalid("dob", "must not be in the future")
		}
		return dob, nil
	}
	return time.Time{}, invalid("dob", "%q is not a date, use YYYY-MM-DD", value)
}

// NormalizeWish trims wish text and enforces its length in characters.
func NormalizeWish(content string) (string, error) {
	content = strings.TrimSpace(content)
	n := utf8.RuneCountInString(content)
	if n < minWishLength {
		return "", invalid("content", "must be at least %d characters", minWishLength)
	}
	if n > maxWishLength {
		return "", invalid("content", "must not exceed %d characters", maxWishLength)
	}
	return content, nil
}
