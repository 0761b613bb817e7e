package conversation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodian-sh/custodian/core/resource"
)

// SkipKeyword advances past an optional field without setting it.
const SkipKeyword = "skip"

// ValidationError carries a user-facing re-prompt reason. It never wraps an
// internal error and is always safe to echo back to the user verbatim.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// dateLayouts are accepted input forms, normalized to the first entry.
var dateLayouts = []string{"2006-01-02", "01/02/2006", "Jan 2 2006", "Jan 2, 2006"}

// timeLayouts are accepted input forms, normalized to 24-hour "15:04".
var timeLayouts = []string{"15:04", "3:04pm", "3:04 pm", "3pm", "3 pm"}

// ValidateField checks raw input against the field's declared type and
// returns the normalized value, or a ValidationError that should re-prompt
// the user without advancing the field cursor.
func ValidateField(spec resource.FieldSpec, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", invalid(spec.Name, "a value is required")
	}

	switch spec.Type {
	case resource.FieldString:
		return input, nil

	case resource.FieldEmail:
		at := strings.Index(input, "@")
		if at <= 0 || !strings.Contains(input[at:], ".") || strings.ContainsAny(input, " \t") {
			return "", invalid(spec.Name, "%q does not look like an email address", input)
		}
		return strings.ToLower(input), nil

	case resource.FieldPhone:
		digits := 0
		for _, r := range input {
			switch {
			case r >= '0' && r <= '9':
				digits++
			case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
			default:
				return "", invalid(spec.Name, "%q contains characters that are not part of a phone number", input)
			}
		}
		if digits < 7 {
			return "", invalid(spec.Name, "%q is too short for a phone number", input)
		}
		return input, nil

	case resource.FieldCurrency:
		raw := strings.TrimPrefix(input, "$")
		raw = strings.ReplaceAll(raw, ",", "")
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil || amount < 0 {
			return "", invalid(spec.Name, "%q is not an amount, try something like 9.99", input)
		}
		return strconv.FormatFloat(amount, 'f', 2, 64), nil

	case resource.FieldNumber:
		n, err := strconv.Atoi(input)
		if err != nil || n < 0 {
			return "", invalid(spec.Name, "%q is not a whole number", input)
		}
		return strconv.Itoa(n), nil

	case resource.FieldDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, input); err == nil {
				return t.Format(dateLayouts[0]), nil
			}
		}
		return "", invalid(spec.Name, "%q is not a date, try 2026-01-31", input)

	case resource.FieldTime:
		lowered := strings.ToLower(input)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, lowered); err == nil {
				return t.Format(timeLayouts[0]), nil
			}
		}
		return "", invalid(spec.Name, "%q is not a time of day, try 14:30 or 2:30pm", input)

	default:
		return "", invalid(spec.Name, "unsupported field type %q", spec.Type)
	}
}
