package conversation

import (
	"errors"
	"testing"

	"github.com/custodian-sh/custodian/core/resource"
)

func TestValidateFieldNormalizes(t *testing.T) {
	cases := []struct {
		name  string
		typ   resource.FieldType
		input string
		want  string
	}{
		{"string passthrough", resource.FieldString, "Ada Lovelace", "Ada Lovelace"},
		{"string trimmed", resource.FieldString, "  notes  ", "notes"},
		{"email lowercased", resource.FieldEmail, "Ada@Example.COM", "ada@example.com"},
		{"phone with punctuation", resource.FieldPhone, "+1 (555) 123-4567", "+1 (555) 123-4567"},
		{"currency dollar sign", resource.FieldCurrency, "$9.99", "9.99"},
		{"currency padded", resource.FieldCurrency, "12", "12.00"},
		{"currency thousands", resource.FieldCurrency, "1,299.50", "1299.50"},
		{"number", resource.FieldNumber, "42", "42"},
		{"date iso", resource.FieldDate, "2026-01-31", "2026-01-31"},
		{"date us", resource.FieldDate, "01/31/2026", "2026-01-31"},
		{"date words", resource.FieldDate, "Jan 31 2026", "2026-01-31"},
		{"time 24h", resource.FieldTime, "14:30", "14:30"},
		{"time 12h", resource.FieldTime, "2:30pm", "14:30"},
		{"time 12h upper", resource.FieldTime, "2:30PM", "14:30"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateField(resource.FieldSpec{Name: "f", Type: tc.typ}, tc.input)
			if err != nil {
				t.Fatalf("ValidateField(%q): %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("ValidateField(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestValidateFieldRejects(t *testing.T) {
	cases := []struct {
		name  string
		typ   resource.FieldType
		input string
	}{
		{"empty", resource.FieldString, "   "},
		{"email no at", resource.FieldEmail, "ada.example.com"},
		{"email no dot", resource.FieldEmail, "ada@example"},
		{"email with space", resource.FieldEmail, "ada lovelace@example.com"},
		{"phone letters", resource.FieldPhone, "call me"},
		{"phone too short", resource.FieldPhone, "123"},
		{"currency words", resource.FieldCurrency, "ten dollars"},
		{"currency negative", resource.FieldCurrency, "-5"},
		{"number fraction", resource.FieldNumber, "4.5"},
		{"date backwards", resource.FieldDate, "31-01-2026"},
		{"time nonsense", resource.FieldTime, "half past"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateField(resource.FieldSpec{Name: "f", Type: tc.typ}, tc.input)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("ValidateField(%q) err = %v, want ValidationError", tc.input, err)
			}
			if ve.Reason == "" {
				t.Fatal("validation error carries no re-prompt reason")
			}
		})
	}
}
