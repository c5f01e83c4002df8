package validate

import "strings"

const (
	minKeystrokePhoneDigits = 11
	maxKeystrokePhoneDigits = 15
)

// NormalizePhone is the per-keystroke phone rule. It strips every non-digit
// and reports a problem with the normalized value, if any. This is a
// different contract from the step submit check in Step, which only asks
// for at least 10 digits.
func NormalizePhone(raw string) (string, *Violation) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) > 0 && len(digits) < minKeystrokePhoneDigits:
		return digits, &Violation{Field: FieldPhoneNumber, Message: "Phone number must be at least 11 digits"}
	case len(digits) > maxKeystrokePhoneDigits:
		return digits, &Violation{Field: FieldPhoneNumber, Message: "Phone number cannot exceed 15 digits"}
	case raw != digits:
		return digits, &Violation{Field: FieldPhoneNumber, Message: "Phone number should contain only numbers"}
	}
	return digits, nil
}
