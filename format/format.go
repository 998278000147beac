// Package format holds the display masks and wire normalizers paired with
// package validate. Mask functions are progressive: they accept partial
// input as the user types and are idempotent over their own output.
package format

import "strings"

// Digits strips everything but ASCII digits from s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneDigits strips everything but digits and a leading '+'.
func PhoneDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		if r >= '0' && r <= '9' || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CPF applies the display mask 000.000.000-00 progressively. Input beyond
// eleven digits is dropped, capping the result at fourteen characters.
func CPF(s string) string {
	digits := Digits(s)
	if len(digits) > 11 {
		digits = digits[:11]
	}

	var b strings.Builder
	for i, r := range digits {
		switch i {
		case 3, 6:
			b.WriteByte('.')
		case 9:
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Phone applies the national display mask "+55 (DD) NNNNN-NNNN"
// progressively; empty input resets to the bare country code so the field
// never loses its prefix. International numbers are normalized to '+'
// followed by their digits, untouched otherwise.
func Phone(s string, international bool) string {
	if international {
		digits := Digits(s)
		if digits == "" {
			return "+"
		}
		return "+" + digits
	}

	digits := Digits(s)
	digits = strings.TrimPrefix(digits, "55")
	if len(digits) > 11 {
		digits = digits[:11]
	}
	if digits == "" {
		return "+55"
	}

	var b strings.Builder
	b.WriteString("+55 (")
	for i, r := range digits {
		switch i {
		case 2:
			b.WriteString(") ")
		case 7:
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Date applies the display mask DD/MM/YYYY progressively. Digits beyond
// the four-digit year are dropped.
func Date(s string) string {
	digits := Digits(s)
	if len(digits) > 8 {
		digits = digits[:8]
	}

	var b strings.Builder
	for i, r := range digits {
		if i == 2 || i == 4 {
			b.WriteByte('/')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PhoneForAPI normalizes a displayed phone number for the wire. National
// numbers become "+55" followed by the subscriber digits; a country code
// already present in the input is not doubled. International numbers keep
// their own prefix with spaces and hyphens removed.
func PhoneForAPI(s string, international bool) string {
	if international {
		cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(s))
		if cleaned != "" && !strings.HasPrefix(cleaned, "+") {
			cleaned = "+" + cleaned
		}
		return cleaned
	}

	digits := Digits(s)
	digits = strings.TrimPrefix(digits, "55")
	if digits == "" {
		return ""
	}
	return "+55" + digits
}

// DateForAPI converts a DD/MM/YYYY display date to the wire form
// YYYY-MM-DD. Input that does not match the display shape is returned
// unchanged so a server-side validator still sees it.
func DateForAPI(s string) string {
	parts := strings.Split(s, "/")
	if len(parts) != 3 || len(parts[2]) != 4 {
		return s
	}
	return parts[2] + "-" + parts[1] + "-" + parts[0]
}

// DateForDisplay converts a wire YYYY-MM-DD date back to DD/MM/YYYY.
func DateForDisplay(s string) string {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || len(parts[0]) != 4 {
		return s
	}
	return parts[2] + "/" + parts[1] + "/" + parts[0]
}

// ImageForAPI strips the data-URI envelope from a captured image, leaving
// the bare base64 payload the API expects.
func ImageForAPI(s string) string {
	if idx := strings.Index(s, "base64,"); idx >= 0 {
		return s[idx+len("base64,"):]
	}
	return s
}
