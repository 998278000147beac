// Package validate holds the pure field validators behind the registration
// wizard. Every function is deterministic, never panics, and never mutates
// its input; formatting and normalization live in package format.
package validate

import (
	"regexp"
	"strings"
	"time"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Email reports whether s looks like a deliverable address. The check is
// structural (local part, one '@', dotted domain); deliverability is the
// server's problem.
func Email(s string) bool {
	return emailPattern.MatchString(s)
}

// Password reports whether s satisfies the account password policy:
// at least 8 characters with one lowercase letter, one uppercase letter,
// one digit and one of @$!%*?&.
func Password(s string) bool {
	if len(s) < 8 {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune("@$!%*?&", r):
			special = true
		}
	}
	return lower && upper && digit && special
}

// CPF reports whether s is a valid Brazilian CPF. Non-digits are stripped
// first, so both masked and bare input are accepted. The two check digits
// are verified with the standard mod-11 scheme; the eleven repeated-digit
// sequences pass that scheme and are rejected explicitly.
func CPF(s string) bool {
	digits := digitsOf(s)
	if len(digits) != 11 {
		return false
	}

	repeated := true
	for i := 1; i < 11; i++ {
		if digits[i] != digits[0] {
			repeated = false
			break
		}
	}
	if repeated {
		return false
	}

	if cpfCheckDigit(digits, 9) != digits[9] {
		return false
	}
	return cpfCheckDigit(digits, 10) == digits[10]
}

// cpfCheckDigit computes the mod-11 check digit over digits[:n] with
// weights n+1 down to 2. Remainders 10 and 11 collapse to 0.
func cpfCheckDigit(digits []int, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += digits[i] * (n + 1 - i)
	}
	d := 11 - sum%11
	if d >= 10 {
		return 0
	}
	return d
}

func digitsOf(s string) []int {
	out := make([]int, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			out = append(out, int(r-'0'))
		}
	}
	return out
}

func digitString(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Name reports whether s is acceptable as a full name: at least two
// space-separated parts, the first at least two characters, and the
// remaining parts joined at least three characters. No character-class
// restriction beyond that; hyphenated and compound names pass.
func Name(s string) bool {
	parts := strings.Fields(strings.TrimSpace(s))
	if len(parts) < 2 {
		return false
	}
	if len([]rune(parts[0])) < 2 {
		return false
	}
	return len([]rune(strings.Join(parts[1:], ""))) >= 3
}

// Phone reports whether s is an acceptable phone number. National numbers
// must leave 10 or 11 digits (area code plus landline or mobile) after
// stripping the leading 55 country code. International numbers are only
// required to be non-empty beyond the leading '+': the product accepts
// any foreign format and lets the SMS provider reject the rest.
func Phone(s string, international bool) bool {
	if international {
		trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "+"))
		return trimmed != ""
	}
	digits := strings.TrimPrefix(digitString(s), "55")
	return len(digits) == 10 || len(digits) == 11
}

// BirthDate reports whether s is a calendar-valid date in DD/MM/YYYY form
// that is not in the future.
func BirthDate(s string) bool {
	return BirthDateAt(s, time.Now())
}

// BirthDateAt is BirthDate with an injected reference time.
func BirthDateAt(s string, now time.Time) bool {
	d, err := time.Parse("02/01/2006", s)
	return err == nil && !d.After(now)
}

// MinimumAge reports whether the DD/MM/YYYY birth date s is at least min
// years before today.
func MinimumAge(s string, min int) bool {
	return MinimumAgeAt(s, min, time.Now())
}

// MinimumAgeAt is MinimumAge with an injected reference time.
func MinimumAgeAt(s string, min int, now time.Time) bool {
	age, ok := AgeAt(s, now)
	return ok && age >= min
}

// Age returns the completed age in years for a DD/MM/YYYY birth date.
func Age(s string) (int, bool) {
	return AgeAt(s, time.Now())
}

// AgeAt computes the completed age at the given reference time. The year
// difference is decremented when the birthday has not yet occurred in the
// reference year, so the boundary flips exactly on the birthday.
func AgeAt(s string, now time.Time) (int, bool) {
	birth, err := time.Parse("02/01/2006", s)
	if err != nil {
		return 0, false
	}
	if birth.After(now) {
		return 0, false
	}

	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() ||
		(now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age, true
}

// ImagePayload reports whether s carries a captured image: either a
// data-URI with a base64 payload or an already-stripped base64 body.
func ImagePayload(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if idx := strings.Index(s, "base64,"); idx >= 0 {
		return strings.TrimSpace(s[idx+len("base64,"):]) != ""
	}
	return true
}

// TermsAccepted reports whether the terms checkbox state allows
// registration to proceed.
func TermsAccepted(accepted bool) bool {
	return accepted
}
