// Package phone normalizes Russian phone numbers so CRM and telephony
// records can be matched by digits alone.
package phone

import "strings"

// Normalize strips everything but digits and canonicalizes Russian numbers:
// a leading 8 on an 11-digit number becomes 7, and a bare 10-digit mobile
// number starting with 9 gains the 7 prefix. Returns "" when no digits remain.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n := b.String()
	switch {
	case len(n) == 11 && n[0] == '8':
		return "7" + n[1:]
	case len(n) == 10 && n[0] == '9':
		return "7" + n
	}
	return n
}
