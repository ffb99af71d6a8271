// Package email derives display names from addresses for outgoing messages.
package email

import (
	"strings"
	"unicode"
)

const fallbackName = "there"

// GreetingName turns the local part of addr into a first name for salutations:
// "priya.sharma+ngo@example.org" becomes "Priya". Addresses without a usable
// local part fall back to "there".
func GreetingName(addr string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(addr), "@")
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+' || unicode.IsDigit(r)
	})
	if len(parts) == 0 {
		return fallbackName
	}
	runes := []rune(strings.ToLower(parts[0]))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
