package utils

import (
	"strings"
)

// DigitsOnly strips every non-digit character from a phone number
func DigitsOnly(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeDirectSendPhone is used by request-driven sends only.
// Ten-digit numbers are treated as Mexican local numbers and get the 52 prefix.
// Sequence and lyric sends address the stored digits verbatim.
func NormalizeDirectSendPhone(phone string) string {
	num := DigitsOnly(phone)
	if len(num) == 10 {
		num = MexicoCountryCode + num
	}
	return num
}

// UserJID returns the chat address for a phone's digits
func UserJID(digits string) string {
	return digits + "@" + WhatsAppUserServer
}

// FirstWord returns the first whitespace-delimited token of s, or ""
func FirstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
