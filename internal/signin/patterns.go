package signin

import (
	"regexp"
	"strings"
)

var (
	secretKeyPrompt = regexp.MustCompile(`(?i)enter (?:the|your) secret key[^\r\n]*:[ \t]*`)
	passwordPrompt  = regexp.MustCompile(`(?i)enter (?:the|your) (?:master )?password[^\r\n]*:[ \t]*`)
	mfaPrompt       = regexp.MustCompile(`(?i)six-digit[^\r\n]*code[^\r\n]*:[ \t]*`)
	errorMarker     = regexp.MustCompile(`(?:\(ERROR\)|\[ERROR\])[^\r\n]*`)

	authFailure = regexp.MustCompile(`(?i)(?:(?:\(ERROR\)|\[ERROR\])[^\r\n]*\b401\b|unauthorized|incorrect password|invalid password|wrong password)`)
	sixDigits   = regexp.MustCompile(`^[0-9]{6}$`)
)

// IsAuthFailure reports whether text carries the vault CLI's wrong-credential
// signature.
func IsAuthFailure(text string) bool {
	return authFailure.MatchString(text)
}

// ValidCode reports whether code is a six-digit authentication code.
func ValidCode(code string) bool {
	return sixDigits.MatchString(code)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
