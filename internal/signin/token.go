package signin

import (
	"fmt"
	"strings"
)

// lineBreak is the terminal line terminator emitted through the pty.
const lineBreak = "\r\n"

// ParseToken extracts the session token from the text the child printed
// after the secret was submitted.
//
// Everything up to the first line break is echo residue. After it, exactly
// one non-blank line must remain; that line is the token. No line break, or
// zero or several candidate lines, is a ParseError.
func ParseToken(output string) (string, error) {
	i := strings.Index(output, lineBreak)
	if i < 0 {
		return "", &ParseError{Reason: "no line break in output"}
	}

	var lines []string
	for _, l := range strings.Split(output[i+len(lineBreak):], lineBreak) {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	if len(lines) != 1 {
		return "", &ParseError{
			Reason: fmt.Sprintf("expected exactly one token line, found %d", len(lines)),
			Lines:  len(lines),
		}
	}
	return lines[0], nil
}
