package session

import (
	"fmt"
	"regexp"
)

// Session names become directory names under ~/.gram/sessions, so the
// character set stays filesystem-safe and lowercase.
var namePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName rejects names unusable as a session directory.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid session name %q: use 1-64 of [a-z0-9_-]", name)
	}
	return nil
}
