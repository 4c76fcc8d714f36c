package auth

import (
	"fmt"
	"regexp"
	"strings"
)

// Identifiers double as URL segments and storage keys, so the charset is
// restricted to ASCII word characters, `-` and `_`.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

const (
	userIDMaxLen     = 64
	inviteCodeMinLen = 8
	inviteCodeMaxLen = 32
)

// ValidateUserID checks the user identifier charset and length.
func ValidateUserID(id string) error {
	if id == "" || len(id) > userIDMaxLen || !identifierPattern.MatchString(id) {
		return fmt.Errorf("%w: user_id must only include ASCII word characters, `-` and `_`", ErrInvalidInput)
	}
	return nil
}

// NormalizeOrgID validates an organisation identifier and ensures the
// conventional `org:` namespace prefix.
func NormalizeOrgID(id string) (string, error) {
	id = strings.TrimSpace(id)
	bare := strings.TrimPrefix(id, "org:")
	if bare == "" || !identifierPattern.MatchString(bare) {
		return "", fmt.Errorf("%w: organisation_id must only include ASCII word characters, `-` and `_`", ErrInvalidInput)
	}
	return "org:" + bare, nil
}

// ValidateInviteCode checks invite code length and charset.
func ValidateInviteCode(code string) error {
	if len(code) < inviteCodeMinLen || len(code) > inviteCodeMaxLen {
		return fmt.Errorf("%w: invite code must be %d to %d characters", ErrInvalidInput, inviteCodeMinLen, inviteCodeMaxLen)
	}
	if !identifierPattern.MatchString(code) {
		return fmt.Errorf("%w: invite code must only include ASCII word characters, `-` and `_`", ErrInvalidInput)
	}
	return nil
}

// ValidateEmail applies the minimal shape check used across the service.
func ValidateEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return email, nil
}

// ValidateLevel checks that a level of access is within the supported range.
func ValidateLevel(level int) error {
	if level < LevelMember || level > LevelAdmin {
		return fmt.Errorf("%w: level of access must be between %d and %d", ErrInvalidInput, LevelMember, LevelAdmin)
	}
	return nil
}
