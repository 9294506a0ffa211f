package security

import (
	"net/http"
	"strings"
	"unicode"

	apperrors "github.com/NordicFuzzCon/pretalx/pkg/errors"
)

const defaultMinLength = 8

// Password policy violations surfaced as field errors at the form boundary.
var (
	ErrPasswordTooShort = apperrors.New("PASSWORD_TOO_SHORT", "This password is too short. It must contain at least 8 characters.", http.StatusBadRequest)
	ErrPasswordCommon   = apperrors.New("PASSWORD_TOO_COMMON", "This password is too common.", http.StatusBadRequest)
	ErrPasswordNumeric  = apperrors.New("PASSWORD_NUMERIC", "This password is entirely numeric.", http.StatusBadRequest)
)

// Passwords that trivially fail any serious strength bar. Checked
// case-insensitively after trimming.
var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"passwort":   {},
	"12345678":   {},
	"123456789":  {},
	"1234567890": {},
	"qwertyuiop": {},
	"letmein1":   {},
	"iloveyou":   {},
	"sunshine":   {},
	"princess":   {},
	"admin123":   {},
	"welcome1":   {},
	"monkey12":   {},
	"dragon12":   {},
	"football":   {},
	"baseball":   {},
	"superman":   {},
	"trustno1":   {},
	"whatever":   {},
}

// PasswordPolicy validates password strength for registration and reset.
type PasswordPolicy struct {
	minLength int
}

// PolicyOption customises PasswordPolicy behaviour.
type PolicyOption func(*PasswordPolicy)

// WithMinLength overrides the minimum password length.
func WithMinLength(n int) PolicyOption {
	return func(p *PasswordPolicy) {
		if n > 0 {
			p.minLength = n
		}
	}
}

// NewPasswordPolicy constructs a policy with the default rule set.
func NewPasswordPolicy(opts ...PolicyOption) *PasswordPolicy {
	policy := &PasswordPolicy{minLength: defaultMinLength}
	for _, opt := range opts {
		opt(policy)
	}
	return policy
}

// Validate returns the first rule violation, or nil for an acceptable password.
func (p *PasswordPolicy) Validate(password string) error {
	if len(password) < p.minLength {
		return ErrPasswordTooShort
	}

	if _, found := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; found {
		return ErrPasswordCommon
	}

	if isEntirelyNumeric(password) {
		return ErrPasswordNumeric
	}

	return nil
}

func isEntirelyNumeric(password string) bool {
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(password) > 0
}
