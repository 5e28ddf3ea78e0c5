package security

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// maxPasswordLength bounds the Argon2 input size.
const maxPasswordLength = 256

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password; userInputs carry principal data such as email or name.
type PasswordRule func(password string, userInputs []string) error

// PasswordPolicyConfig selects which rules the policy enforces. Zero values disable a rule.
type PasswordPolicyConfig struct {
	MinLength           int
	MinCharacterClasses int
	MinStrengthScore    int
}

// PasswordPolicy applies a sequence of password rules.
type PasswordPolicy struct {
	rules []PasswordRule
}

// NewPasswordPolicy builds the policy described by cfg. Non-empty and maximum length are always enforced.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	rules := []PasswordRule{requireNonEmpty, maxLengthRule(maxPasswordLength)}
	if cfg.MinLength > 0 {
		rules = append(rules, MinLengthRule(cfg.MinLength))
	}
	if cfg.MinCharacterClasses > 0 {
		rules = append(rules, RequireCharacterClassesRule(cfg.MinCharacterClasses))
	}
	if cfg.MinStrengthScore > 0 {
		rules = append(rules, RequirePasswordStrengthRule(cfg.MinStrengthScore))
	}
	return &PasswordPolicy{rules: rules}
}

// Validate executes all rules and returns the first encountered violation.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	if p == nil {
		return fmt.Errorf("password policy not configured")
	}
	for _, rule := range p.rules {
		if err := rule(password, userInputs); err != nil {
			return err
		}
	}
	return nil
}

func requireNonEmpty(password string, _ []string) error {
	if password == "" {
		return &PasswordValidationError{Code: "required", Message: "password is required"}
	}
	return nil
}

func maxLengthRule(max int) PasswordRule {
	return func(password string, _ []string) error {
		if len(password) > max {
			return &PasswordValidationError{
				Code:    "max_length",
				Message: fmt.Sprintf("password must be at most %d bytes long", max),
			}
		}
		return nil
	}
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return func(password string, _ []string) error {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	}
}

// RequireCharacterClassesRule ensures the password mixes at least min of upper, lower, digit and symbol characters.
func RequireCharacterClassesRule(min int) PasswordRule {
	return func(password string, _ []string) error {
		var upper, lower, digit, symbol int
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				upper = 1
			case unicode.IsLower(r):
				lower = 1
			case unicode.IsDigit(r):
				digit = 1
			case unicode.IsSymbol(r) || unicode.IsPunct(r):
				symbol = 1
			}
		}

		if upper+lower+digit+symbol >= min {
			return nil
		}
		return &PasswordValidationError{
			Code:    "character_classes",
			Message: fmt.Sprintf("password must include at least %d character types", min),
		}
	}
}

// RequirePasswordStrengthRule enforces a minimum zxcvbn score; principal inputs count against the password.
func RequirePasswordStrengthRule(minScore int) PasswordRule {
	if minScore > 4 {
		minScore = 4
	}
	return func(password string, userInputs []string) error {
		if zxcvbn.PasswordStrength(password, userInputs).Score >= minScore {
			return nil
		}
		return &PasswordValidationError{
			Code:    "weak_password",
			Message: "password is too weak; choose a more complex value",
		}
	}
}
