package port

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// PasswordPolicy enforces password requirements; userInputs are penalized by strength checks.
type PasswordPolicy interface {
	Validate(password string, userInputs ...string) error
}
