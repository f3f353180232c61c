package services

// PasswordHasher hashes and checks local passwords. Verify never errors: a
// malformed digest is simply a mismatch.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) bool
}
