package identity

import "golang.org/x/crypto/bcrypt"

// HashPassword produces the bcrypt hash stored as Account.PasswordHash
// (spec.md §3, §9 Non-goals: "authorization beyond per-account password"
// implies per-account password IS in scope). Nothing else in this
// repository calls HashPassword or VerifyPassword: spec.md's
// identification packets (UNIQUE_ID, ACCOUNT_ID+DEVICE_ID) carry no
// password field, so the session never verifies a password.
func HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches the stored bcrypt hash.
func VerifyPassword(hash, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
