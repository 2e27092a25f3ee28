package roster

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Users minted by reconciliation can never log in by password until an
// operator sets one. The sentinel prefix marks a hash that matches nothing.
const unusablePrefix = "!"

// UnusablePassword returns a credential hash that can never verify. The
// random suffix keeps two unusable hashes from comparing equal.
func UnusablePassword() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return unusablePrefix + hex.EncodeToString(buf)
}

// SetPassword hashes a real password with bcrypt.
func SetPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies a password against a stored hash. Unusable
// credentials never match.
func CheckPassword(hash, password string) bool {
	if strings.HasPrefix(hash, unusablePrefix) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
