package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashOrRead returns an admin password as a bcrypt hash. Values that already
// look like bcrypt hashes (ADMIN_PASSWORD, ADMIN_USERS) are used as is.
func HashOrRead(password string) ([]byte, error) {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(password, prefix) {
			return []byte(password), nil
		}
	}
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
