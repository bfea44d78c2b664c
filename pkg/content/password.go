package content

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost used for new viewing passwords
var PasswordCost = bcrypt.DefaultCost

// HashPassword hashes a viewing password. The empty password hashes to "".
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password unlocks the item
func (i *Item) CheckPassword(password string) bool {
	if i.PasswordHash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(i.PasswordHash), []byte(password)) == nil
}
