package store

import (
	"crypto/sha256"
	"fmt"
)

// ContentHash returns the hex SHA-256 of a note buffer.
func ContentHash(text string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(text)))
}
