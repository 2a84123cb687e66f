package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier string
func GenerateID() string {
	return uuid.New().String()
}

// IsValidID reports whether id is a plausible record identifier: a uuid or a short slug.
func IsValidID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	if _, err := uuid.Parse(id); err == nil {
		return true
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return true
}
