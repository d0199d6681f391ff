package idgen

import (
	"github.com/google/uuid"
)

// New generates a random UUID, used for request IDs.
func New() string {
	return uuid.New().String()
}
