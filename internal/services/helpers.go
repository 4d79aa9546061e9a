// internal/services/helpers.go
package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Task types consumed by the follow-up outbox.
const (
	TaskTypeWelcomeKit = "welcome_kit"
)

// isUniqueViolation matches duplicate-key errors across postgres and the
// sqlite driver used in tests.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
