package persistence

import (
	"errors"
	"strings"

	"github.com/pharmacy/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// notFound maps gorm.ErrRecordNotFound to shared.ErrNotFound
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// isUniqueViolation reports whether err is a unique constraint violation.
// Postgres errors arrive translated as gorm.ErrDuplicatedKey; sqlite only
// reports it in the message.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
