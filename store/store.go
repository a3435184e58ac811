// Package store holds the gorm-backed persistence for check-ins, settings, users,
// rewards and badges.
package store

import (
	"errors"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrAlreadyCheckedIn   = errors.New("already checked in today")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrRewardUnavailable  = errors.New("reward unavailable")
	ErrRedemptionState    = errors.New("redemption cannot change from its current status")
	// ErrStateChanged means the user's last check-in moved after the caller read it.
	// Reload the state and recompute before retrying.
	ErrStateChanged = errors.New("user check-in state changed")
)

// isDuplicateKey reports unique-index violations. gorm translates them when
// TranslateError is on; the driver checks cover connections opened without it.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysqldriver.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// page normalizes 1-based paging input and returns the offset.
func page(p, size int) (int, int, int) {
	if p < 1 {
		p = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return p, size, (p - 1) * size
}
