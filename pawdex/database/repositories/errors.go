package repositories

import (
	"errors"

	"github.com/uptrace/bun/driver/pgdriver"
)

// Store-level sentinels. The trading layer maps these onto its user-facing
// error taxonomy.
var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateListing = errors.New("card already has an active listing")
	ErrDuplicateOffer   = errors.New("an identical offer already exists")
	ErrCardMissing      = errors.New("referenced card no longer exists")
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == pgUniqueViolation
	}
	return false
}
