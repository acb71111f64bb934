package trading

import (
	"errors"
	"fmt"
)

// User-facing error taxonomy. NotFound is the normal outcome of losing a
// race, not a bug; SettlementError is the only class that warrants
// reconciliation attention.
var (
	ErrNotFound       = errors.New("offer, listing, or card no longer exists")
	ErrAlreadyListed  = errors.New("card is already listed for trade")
	ErrDuplicateOffer = errors.New("an identical offer is already open")
	ErrInvalidCard    = errors.New("offer references an invalid or unlisted card")
	ErrNotOwner       = errors.New("caller does not own this card")
	ErrCardVanished   = errors.New("a card referenced by the offer no longer exists")
)

// SettlementError wraps a failure inside the two-card exchange. It is never
// swallowed: the offer stays in place so the caller can retry Accept, and the
// wrapped cause is logged for reconciliation.
type SettlementError struct {
	OfferID string
	Err     error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement of offer %s failed: %v", e.OfferID, e.Err)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}
