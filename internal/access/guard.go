// Package access holds the owner check applied before every mutation.
//
// The check is a fast-fail convenience for the caller. The document store's
// own access rules remain the authoritative enforcement.
package access

import (
	"fmt"

	"github.com/pkordes/rideplanner/internal/domain"
)

// IsOwner reports whether actingUserID may mutate a record owned by
// recordOwnerID. An empty acting user (signed out) is never an owner, and
// neither is anyone when the record has no owner.
func IsOwner(actingUserID, recordOwnerID string) bool {
	if actingUserID == "" || recordOwnerID == "" {
		return false
	}
	return actingUserID == recordOwnerID
}

// RequireOwner returns domain.ErrForbidden unless IsOwner holds.
func RequireOwner(actingUserID, recordOwnerID string) error {
	if !IsOwner(actingUserID, recordOwnerID) {
		if actingUserID == "" {
			return fmt.Errorf("%w: not signed in", domain.ErrForbidden)
		}
		return fmt.Errorf("%w: not the owner", domain.ErrForbidden)
	}
	return nil
}
