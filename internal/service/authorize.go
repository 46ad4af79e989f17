package service

import "github.com/Skotchmaster/marketplace/internal/session"

// authorizeOwnerOrFail is the only ownership check for product mutations.
func authorizeOwnerOrFail(resourceOwnerID uint, auth session.AuthContext) error {
	if !auth.IsUser(resourceOwnerID) {
		return ErrUnauthorized
	}
	return nil
}
