package chat

import (
	"errors"
	"strings"
)

// ErrNoAddress indicates a request that named neither a session nor an owner.
var ErrNoAddress = errors.New("no addressing information supplied")

// Address selects a target conversation. Newer clients address an explicit
// session id; legacy single-conversation clients address by owner id only.
// When both are present the session id wins.
type Address struct {
	SessionID string
	OwnerID   string
}

// NewAddress validates the optional identifiers a request may carry.
func NewAddress(sessionID, ownerID string) (Address, error) {
	sessionID = strings.TrimSpace(sessionID)
	ownerID = strings.TrimSpace(ownerID)
	if sessionID == "" && ownerID == "" {
		return Address{}, ErrNoAddress
	}
	return Address{SessionID: sessionID, OwnerID: ownerID}, nil
}

// BySession reports whether resolution should use the explicit session id.
func (a Address) BySession() bool {
	return a.SessionID != ""
}
