package ledger

import (
	"bytes"
	"crypto/ed25519"
)

// GenesisUserID names the synthetic signer of every ledger's genesis record.
const GenesisUserID = "GENESIS"

// SentinelPrevHash is the prev_hash value used by the genesis record.
const SentinelPrevHash = "00000000"

// GenesisPayload is the fixed payload literal of the genesis record.
const GenesisPayload = "Genesis"

// User is the ledger-visible view of a registered identity: a user_id and
// its verifying key plus an unordered set of role strings. The ledger
// never stores or sees a private key.
type User struct {
	UserID       string
	VerifyingKey ed25519.PublicKey
	Roles        map[string]struct{}
}

// NewUser constructs a User with the given verifying key and roles.
func NewUser(userID string, verifyingKey ed25519.PublicKey, roles ...string) User {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}
	return User{UserID: userID, VerifyingKey: verifyingKey, Roles: roleSet}
}

// HasRole reports whether the user holds the given role.
func (u User) HasRole(role string) bool {
	_, ok := u.Roles[role]
	return ok
}

// RoleList returns the user's roles as a slice, order unspecified.
func (u User) RoleList() []string {
	out := make([]string, 0, len(u.Roles))
	for r := range u.Roles {
		out = append(out, r)
	}
	return out
}

func sameKey(a, b ed25519.PublicKey) bool {
	return bytes.Equal(a, b)
}

// Signer is a private identity capable of authoring records. It is held
// only by its owner, never persisted into a ledger, and consumed at
// record-construction time.
type Signer struct {
	UserID     string
	PrivateKey ed25519.PrivateKey
}

// NewSigner wraps a private key under a user_id for record signing.
func NewSigner(userID string, privateKey ed25519.PrivateKey) Signer {
	return Signer{UserID: userID, PrivateKey: privateKey}
}

// Sign produces a detached signature over message (always the raw ASCII
// bytes of a hex record_hash string, per the ledger's canonical format).
func (s Signer) Sign(message []byte) []byte {
	return ed25519.Sign(s.PrivateKey, message)
}
