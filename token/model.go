package token

import "time"

// Record is one link in a refresh-token rotation chain. The raw secret is
// never stored; Hash is the hex SHA-256 of the wire-form token and doubles
// as the storage key.
//
// Every token descended from one login shares FamilyID. RevokedAt is
// terminal: a revoked record is never updated again.
type Record struct {
	ID        string
	UserID    string
	FamilyID  string
	Hash      string
	Revoked   bool
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt time.Time
	UserAgent string
	IPAddress string
}

// Expired reports whether the record's lifetime has elapsed at now. Expiry
// is terminal but, unlike revocation, is never treated as evidence of theft.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Active reports whether the record can still be rotated: not revoked and
// not expired. The store guarantees at most one active record per family.
func (r *Record) Active(now time.Time) bool {
	return !r.Revoked && !r.Expired(now)
}
