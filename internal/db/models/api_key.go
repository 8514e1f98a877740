// Package models defines the database model types for the Zenith Gateway.
// Each type corresponds to a database table and uses struct tags for both JSON
// serialization (credential cache entries are stored as JSON) and sqlx row
// scanning. Models are pure data types — resolution and admission logic live
// in the credentials and limiter packages, query logic in repositories.
package models

import "time"

// Credential statuses. Anything other than exactly StatusActive is treated
// as if the credential did not exist.
const (
	StatusActive  = "active"
	StatusRevoked = "revoked"
	StatusExpired = "expired"
)

// Credential represents an API key row joined with its plan. Rows are created
// out-of-band (provisioning) and never deleted — revocation is a status
// change. The raw key is never stored; KeyHash is its SHA-256 digest and Hint
// a short display prefix.
type Credential struct {
	ID        string    `db:"id" json:"id"`
	OrgID     string    `db:"org_id" json:"org_id"`
	KeyHash   string    `db:"key_hash" json:"key_hash"`
	Hint      string    `db:"hint" json:"hint"`
	Status    string    `db:"status" json:"status"`
	PlanID    *string   `db:"plan_id" json:"plan_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	// Plan is joined from the plans table; nil when the key has no plan.
	Plan *Plan `db:"-" json:"plan,omitempty"`
}

// IsActive reports whether the credential may authenticate requests.
func (c *Credential) IsActive() bool {
	return c.Status == StatusActive
}
