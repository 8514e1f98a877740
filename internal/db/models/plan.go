package models

// Plan holds the limits attached to a credential. PricePer1kReq is billing
// metadata carried through for reporting; it plays no part in admission.
type Plan struct {
	ID              string   `db:"id" json:"id"`
	Name            string   `db:"name" json:"name"`
	RateLimitPerMin int      `db:"rate_limit_per_min" json:"rate_limit_per_min"`
	MonthlyQuota    int64    `db:"monthly_quota" json:"monthly_quota"`
	PricePer1kReq   string   `db:"price_per_1k_req" json:"price_per_1k_req"`
	// AllowedPaths is a JSONB array of path patterns. Empty, nil, or a "*"
	// entry means unrestricted.
	AllowedPaths []string `db:"-" json:"allowed_paths,omitempty"`
}

// Unrestricted reports whether the plan places no path restrictions.
func (p *Plan) Unrestricted() bool {
	if len(p.AllowedPaths) == 0 {
		return true
	}
	for _, pat := range p.AllowedPaths {
		if pat == "*" {
			return true
		}
	}
	return false
}
