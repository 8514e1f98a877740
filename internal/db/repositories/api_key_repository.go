// api_key_repository.go implements APIKeyRepository, providing the single
// query the request pipeline needs: resolving an active key hash to its
// credential and plan in one round trip.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/zenith-gateway/zenith-gateway/internal/db/models"
)

// APIKeyRepository handles credential lookups. The pipeline never writes to
// api_keys — provisioning and revocation happen out-of-band.
type APIKeyRepository struct {
	db *sql.DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// GetActiveKeyByHash resolves a key hash to its credential joined with the
// plan, filtered to status = 'active'. A revoked, expired, or unknown hash
// all return (nil, nil); callers cannot distinguish the cases.
func (r *APIKeyRepository) GetActiveKeyByHash(ctx context.Context, keyHash string) (*models.Credential, error) {
	query := `
		SELECT k.id, k.org_id, k.key_hash, k.hint, k.status, k.plan_id, k.created_at,
		       p.id, p.name, p.rate_limit_per_min, p.monthly_quota, p.price_per_1k_req, p.allowed_paths
		FROM api_keys k
		LEFT JOIN plans p ON k.plan_id = p.id
		WHERE k.key_hash = $1 AND k.status = 'active'
	`

	cred := &models.Credential{}
	var (
		planID           sql.NullString
		planName         sql.NullString
		planRateLimit    sql.NullInt64
		planQuota        sql.NullInt64
		planPrice        sql.NullString
		planAllowedPaths []byte
	)

	err := r.db.QueryRowContext(ctx, query, keyHash).Scan(
		&cred.ID,
		&cred.OrgID,
		&cred.KeyHash,
		&cred.Hint,
		&cred.Status,
		&cred.PlanID,
		&cred.CreatedAt,
		&planID,
		&planName,
		&planRateLimit,
		&planQuota,
		&planPrice,
		&planAllowedPaths,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if planID.Valid {
		plan := &models.Plan{
			ID:              planID.String,
			Name:            planName.String,
			RateLimitPerMin: int(planRateLimit.Int64),
			MonthlyQuota:    planQuota.Int64,
			PricePer1kReq:   planPrice.String,
		}
		if len(planAllowedPaths) > 0 {
			if err := json.Unmarshal(planAllowedPaths, &plan.AllowedPaths); err != nil {
				return nil, fmt.Errorf("failed to decode allowed_paths for plan %s: %w", plan.ID, err)
			}
		}
		cred.Plan = plan
	}

	return cred, nil
}
