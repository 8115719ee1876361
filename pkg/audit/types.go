package audit

import (
	"context"
	"time"
)

// Record is the audit trail entry for a single authorization decision.
type Record struct {
	// Identity
	ID            string `json:"id"`             // UUID v4
	CorrelationID string `json:"correlation_id"` // Caller-supplied request correlation id

	// Timestamps
	EvaluatedAt time.Time `json:"evaluated_at"` // When the decision was made
	RecordedAt  time.Time `json:"recorded_at"`  // When the record was written

	// Request
	GatewayID     string            `json:"gateway_id"`
	ActionID      string            `json:"action_id"`
	Resource      string            `json:"resource"`
	PrincipalTags map[string]string `json:"principal_tags"`
	Input         map[string]any    `json:"input"` // Call parameters as plain Go values

	// Decision
	Allowed          bool     `json:"allowed"`
	Blocked          bool     `json:"blocked"` // Allowed==false under enforce mode
	Mode             string   `json:"mode"`
	MatchedPermitIDs []string `json:"matched_permit_ids"`
	MatchedForbidIDs []string `json:"matched_forbid_ids"`

	// Per-policy evaluation failures. A policy that errors is excluded from
	// the decision but still shows up here.
	PolicyErrors []PolicyErrorRecord `json:"policy_errors"`

	// Timing
	CandidateCount int           `json:"candidate_count"`
	EvaluationTime time.Duration `json:"evaluation_time"`
}

// PolicyErrorRecord captures one policy that failed to evaluate.
type PolicyErrorRecord struct {
	PolicyID string `json:"policy_id"`
	Kind     string `json:"kind"` // missing_tag, missing_field, type_mismatch, invalid_expression
	Message  string `json:"message"`
}

// Decision returns "allow" or "deny" for indexing and filtering.
func (r *Record) Decision() string {
	if r.Allowed {
		return "allow"
	}
	return "deny"
}

// Query contains filters for retrieving audit records.
// Zero-valued fields are not applied.
type Query struct {
	GatewayID string
	ActionID  string
	Decision  string // "allow" or "deny"
	Mode      string

	// Time range on EvaluatedAt. StartTime is inclusive, EndTime exclusive.
	StartTime *time.Time
	EndTime   *time.Time

	// Pagination. Limit 0 means the backend default.
	Limit  int
	Offset int

	// SortOrder is "ASC" or "DESC" on EvaluatedAt. Default DESC.
	SortOrder string
}

// Storage is the persistence interface for audit records.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query retrieves records matching the filters, newest first by default.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes records matching the filters and returns how many.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases backend resources.
	Close() error
}
