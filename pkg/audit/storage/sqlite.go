package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"arbiter-hq/arbiter/pkg/audit"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements audit.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage creates a SQLite storage backend, initializing the schema
// and enabling WAL mode if configured.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite audit storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Store persists an audit record to the database.
func (s *SQLiteStorage) Store(ctx context.Context, record *audit.Record) error {
	principalTags, _ := json.Marshal(record.PrincipalTags)
	input, _ := json.Marshal(record.Input)
	permitIDs, _ := json.Marshal(record.MatchedPermitIDs)
	forbidIDs, _ := json.Marshal(record.MatchedForbidIDs)
	policyErrors, _ := json.Marshal(record.PolicyErrors)

	query := `
		INSERT INTO decisions (
			id, correlation_id,
			evaluated_at, recorded_at,
			gateway_id, action_id, resource, principal_tags, input,
			decision, allowed, blocked, mode,
			matched_permit_ids, matched_forbid_ids, policy_errors,
			candidate_count, evaluation_time_us
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.CorrelationID,
		record.EvaluatedAt, record.RecordedAt,
		record.GatewayID, record.ActionID, record.Resource, string(principalTags), string(input),
		record.Decision(), record.Allowed, record.Blocked, record.Mode,
		string(permitIDs), string(forbidIDs), string(policyErrors),
		record.CandidateCount, record.EvaluationTime.Microseconds(),
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "store", err)
	}

	return nil
}

// Query retrieves audit records matching the query filters.
func (s *SQLiteStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := `SELECT
		id, correlation_id,
		evaluated_at, recorded_at,
		gateway_id, action_id, resource, principal_tags, input,
		allowed, blocked, mode,
		matched_permit_ids, matched_forbid_ids, policy_errors,
		candidate_count, evaluation_time_us
	FROM decisions`
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	sortOrder := "DESC"
	if query.SortOrder == "ASC" {
		sortOrder = "ASC"
	}
	sqlQuery += " ORDER BY evaluated_at " + sortOrder

	limit := 100
	if query.Limit > 0 {
		limit = query.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*audit.Record{}
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}

	return records, nil
}

// Count returns the number of audit records matching the query filters.
func (s *SQLiteStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM decisions"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes audit records matching the query filters.
// Returns the number of records deleted.
func (s *SQLiteStorage) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "DELETE FROM decisions"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// Close releases resources held by the storage backend.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return audit.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite audit storage closed")
	return nil
}

// buildWhereClause translates query filters into SQL.
func buildWhereClause(query *audit.Query) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if query.GatewayID != "" {
		clauses = append(clauses, "gateway_id = ?")
		args = append(args, query.GatewayID)
	}
	if query.ActionID != "" {
		clauses = append(clauses, "action_id = ?")
		args = append(args, query.ActionID)
	}
	if query.Decision != "" {
		clauses = append(clauses, "decision = ?")
		args = append(args, query.Decision)
	}
	if query.Mode != "" {
		clauses = append(clauses, "mode = ?")
		args = append(args, query.Mode)
	}
	if query.StartTime != nil {
		clauses = append(clauses, "evaluated_at >= ?")
		args = append(args, *query.StartTime)
	}
	if query.EndTime != nil {
		clauses = append(clauses, "evaluated_at < ?")
		args = append(args, *query.EndTime)
	}

	where := ""
	for i, c := range clauses {
		if i > 0 {
			where += " AND "
		}
		where += c
	}
	return where, args
}

// scanRow scans a single decisions row into a Record.
func scanRow(rows *sql.Rows) (*audit.Record, error) {
	var record audit.Record
	var principalTags, input, permitIDs, forbidIDs, policyErrors sql.NullString
	var evaluationTimeUs int64

	err := rows.Scan(
		&record.ID, &record.CorrelationID,
		&record.EvaluatedAt, &record.RecordedAt,
		&record.GatewayID, &record.ActionID, &record.Resource, &principalTags, &input,
		&record.Allowed, &record.Blocked, &record.Mode,
		&permitIDs, &forbidIDs, &policyErrors,
		&record.CandidateCount, &evaluationTimeUs,
	)
	if err != nil {
		return nil, err
	}

	record.EvaluationTime = time.Duration(evaluationTimeUs) * time.Microsecond

	if principalTags.Valid && principalTags.String != "" {
		json.Unmarshal([]byte(principalTags.String), &record.PrincipalTags)
	}
	if input.Valid && input.String != "" {
		json.Unmarshal([]byte(input.String), &record.Input)
	}
	if permitIDs.Valid && permitIDs.String != "" {
		json.Unmarshal([]byte(permitIDs.String), &record.MatchedPermitIDs)
	}
	if forbidIDs.Valid && forbidIDs.String != "" {
		json.Unmarshal([]byte(forbidIDs.String), &record.MatchedForbidIDs)
	}
	if policyErrors.Valid && policyErrors.String != "" {
		json.Unmarshal([]byte(policyErrors.String), &record.PolicyErrors)
	}

	return &record, nil
}
