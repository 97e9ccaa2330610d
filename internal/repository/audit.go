package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"memevault-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository handles database operations for audit log entries
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends an audit entry
func (r *AuditRepository) Insert(ctx context.Context, entry *models.AuditLog) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}
	query := `
		INSERT INTO audit_logs (id, user_id, action, details, ip_address, user_agent, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.Exec(ctx, query,
		entry.ID, entry.UserID, entry.Action, details, entry.IPAddress, entry.UserAgent, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// List returns entries newest first with the total count
func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]*models.AuditLog, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := `
		SELECT id, user_id, action, details, ip_address, user_agent, timestamp
		FROM audit_logs
		ORDER BY timestamp DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	entries := []*models.AuditLog{}
	for rows.Next() {
		var entry models.AuditLog
		var details []byte
		err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.Action, &details,
			&entry.IPAddress, &entry.UserAgent, &entry.Timestamp,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, 0, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating audit logs: %w", err)
	}
	return entries, total, nil
}

// CountByAction groups entries between start and end by action
func (r *AuditRepository) CountByAction(ctx context.Context, start, end time.Time) (map[string]int, error) {
	query := `
		SELECT action, COUNT(*)
		FROM audit_logs
		WHERE timestamp >= $1 AND timestamp <= $2
		GROUP BY action
	`
	rows, err := r.db.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate audit logs: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("failed to scan audit stats: %w", err)
		}
		stats[action] = n
	}
	return stats, rows.Err()
}

// DeleteBefore removes entries older than cutoff
func (r *AuditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM audit_logs WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
