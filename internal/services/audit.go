package services

import (
	"context"
	"sort"
	"time"

	"memevault-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Audit actions
const (
	ActionLoginSuccess         = "LOGIN_SUCCESS"
	ActionLoginFailed          = "LOGIN_FAILED"
	ActionLogout               = "LOGOUT"
	ActionPasswordChanged      = "PASSWORD_CHANGED"
	ActionPasswordChangeFailed = "PASSWORD_CHANGE_FAILED"
	ActionAdminCreated         = "ADMIN_SETUP"
	ActionUnauthorizedAccess   = "UNAUTHORIZED_ACCESS_ATTEMPT"
	ActionInvalidToken         = "SECURITY_INVALID_TOKEN"
	ActionCreatedUser          = "ADMIN_CREATED_USER"
	ActionToggledUser          = "ADMIN_TOGGLED_USER_STATUS"
	ActionDeletedUser          = "ADMIN_DELETED_USER"
	ActionViewedGames          = "ADMIN_VIEWED_ALL_GAMES"
	ActionChangedGameStatus    = "ADMIN_CHANGED_GAME_STATUS"
	ActionDeletedGame          = "ADMIN_DELETED_GAME"
	ActionInitiatedCleanup     = "ADMIN_INITIATED_CLEANUP"
)

// AuditEvent is one event handed to the sink
type AuditEvent struct {
	UserID    string
	Action    string
	Details   map[string]any
	IPAddress string
	UserAgent string
}

// ActionCount is one row of the audit statistics
type ActionCount struct {
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// AuditService persists security and admin events
type AuditService struct {
	repo AuditRepository
	now  func() time.Time
}

// NewAuditService creates a new audit service
func NewAuditService(repo AuditRepository) *AuditService {
	return &AuditService{repo: repo, now: time.Now}
}

// Record stores ev and mirrors it to the log. Failing to persist never
// fails the caller.
func (s *AuditService) Record(ctx context.Context, ev AuditEvent) {
	entry := &models.AuditLog{
		ID:        uuid.New().String(),
		Action:    ev.Action,
		Details:   ev.Details,
		IPAddress: orUnknown(ev.IPAddress),
		UserAgent: orUnknown(ev.UserAgent),
		Timestamp: s.now().UTC(),
	}
	if ev.UserID != "" {
		entry.UserID = &ev.UserID
	}
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}

	log.Info().
		Str("action", entry.Action).
		Str("user_id", ev.UserID).
		Str("ip", entry.IPAddress).
		Interface("details", entry.Details).
		Msg("Audit log entry")

	if err := s.repo.Insert(context.WithoutCancel(ctx), entry); err != nil {
		log.Error().Err(err).Str("action", ev.Action).Str("user_id", ev.UserID).Msg("Failed to write audit log")
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// List returns a page of entries, newest first, with the total count
func (s *AuditService) List(ctx context.Context, limit, offset int) ([]*models.AuditLog, int, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	logs, total, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, storageFailure("list audit logs", err)
	}
	return logs, total, nil
}

// Stats counts entries per action between start and end, most frequent
// first. Zero times default to the last 30 days.
func (s *AuditService) Stats(ctx context.Context, start, end time.Time) ([]ActionCount, error) {
	if end.IsZero() {
		end = s.now().UTC()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -30)
	}
	counts, err := s.repo.CountByAction(ctx, start, end)
	if err != nil {
		return nil, storageFailure("count audit logs", err)
	}
	stats := make([]ActionCount, 0, len(counts))
	for action, n := range counts {
		stats = append(stats, ActionCount{Action: action, Count: n})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Action < stats[j].Action
	})
	return stats, nil
}

// Cleanup deletes entries older than retentionDays
func (s *AuditService) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, storageFailure("clean up audit logs", err)
	}
	log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Cleaned up old audit logs")
	return deleted, nil
}
