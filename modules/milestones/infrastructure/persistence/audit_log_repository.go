package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/entities/auditlog"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/infrastructure/persistence/models"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/composables"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/repo"
)

type AuditLogRepository struct{}

func NewAuditLogRepository() auditlog.Repository {
	return &AuditLogRepository{}
}

func (r *AuditLogRepository) List(ctx context.Context, params *auditlog.FindParams) ([]*auditlog.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	where, args := buildAuditLogFilters(params)
	query := `
		SELECT id, action, entity_type, entity_id, details, user_id, department_id, ip_address, user_agent, created_at
		FROM audit_logs
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC, id DESC
	`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit logs")
	}
	defer rows.Close()

	var results []*auditlog.Entry
	for rows.Next() {
		var row models.AuditLog
		if err := rows.Scan(
			&row.ID,
			&row.Action,
			&row.EntityType,
			&row.EntityID,
			&row.Details,
			&row.UserID,
			&row.DepartmentID,
			&row.IPAddress,
			&row.UserAgent,
			&row.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan audit log")
		}
		results = append(results, toDomainAuditLog(&row))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating audit logs")
	}
	return results, nil
}

func (r *AuditLogRepository) Count(ctx context.Context, params *auditlog.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}
	where, args := buildAuditLogFilters(params)

	var count int64
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM audit_logs
		WHERE `+strings.Join(where, " AND "),
		args...,
	).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count audit logs")
	}
	return count, nil
}

// Create appends an entry; audit rows are never updated or deleted.
func (r *AuditLogRepository) Create(ctx context.Context, entry *auditlog.Entry) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}

	dbRow := toDBAuditLog(entry)
	if dbRow.CreatedAt.IsZero() {
		dbRow.CreatedAt = time.Now().UTC()
	}

	if err := tx.QueryRow(
		ctx,
		`INSERT INTO audit_logs (action, entity_type, entity_id, details, user_id, department_id, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		dbRow.Action,
		dbRow.EntityType,
		dbRow.EntityID,
		dbRow.Details,
		dbRow.UserID,
		dbRow.DepartmentID,
		dbRow.IPAddress,
		dbRow.UserAgent,
		dbRow.CreatedAt,
	).Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return errors.Wrap(err, "failed to insert audit log")
	}
	return nil
}

func buildAuditLogFilters(params *auditlog.FindParams) ([]string, []interface{}) {
	where := []string{"1 = 1"}
	args := []interface{}{}
	argPos := 1
	if params == nil {
		return where, args
	}

	if action := strings.TrimSpace(params.Action); action != "" {
		where = append(where, fmt.Sprintf("action = $%d", argPos))
		args = append(args, action)
		argPos++
	}
	if entityType := strings.TrimSpace(params.EntityType); entityType != "" {
		where = append(where, fmt.Sprintf("entity_type = $%d", argPos))
		args = append(args, entityType)
		argPos++
	}
	if params.EntityID != nil {
		where = append(where, fmt.Sprintf("entity_id = $%d", argPos))
		args = append(args, *params.EntityID)
		argPos++
	}
	if params.ActorID != nil {
		where = append(where, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, *params.ActorID)
		argPos++
	}
	if params.From != nil && !params.From.IsZero() {
		where = append(where, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, *params.From)
		argPos++
	}
	if params.To != nil && !params.To.IsZero() {
		where = append(where, fmt.Sprintf("created_at <= $%d", argPos))
		args = append(args, *params.To)
	}
	return where, args
}
