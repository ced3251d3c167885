package persistence

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/aggregates/milestone"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/entities/auditlog"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/infrastructure/persistence/models"
)

func pgDate(t *time.Time) pgtype.Date {
	if t == nil || t.IsZero() {
		return pgtype.Date{}
	}
	y, m, d := t.UTC().Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

func fromPgDate(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	y, m, day := d.Time.Date()
	t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toDBMilestone(m milestone.Milestone) *models.Milestone {
	return &models.Milestone{
		ID:                   m.ID,
		ProjectID:            m.ProjectID,
		Title:                m.Title,
		Deadline:             pgDate(m.Deadline),
		CompletionPercentage: int32(m.CompletionPercentage),
		Status:               string(m.Status),
	}
}

func toDomainMilestone(dbMilestone *models.Milestone) milestone.Milestone {
	return milestone.Milestone{
		ID:                   dbMilestone.ID,
		ProjectID:            dbMilestone.ProjectID,
		Title:                dbMilestone.Title,
		Deadline:             fromPgDate(dbMilestone.Deadline),
		CompletionPercentage: int(dbMilestone.CompletionPercentage),
		Status:               milestone.Status(dbMilestone.Status),
	}
}

func toDBAuditLog(entry *auditlog.Entry) *models.AuditLog {
	details := []byte(entry.Details)
	if len(details) == 0 {
		details = []byte(`{}`)
	}
	return &models.AuditLog{
		ID:           entry.ID,
		Action:       entry.Action,
		EntityType:   entry.EntityType,
		EntityID:     entry.EntityID,
		Details:      details,
		UserID:       entry.ActorID,
		DepartmentID: entry.DepartmentID,
		IPAddress:    nullableString(entry.IPAddress),
		UserAgent:    nullableString(entry.UserAgent),
		CreatedAt:    entry.CreatedAt,
	}
}

func toDomainAuditLog(dbLog *models.AuditLog) *auditlog.Entry {
	return &auditlog.Entry{
		ID:           dbLog.ID,
		Action:       dbLog.Action,
		EntityType:   dbLog.EntityType,
		EntityID:     dbLog.EntityID,
		Details:      json.RawMessage(dbLog.Details),
		ActorID:      dbLog.UserID,
		DepartmentID: dbLog.DepartmentID,
		IPAddress:    derefString(dbLog.IPAddress),
		UserAgent:    derefString(dbLog.UserAgent),
		CreatedAt:    dbLog.CreatedAt,
	}
}
