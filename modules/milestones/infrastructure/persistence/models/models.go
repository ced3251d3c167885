package models

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type Milestone struct {
	ID                   int64
	ProjectID            int64
	Title                string
	Deadline             pgtype.Date
	CompletionPercentage int32
	Status               string
}

type AuditLog struct {
	ID           int64
	Action       string
	EntityType   string
	EntityID     int64
	Details      []byte
	UserID       int64
	DepartmentID *int64
	IPAddress    *string
	UserAgent    *string
	CreatedAt    time.Time
}
