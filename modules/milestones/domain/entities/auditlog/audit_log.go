package auditlog

import (
	"context"
	"encoding/json"
	"time"
)

const (
	ActionImportCreate = "milestone.import.create"
	ActionImportUpdate = "milestone.import.update"

	EntityMilestone = "milestone"
)

// Actor is the authenticated caller a run is attributed to. It is copied
// verbatim onto every entry.
type Actor struct {
	ActorID      int64  `validate:"required,gt=0"`
	DepartmentID *int64 `validate:"omitempty,gt=0"`
	IPAddress    string
	UserAgent    string
}

// Entry is immutable once written.
type Entry struct {
	ID           int64
	Action       string
	EntityType   string
	EntityID     int64
	Details      json.RawMessage
	ActorID      int64
	DepartmentID *int64
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
}

type FindParams struct {
	Action     string
	EntityType string
	EntityID   *int64
	ActorID    *int64
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

type Repository interface {
	List(ctx context.Context, params *FindParams) ([]*Entry, error)
	Count(ctx context.Context, params *FindParams) (int64, error)
	Create(ctx context.Context, entry *Entry) error
}
