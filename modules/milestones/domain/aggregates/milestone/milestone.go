package milestone

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("milestone not found")
	ErrProjectNotFound = errors.New("project not found")
)

type Status string

const (
	StatusPlanning   Status = "Planning"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusDelayed    Status = "Delayed"
	StatusCancelled  Status = "Cancelled"
)

// DefaultStatus is assigned when the source status cannot be mapped.
const DefaultStatus = StatusPlanning

var Statuses = []Status{
	StatusPlanning,
	StatusInProgress,
	StatusCompleted,
	StatusDelayed,
	StatusCancelled,
}

func (s Status) IsValid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

type ProjectRef struct {
	ID    int64
	Title string
}

// Milestone is a validated record ready for persistence. ProjectKey and Title
// form the business key.
type Milestone struct {
	ID                   int64
	ProjectID            int64
	ProjectKey           string     `validate:"required"`
	Title                string     `validate:"required"`
	Deadline             *time.Time `validate:"-"`
	CompletionPercentage int        `validate:"min=0,max=100"`
	Status               Status     `validate:"oneof=Planning InProgress Completed Delayed Cancelled"`
}

// Repository is the persistence boundary of the import pipeline.
type Repository interface {
	Ping(ctx context.Context) error
	FindProjectByKey(ctx context.Context, key string) (ProjectRef, error)
	FindMilestone(ctx context.Context, projectID int64, title string) (Milestone, error)
	Insert(ctx context.Context, m Milestone) (int64, error)
	Update(ctx context.Context, id int64, changes Changes) error
}
