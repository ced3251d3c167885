package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/aggregates/milestone"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/entities/auditlog"
)

// AuditEmitter appends one entry per mutating action, attributed to the
// actor of the run.
type AuditEmitter struct {
	sink  auditlog.Repository
	actor auditlog.Actor
	now   func() time.Time
}

func NewAuditEmitter(sink auditlog.Repository, actor auditlog.Actor, now func() time.Time) *AuditEmitter {
	if now == nil {
		now = time.Now
	}
	return &AuditEmitter{sink: sink, actor: actor, now: now}
}

func (e *AuditEmitter) Emit(ctx context.Context, action string, entityID int64, details any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return errors.Wrap(err, "encode audit details")
	}
	entry := &auditlog.Entry{
		Action:       action,
		EntityType:   auditlog.EntityMilestone,
		EntityID:     entityID,
		Details:      payload,
		ActorID:      e.actor.ActorID,
		DepartmentID: e.actor.DepartmentID,
		IPAddress:    e.actor.IPAddress,
		UserAgent:    e.actor.UserAgent,
		CreatedAt:    e.now().UTC(),
	}
	if err := e.sink.Create(ctx, entry); err != nil {
		return errors.Wrap(err, "append audit entry")
	}
	return nil
}

type createDetails struct {
	Project              string `json:"project"`
	ProjectID            int64  `json:"projectId"`
	Title                string `json:"title"`
	Deadline             any    `json:"deadline"`
	CompletionPercentage int    `json:"completionPercentage"`
	Status               string `json:"status"`
	RunID                string `json:"runId,omitempty"`
}

func newCreateDetails(m milestone.Milestone, runID string) createDetails {
	return createDetails{
		Project:              m.ProjectKey,
		ProjectID:            m.ProjectID,
		Title:                m.Title,
		Deadline:             milestone.FormatDate(m.Deadline),
		CompletionPercentage: m.CompletionPercentage,
		Status:               string(m.Status),
		RunID:                runID,
	}
}
