package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/aggregates/milestone"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/constants"
)

// Validator turns canonical rows into milestones. Identity fields are strict
// and reject the row; progress, deadline and status are repaired with
// defaults and reported as warnings.
type Validator struct {
	repo    milestone.Repository
	cache   ProjectCache
	layouts []string

	mu   sync.Mutex
	memo map[string]milestone.ProjectRef
}

func NewValidator(repo milestone.Repository, cache ProjectCache, layouts []string) *Validator {
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	return &Validator{
		repo:    repo,
		cache:   cache,
		layouts: layouts,
		memo:    make(map[string]milestone.ProjectRef),
	}
}

// Validate returns either a milestone with its warnings or a rejection. The
// error is non-nil only when a store lookup failed; the caller decides whether
// that is a row rejection or a fatal cancellation.
func (v *Validator) Validate(ctx context.Context, row CanonicalRow, rowNum int) (milestone.Milestone, []Warning, *Rejection, error) {
	project := ParseText(row[FieldProject])
	if project == "" {
		return milestone.Milestone{}, nil, &Rejection{Row: rowNum, Code: RejectMissingProject, Reason: "project is empty"}, nil
	}
	title := ParseText(row[FieldMilestone])
	if title == "" {
		return milestone.Milestone{}, nil, &Rejection{Row: rowNum, Code: RejectMissingMilestone, Reason: "milestone title is empty"}, nil
	}

	var warnings []Warning
	rawProgress, present := row.Get(FieldProgress)
	progress, repaired := ParsePercentage(rawProgress, present)
	if repaired {
		warnings = append(warnings, Warning{
			Row:     rowNum,
			Field:   string(FieldProgress),
			Code:    WarnInvalidProgress,
			Message: fmt.Sprintf("progress %q stored as %d", rawProgress, progress),
		})
	}

	deadline, invalid := ParseDate(row[FieldDeadline], v.layouts)
	if invalid {
		warnings = append(warnings, Warning{
			Row:     rowNum,
			Field:   string(FieldDeadline),
			Code:    WarnInvalidDate,
			Message: fmt.Sprintf("deadline %q is not a recognized date, stored as empty", row[FieldDeadline]),
		})
	}

	status, recognized, hint := ParseStatus(row[FieldStatus])
	if !recognized {
		msg := fmt.Sprintf("status %q is unknown, stored as %s", row[FieldStatus], status)
		if hint != "" {
			msg += fmt.Sprintf(" (did you mean %s?)", hint)
		}
		warnings = append(warnings, Warning{Row: rowNum, Field: string(FieldStatus), Code: WarnUnknownStatus, Message: msg})
	}

	ref, err := v.resolveProject(ctx, project)
	if err != nil {
		if errors.Is(err, milestone.ErrProjectNotFound) {
			return milestone.Milestone{}, nil, &Rejection{
				Row:    rowNum,
				Code:   RejectUnknownProject,
				Reason: fmt.Sprintf("project %q does not exist", project),
			}, nil
		}
		return milestone.Milestone{}, nil, nil, errors.Wrap(err, "resolve project")
	}

	m := milestone.Milestone{
		ProjectID:            ref.ID,
		ProjectKey:           project,
		Title:                title,
		Deadline:             deadline,
		CompletionPercentage: progress,
		Status:               status,
	}
	if err := constants.Validate.Struct(m); err != nil {
		return milestone.Milestone{}, nil, &Rejection{Row: rowNum, Code: RejectInvalidRecord, Reason: err.Error()}, nil
	}
	return m, warnings, nil, nil
}

// resolveProject consults the run memo, then the shared cache, then the store.
func (v *Validator) resolveProject(ctx context.Context, key string) (milestone.ProjectRef, error) {
	memoKey := ProjectCacheKey(key)
	v.mu.Lock()
	ref, ok := v.memo[memoKey]
	v.mu.Unlock()
	if ok {
		return ref, nil
	}

	if v.cache != nil {
		ref, hit, err := v.cache.Get(ctx, key)
		if err != nil {
			logWithFields(ctx, logrus.WarnLevel, "milestone.import.cache.failed", logrus.Fields{
				"project": key,
				"error":   err.Error(),
			})
		} else if hit {
			v.remember(memoKey, ref)
			return ref, nil
		}
	}

	ref, err := v.repo.FindProjectByKey(ctx, key)
	if err != nil {
		return milestone.ProjectRef{}, err
	}
	v.remember(memoKey, ref)
	if v.cache != nil {
		if err := v.cache.Set(ctx, key, ref); err != nil {
			logWithFields(ctx, logrus.WarnLevel, "milestone.import.cache.failed", logrus.Fields{
				"project": key,
				"error":   err.Error(),
			})
		}
	}
	return ref, nil
}

func (v *Validator) remember(key string, ref milestone.ProjectRef) {
	v.mu.Lock()
	v.memo[key] = ref
	v.mu.Unlock()
}
