package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/aggregates/milestone"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/infrastructure/persistence/models"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/composables"
)

type MilestoneRepository struct{}

func NewMilestoneRepository() milestone.Repository {
	return &MilestoneRepository{}
}

func (r *MilestoneRepository) Ping(ctx context.Context) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	var one int
	if err := tx.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return errors.Wrap(err, "failed to ping database")
	}
	return nil
}

func (r *MilestoneRepository) FindProjectByKey(ctx context.Context, key string) (milestone.ProjectRef, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return milestone.ProjectRef{}, errors.Wrap(err, "failed to get transaction")
	}

	var ref milestone.ProjectRef
	err = tx.QueryRow(ctx, `
		SELECT id, title
		FROM projects
		WHERE lower(btrim(title)) = lower($1)
		ORDER BY id
		LIMIT 1
	`, strings.TrimSpace(key)).Scan(&ref.ID, &ref.Title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return milestone.ProjectRef{}, milestone.ErrProjectNotFound
		}
		return milestone.ProjectRef{}, errors.Wrap(err, "failed to find project")
	}
	return ref, nil
}

func (r *MilestoneRepository) FindMilestone(ctx context.Context, projectID int64, title string) (milestone.Milestone, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return milestone.Milestone{}, errors.Wrap(err, "failed to get transaction")
	}

	var row models.Milestone
	err = tx.QueryRow(ctx, `
		SELECT id, project_id, title, deadline, completion_percentage, status
		FROM milestones
		WHERE project_id = $1 AND title = $2
		ORDER BY id
		LIMIT 1
	`, projectID, title).Scan(
		&row.ID,
		&row.ProjectID,
		&row.Title,
		&row.Deadline,
		&row.CompletionPercentage,
		&row.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return milestone.Milestone{}, milestone.ErrNotFound
		}
		return milestone.Milestone{}, errors.Wrap(err, "failed to find milestone")
	}
	return toDomainMilestone(&row), nil
}

func (r *MilestoneRepository) Insert(ctx context.Context, m milestone.Milestone) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get transaction")
	}

	dbRow := toDBMilestone(m)
	var id int64
	if err := tx.QueryRow(ctx, `
		INSERT INTO milestones (project_id, title, deadline, completion_percentage, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id
	`,
		dbRow.ProjectID,
		dbRow.Title,
		dbRow.Deadline,
		dbRow.CompletionPercentage,
		dbRow.Status,
	).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "failed to insert milestone")
	}
	return id, nil
}

// Update writes only the columns listed in changes.
func (r *MilestoneRepository) Update(ctx context.Context, id int64, changes milestone.Changes) error {
	if changes.Empty() {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}

	dbRow := toDBMilestone(changes.Next)
	set := make([]string, 0, len(changes.Fields)+1)
	args := make([]any, 0, len(changes.Fields)+1)
	argPos := 1
	for _, f := range changes.Fields {
		switch f {
		case milestone.FieldDeadline:
			set = append(set, fmt.Sprintf("deadline = $%d", argPos))
			args = append(args, dbRow.Deadline)
		case milestone.FieldCompletionPercentage:
			set = append(set, fmt.Sprintf("completion_percentage = $%d", argPos))
			args = append(args, dbRow.CompletionPercentage)
		case milestone.FieldStatus:
			set = append(set, fmt.Sprintf("status = $%d", argPos))
			args = append(args, dbRow.Status)
		default:
			return errors.Errorf("unsupported milestone field: %s", f)
		}
		argPos++
	}
	set = append(set, "updated_at = now()")
	args = append(args, id)

	tag, err := tx.Exec(ctx,
		`UPDATE milestones SET `+strings.Join(set, ", ")+fmt.Sprintf(` WHERE id = $%d`, argPos),
		args...,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update milestone")
	}
	if tag.RowsAffected() == 0 {
		return milestone.ErrNotFound
	}
	return nil
}
