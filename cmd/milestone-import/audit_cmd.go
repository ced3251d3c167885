package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/entities/auditlog"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/infrastructure/persistence"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/composables"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/configuration"
)

type auditListOptions struct {
	action   string
	entityID int64
	actorID  int64
	from     string
	to       string
	limit    int
	offset   int
	count    bool
}

type auditEntryLine struct {
	ID           int64           `json:"id"`
	Action       string          `json:"action"`
	EntityType   string          `json:"entity_type"`
	EntityID     int64           `json:"entity_id"`
	Details      json.RawMessage `json:"details"`
	UserID       int64           `json:"user_id"`
	DepartmentID *int64          `json:"department_id"`
	IPAddress    string          `json:"ip_address,omitempty"`
	UserAgent    string          `json:"user_agent,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect audit entries written by imports",
	}
	cmd.AddCommand(newAuditListCmd())
	return cmd
}

func newAuditListCmd() *cobra.Command {
	var opts auditListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print audit entries as JSON lines, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := opts.findParams()
			if err != nil {
				return withCode(exitUsage, err)
			}
			return runAuditList(cmd.Context(), params, opts.count)
		},
	}

	cmd.Flags().StringVar(&opts.action, "action", "", "Filter by action, e.g. milestone.import.update")
	cmd.Flags().Int64Var(&opts.entityID, "entity-id", 0, "Filter by milestone id")
	cmd.Flags().Int64Var(&opts.actorID, "actor-id", 0, "Filter by user id")
	cmd.Flags().StringVar(&opts.from, "from", "", "Entries created at or after this time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.to, "to", "", "Entries created at or before this time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&opts.limit, "limit", 50, "Maximum number of entries")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Entries to skip")
	cmd.Flags().BoolVar(&opts.count, "count", false, "Print only the number of matching entries")
	return cmd
}

func (o auditListOptions) findParams() (*auditlog.FindParams, error) {
	if o.limit < 0 || o.offset < 0 {
		return nil, fmt.Errorf("--limit and --offset must be non-negative")
	}
	params := &auditlog.FindParams{
		Action:     strings.TrimSpace(o.action),
		EntityType: auditlog.EntityMilestone,
		Limit:      o.limit,
		Offset:     o.offset,
	}
	if o.entityID > 0 {
		id := o.entityID
		params.EntityID = &id
	}
	if o.actorID > 0 {
		id := o.actorID
		params.ActorID = &id
	}
	if strings.TrimSpace(o.from) != "" {
		t, err := parseTimeFlag(o.from)
		if err != nil {
			return nil, fmt.Errorf("invalid --from: %w", err)
		}
		params.From = &t
	}
	if strings.TrimSpace(o.to) != "" {
		t, err := parseTimeFlag(o.to)
		if err != nil {
			return nil, fmt.Errorf("invalid --to: %w", err)
		}
		params.To = &t
	}
	if params.From != nil && params.To != nil && !params.From.Before(*params.To) {
		return nil, fmt.Errorf("--from must be before --to")
	}
	return params, nil
}

func parseTimeFlag(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", v, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time: %s", v)
}

func runAuditList(ctx context.Context, params *auditlog.FindParams, countOnly bool) error {
	conf := configuration.Use()
	pool, err := connectDB(ctx, conf.Database.Opts)
	if err != nil {
		return withCode(exitStoreUnavailable, err)
	}
	defer pool.Close()
	ctx = composables.WithPool(ctx, pool)

	repo := persistence.NewAuditLogRepository()
	if countOnly {
		n, err := repo.Count(ctx, params)
		if err != nil {
			return withCode(exitStoreUnavailable, fmt.Errorf("count audit entries: %w", err))
		}
		return writeJSONLine(map[string]int64{"count": n})
	}

	entries, err := repo.List(ctx, params)
	if err != nil {
		return withCode(exitStoreUnavailable, fmt.Errorf("list audit entries: %w", err))
	}
	for _, e := range entries {
		if err := writeJSONLine(toAuditEntryLine(e)); err != nil {
			return err
		}
	}
	return nil
}

func toAuditEntryLine(e *auditlog.Entry) auditEntryLine {
	details := e.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	return auditEntryLine{
		ID:           e.ID,
		Action:       e.Action,
		EntityType:   e.EntityType,
		EntityID:     e.EntityID,
		Details:      details,
		UserID:       e.ActorID,
		DepartmentID: e.DepartmentID,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		CreatedAt:    e.CreatedAt,
	}
}
