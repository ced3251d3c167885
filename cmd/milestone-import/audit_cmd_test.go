package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/entities/auditlog"
)

func TestAuditListOptions_FindParams(t *testing.T) {
	params, err := auditListOptions{
		action:   " milestone.import.update ",
		entityID: 9,
		from:     "2025-01-01",
		to:       "2025-02-01T00:00:00Z",
		limit:    10,
		offset:   20,
	}.findParams()
	require.NoError(t, err)
	require.Equal(t, "milestone.import.update", params.Action)
	require.Equal(t, auditlog.EntityMilestone, params.EntityType)
	require.Equal(t, int64(9), *params.EntityID)
	require.Nil(t, params.ActorID)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *params.From)
	require.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), *params.To)
	require.Equal(t, 10, params.Limit)
	require.Equal(t, 20, params.Offset)

	_, err = auditListOptions{from: "yesterday"}.findParams()
	require.Error(t, err)

	_, err = auditListOptions{from: "2025-02-01", to: "2025-01-01"}.findParams()
	require.Error(t, err)

	_, err = auditListOptions{limit: -1}.findParams()
	require.Error(t, err)
}

func TestToAuditEntryLine(t *testing.T) {
	line := toAuditEntryLine(&auditlog.Entry{ID: 1, Action: auditlog.ActionImportCreate, ActorID: 42})
	b, err := json.Marshal(line)
	require.NoError(t, err)
	require.Contains(t, string(b), `"details":{}`)
	require.Contains(t, string(b), `"user_id":42`)
	require.Contains(t, string(b), `"department_id":null`)
}
