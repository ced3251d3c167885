package persistence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/entities/auditlog"
)

func TestAuditLogRepository_Create_FillsIDAndTimestamp(t *testing.T) {
	dept := int64(4)
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "INSERT INTO audit_logs")
			require.Equal(t, auditlog.ActionImportUpdate, args[0])
			require.Equal(t, auditlog.EntityMilestone, args[1])
			require.Equal(t, int64(12), args[2])
			require.JSONEq(t, `{"a":1}`, string(args[3].([]byte)))
			require.Equal(t, int64(5), args[4])
			require.Equal(t, &dept, args[5])
			require.Equal(t, "10.0.0.1", *args[6].(*string))
			require.Nil(t, args[7].(*string))
			require.IsType(t, time.Time{}, args[8])
			createdAt := args[8].(time.Time)

			return stubRow{
				scan: func(dest ...any) error {
					require.Len(t, dest, 2)
					*dest[0].(*int64) = 55
					*dest[1].(*time.Time) = createdAt
					return nil
				},
			}
		},
	}

	entry := &auditlog.Entry{
		Action:       auditlog.ActionImportUpdate,
		EntityType:   auditlog.EntityMilestone,
		EntityID:     12,
		Details:      json.RawMessage(`{"a":1}`),
		ActorID:      5,
		DepartmentID: &dept,
		IPAddress:    "10.0.0.1",
	}
	err := NewAuditLogRepository().Create(withStubTx(tx), entry)
	require.NoError(t, err)
	require.Equal(t, int64(55), entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
}

func TestAuditLogRepository_Create_EmptyDetailsBecomesObject(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Equal(t, []byte(`{}`), args[3])
			return valuesRow(int64(1), time.Now())
		},
	}
	require.NoError(t, NewAuditLogRepository().Create(withStubTx(tx), &auditlog.Entry{Action: "x", EntityType: "y"}))
}

func TestAuditLogRepository_List_AppliesFiltersAndMapsRows(t *testing.T) {
	now := time.Now()
	entityID := int64(12)
	actorID := int64(5)
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "FROM audit_logs")
			require.Contains(t, sql, "action = $1")
			require.Contains(t, sql, "entity_id = $2")
			require.Contains(t, sql, "user_id = $3")
			require.Contains(t, sql, "LIMIT 10 OFFSET 20")
			require.Equal(t, []any{auditlog.ActionImportCreate, entityID, actorID}, args)
			ua := "cli"
			return &stubRows{data: [][]any{
				{int64(1), auditlog.ActionImportCreate, auditlog.EntityMilestone, entityID, []byte(`{"title":"Launch"}`), actorID, (*int64)(nil), (*string)(nil), &ua, now},
			}}, nil
		},
	}

	result, err := NewAuditLogRepository().List(withStubTx(tx), &auditlog.FindParams{
		Action:   auditlog.ActionImportCreate,
		EntityID: &entityID,
		ActorID:  &actorID,
		Limit:    10,
		Offset:   20,
	})
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, entityID, result[0].EntityID)
	require.Equal(t, actorID, result[0].ActorID)
	require.Equal(t, "", result[0].IPAddress)
	require.Equal(t, "cli", result[0].UserAgent)
	require.Nil(t, result[0].DepartmentID)
	require.JSONEq(t, `{"title":"Launch"}`, string(result[0].Details))
	require.Equal(t, now, result[0].CreatedAt)
}

func TestAuditLogRepository_Count_NoFilters(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "audit_logs")
			require.Empty(t, args)
			return stubRow{
				scan: func(dest ...any) error {
					*dest[0].(*int64) = 8
					return nil
				},
			}
		},
	}

	count, err := NewAuditLogRepository().Count(withStubTx(tx), nil)
	require.NoError(t, err)
	require.Equal(t, int64(8), count)
}

func TestBuildAuditLogFilters_DateRange(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	where, args := buildAuditLogFilters(&auditlog.FindParams{EntityType: "milestone", From: &from, To: &to})
	require.Equal(t, []string{"1 = 1", "entity_type = $1", "created_at >= $2", "created_at <= $3"}, where)
	require.Equal(t, []any{"milestone", from, to}, args)
}
