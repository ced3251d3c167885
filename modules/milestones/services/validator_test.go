package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/aggregates/milestone"
)

type brokenCache struct{ gets, sets int }

func (c *brokenCache) Get(context.Context, string) (milestone.ProjectRef, bool, error) {
	c.gets++
	return milestone.ProjectRef{}, false, errors.New("redis: connection refused")
}

func (c *brokenCache) Set(context.Context, string, milestone.ProjectRef) error {
	c.sets++
	return errors.New("redis: connection refused")
}

func TestValidator_ValidRow(t *testing.T) {
	v := NewValidator(newFakeStore("Apollo"), nil, nil)
	m, warnings, rej, err := v.Validate(context.Background(), CanonicalRow{
		FieldProject:   " Apollo ",
		FieldMilestone: " Launch ",
		FieldDeadline:  "2025-01-31",
		FieldProgress:  " 75% ",
		FieldStatus:    "done",
	}, 2)
	require.NoError(t, err)
	require.Nil(t, rej)
	require.Empty(t, warnings)
	require.Equal(t, int64(1), m.ProjectID)
	require.Equal(t, "Apollo", m.ProjectKey)
	require.Equal(t, "Launch", m.Title)
	require.Equal(t, 75, m.CompletionPercentage)
	require.Equal(t, milestone.StatusCompleted, m.Status)
	require.Equal(t, "2025-01-31", milestone.FormatDate(m.Deadline))
}

func TestValidator_IdentityIsStrict(t *testing.T) {
	v := NewValidator(newFakeStore("Apollo"), nil, nil)

	_, warnings, rej, err := v.Validate(context.Background(), CanonicalRow{FieldMilestone: "Launch", FieldProgress: "junk"}, 7)
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, &Rejection{Row: 7, Code: RejectMissingProject, Reason: "project is empty"}, rej)

	_, _, rej, err = v.Validate(context.Background(), CanonicalRow{FieldProject: "Apollo"}, 8)
	require.NoError(t, err)
	require.Equal(t, RejectMissingMilestone, rej.Code)
}

func TestValidator_StatusHintInWarning(t *testing.T) {
	v := NewValidator(newFakeStore("Apollo"), nil, nil)
	_, warnings, rej, err := v.Validate(context.Background(), CanonicalRow{
		FieldProject:   "Apollo",
		FieldMilestone: "Launch",
		FieldStatus:    "In Progres",
	}, 3)
	require.NoError(t, err)
	require.Nil(t, rej)
	require.Len(t, warnings, 1)
	require.Equal(t, WarnUnknownStatus, warnings[0].Code)
	require.Contains(t, warnings[0].Message, "did you mean InProgress?")
}

func TestValidator_CacheFailureFallsBackToStore(t *testing.T) {
	store := newFakeStore("Apollo")
	cache := &brokenCache{}
	v := NewValidator(store, cache, nil)

	for i := 0; i < 3; i++ {
		_, _, rej, err := v.Validate(context.Background(), CanonicalRow{FieldProject: "Apollo", FieldMilestone: "Launch"}, i+2)
		require.NoError(t, err)
		require.Nil(t, rej)
	}
	require.Equal(t, 1, store.projectHits)
	require.Equal(t, 1, cache.gets)
	require.Equal(t, 1, cache.sets)
}

func TestValidator_CustomDateLayouts(t *testing.T) {
	v := NewValidator(newFakeStore("Apollo"), nil, []string{"01/02/2006"})
	m, warnings, _, err := v.Validate(context.Background(), CanonicalRow{
		FieldProject:   "Apollo",
		FieldMilestone: "Launch",
		FieldDeadline:  "2025-01-31",
	}, 2)
	require.NoError(t, err)
	require.Nil(t, m.Deadline)
	require.Len(t, warnings, 1)
	require.Equal(t, WarnInvalidDate, warnings[0].Code)
}
