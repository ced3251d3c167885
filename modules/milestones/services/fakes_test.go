package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/aggregates/milestone"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/entities/auditlog"
)

type milestoneKey struct {
	projectID int64
	title     string
}

type fakeStore struct {
	mu          sync.Mutex
	projects    map[string]milestone.ProjectRef
	milestones  map[milestoneKey]milestone.Milestone
	nextID      int64
	pingErr     error
	findErr     map[string]error
	projectErr  error
	projectHits int
	afterWrite  func(m milestone.Milestone)
}

func newFakeStore(projects ...string) *fakeStore {
	s := &fakeStore{
		projects:   make(map[string]milestone.ProjectRef),
		milestones: make(map[milestoneKey]milestone.Milestone),
		findErr:    make(map[string]error),
	}
	for i, p := range projects {
		s.projects[strings.ToLower(p)] = milestone.ProjectRef{ID: int64(i + 1), Title: p}
	}
	return s
}

func (s *fakeStore) Ping(ctx context.Context) error {
	return s.pingErr
}

func (s *fakeStore) FindProjectByKey(ctx context.Context, key string) (milestone.ProjectRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectHits++
	if s.projectErr != nil {
		return milestone.ProjectRef{}, s.projectErr
	}
	ref, ok := s.projects[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return milestone.ProjectRef{}, milestone.ErrProjectNotFound
	}
	return ref, nil
}

func (s *fakeStore) FindMilestone(ctx context.Context, projectID int64, title string) (milestone.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.findErr[title]; err != nil {
		return milestone.Milestone{}, err
	}
	m, ok := s.milestones[milestoneKey{projectID, title}]
	if !ok {
		return milestone.Milestone{}, milestone.ErrNotFound
	}
	return m, nil
}

func (s *fakeStore) Insert(ctx context.Context, m milestone.Milestone) (int64, error) {
	s.mu.Lock()
	s.nextID++
	m.ID = s.nextID
	s.milestones[milestoneKey{m.ProjectID, m.Title}] = m
	hook := s.afterWrite
	s.mu.Unlock()
	if hook != nil {
		hook(m)
	}
	return m.ID, nil
}

func (s *fakeStore) Update(ctx context.Context, id int64, changes milestone.Changes) error {
	s.mu.Lock()
	key := milestoneKey{changes.Previous.ProjectID, changes.Previous.Title}
	m, ok := s.milestones[key]
	if !ok || m.ID != id {
		s.mu.Unlock()
		return milestone.ErrNotFound
	}
	m.Deadline = changes.Next.Deadline
	m.CompletionPercentage = changes.Next.CompletionPercentage
	m.Status = changes.Next.Status
	s.milestones[key] = m
	hook := s.afterWrite
	s.mu.Unlock()
	if hook != nil {
		hook(m)
	}
	return nil
}

func (s *fakeStore) get(t *testing.T, project, title string) milestone.Milestone {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.projects[strings.ToLower(project)]
	require.True(t, ok, "unknown project %s", project)
	m, ok := s.milestones[milestoneKey{ref.ID, title}]
	require.True(t, ok, "milestone %s/%s not stored", project, title)
	return m
}

func (s *fakeStore) snapshot() map[milestoneKey]milestone.Milestone {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[milestoneKey]milestone.Milestone, len(s.milestones))
	for k, v := range s.milestones {
		v.ID = 0
		out[k] = v
	}
	return out
}

type fakeAuditSink struct {
	mu      sync.Mutex
	entries []*auditlog.Entry
	err     error
}

func (a *fakeAuditSink) List(ctx context.Context, params *auditlog.FindParams) ([]*auditlog.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*auditlog.Entry(nil), a.entries...), nil
}

func (a *fakeAuditSink) Count(ctx context.Context, params *auditlog.FindParams) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int64(len(a.entries)), nil
}

func (a *fakeAuditSink) Create(ctx context.Context, entry *auditlog.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	entry.ID = int64(len(a.entries) + 1)
	a.entries = append(a.entries, entry)
	return nil
}

func (a *fakeAuditSink) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

var errStoreDown = errors.New("connection reset by peer")

const exportHeader = "PROJECT;MILESTONE;DEADLINE; PROGRESS;STATUS\n"

func exportCSV(rows ...string) string {
	return exportHeader + strings.Join(rows, "\n") + "\n"
}

func exportRows(project string, n int, progress string) []string {
	rows := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, fmt.Sprintf("%s;Milestone %02d;2025-03-%02d;%s;In Progress", project, i, i, progress))
	}
	return rows
}

func newTestCSVSource(t *testing.T, content string) Source {
	t.Helper()
	src, err := NewCSVSource(strings.NewReader(content), CSVOptions{})
	require.NoError(t, err)
	return src
}

func testActor() auditlog.Actor {
	dept := int64(3)
	return auditlog.Actor{ActorID: 42, DepartmentID: &dept, IPAddress: "192.0.2.10", UserAgent: "milestone-import/test"}
}
