package services

import (
	"sort"
	"time"
)

const (
	RejectMissingProject   = "missing-project"
	RejectMissingMilestone = "missing-milestone"
	RejectUnknownProject   = "unknown-project"
	RejectStoreError       = "store-error"
	RejectMalformedLine    = "malformed-line"
	RejectInvalidRecord    = "invalid-record"
)

const (
	WarnUnrecognizedHeader = "unrecognized-header"
	WarnDuplicateHeader    = "duplicate-header"
	WarnInvalidProgress    = "invalid-progress"
	WarnInvalidDate        = "invalid-date"
	WarnUnknownStatus      = "unknown-status"
)

type Rejection struct {
	Row    int    `json:"row"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Warning records a repaired value. Repairs never block the row.
type Warning struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Summary struct {
	RunID               string      `json:"run_id"`
	DryRun              bool        `json:"dry_run"`
	StartedAt           time.Time   `json:"started_at"`
	FinishedAt          time.Time   `json:"finished_at"`
	RowsRead            int         `json:"rows_read"`
	RowsInserted        int         `json:"rows_inserted"`
	RowsUpdated         int         `json:"rows_updated"`
	RowsUnchanged       int         `json:"rows_unchanged"`
	RowsRejected        int         `json:"rows_rejected"`
	AuditFailures       int         `json:"audit_failures"`
	UnrecognizedHeaders []string    `json:"unrecognized_headers,omitempty"`
	Rejections          []Rejection `json:"rejections"`
	Warnings            []Warning   `json:"warnings"`
}

func newSummary(runID string, startedAt time.Time, dryRun bool) *Summary {
	return &Summary{
		RunID:      runID,
		DryRun:     dryRun,
		StartedAt:  startedAt,
		Rejections: []Rejection{},
		Warnings:   []Warning{},
	}
}

func (s *Summary) reject(row int, code, reason string) {
	s.RowsRejected++
	s.Rejections = append(s.Rejections, Rejection{Row: row, Code: code, Reason: reason})
	recordRow(resultRejected)
}

func (s *Summary) warn(w ...Warning) {
	s.Warnings = append(s.Warnings, w...)
	for _, v := range w {
		recordWarning(v.Code)
	}
}

func (s *Summary) merge(other *Summary) {
	s.RowsRead += other.RowsRead
	s.RowsInserted += other.RowsInserted
	s.RowsUpdated += other.RowsUpdated
	s.RowsUnchanged += other.RowsUnchanged
	s.RowsRejected += other.RowsRejected
	s.AuditFailures += other.AuditFailures
	s.Rejections = append(s.Rejections, other.Rejections...)
	s.Warnings = append(s.Warnings, other.Warnings...)
}

// sortByRow restores source order after partitioned runs.
func (s *Summary) sortByRow() {
	sort.SliceStable(s.Rejections, func(i, j int) bool { return s.Rejections[i].Row < s.Rejections[j].Row })
	sort.SliceStable(s.Warnings, func(i, j int) bool { return s.Warnings[i].Row < s.Warnings[j].Row })
}

// Writes reports how many rows changed the store.
func (s *Summary) Writes() int {
	return s.RowsInserted + s.RowsUpdated
}
