package services

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/aggregates/milestone"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/domain/entities/auditlog"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/composables"
	"github.com/LenoreWoW/ProjectPulse-2-sub003/pkg/constants"
)

var (
	ErrMissingHeader       = errors.New("source has no header line")
	ErrUnrecognizedHeaders = errors.New("header has none of the milestone columns")
	ErrStoreUnavailable    = errors.New("milestone store is unavailable")
	ErrInvalidActor        = errors.New("invalid actor")
)

const tracerName = "github.com/LenoreWoW/ProjectPulse-2-sub003/modules/milestones/services"

// TxFunc runs fn as a single unit of work. Work that fails is rolled back.
type TxFunc func(ctx context.Context, fn func(context.Context) error) error

func runDirect(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type Option func(*ImportService)

// WithTxFunc sets the unit of work wrapping each row's lookup, write and audit.
func WithTxFunc(fn TxFunc) Option {
	return func(s *ImportService) {
		if fn != nil {
			s.txFunc = fn
		}
	}
}

// WithAuditTxFunc sets the unit of work nested inside the row for the audit
// append, so that a failed append is undone without losing the row's write.
func WithAuditTxFunc(fn TxFunc) Option {
	return func(s *ImportService) {
		if fn != nil {
			s.auditTxFunc = fn
		}
	}
}

func WithWorkers(n int) Option {
	return func(s *ImportService) {
		if n < 1 {
			n = 1
		}
		s.workers = n
	}
}

func WithRowTimeout(d time.Duration) Option {
	return func(s *ImportService) {
		s.rowTimeout = d
	}
}

func WithDateLayouts(layouts ...string) Option {
	return func(s *ImportService) {
		if len(layouts) > 0 {
			s.layouts = layouts
		}
	}
}

func WithProjectCache(c ProjectCache) Option {
	return func(s *ImportService) {
		s.cache = c
	}
}

// WithDryRun only marks the summary; the caller owns the rollback.
func WithDryRun(dryRun bool) Option {
	return func(s *ImportService) {
		s.dryRun = dryRun
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ImportService) {
		if now != nil {
			s.now = now
		}
	}
}

type ImportService struct {
	repo        milestone.Repository
	audit       auditlog.Repository
	txFunc      TxFunc
	auditTxFunc TxFunc
	workers     int
	rowTimeout  time.Duration
	layouts     []string
	cache       ProjectCache
	dryRun      bool
	now         func() time.Time
	tracer      trace.Tracer
}

func NewImportService(repo milestone.Repository, audit auditlog.Repository, opts ...Option) *ImportService {
	s := &ImportService{
		repo:        repo,
		audit:       audit,
		txFunc:      runDirect,
		auditTxFunc: runDirect,
		workers:     1,
		layouts:     DefaultDateLayouts,
		now:         time.Now,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// importRun is the state of one Import call. Everything in it is safe to
// share between partition workers; summaries are not.
type importRun struct {
	svc       *ImportService
	runID     string
	mapping   HeaderMapping
	validator *Validator
	emitter   *AuditEmitter
}

// Import streams src into the store. Fatal errors return the partial summary
// along with the error; row-level problems only show up in the summary.
func (s *ImportService) Import(ctx context.Context, src Source, actor auditlog.Actor) (summary *Summary, err error) {
	runID := uuid.NewString()
	summary = newSummary(runID, s.now().UTC(), s.dryRun)
	if logger := loggerFromContext(ctx); logger != nil {
		ctx = composables.WithLogger(ctx, logger.WithField("run_id", runID))
	}

	ctx, span := s.tracer.Start(ctx, "milestone.import", trace.WithAttributes(
		attribute.String("import.run_id", runID),
		attribute.Int("import.workers", s.workers),
		attribute.Bool("import.dry_run", s.dryRun),
	))
	defer func() {
		summary.FinishedAt = s.now().UTC()
		summary.sortByRow()
		recordRun(err)
		span.SetAttributes(
			attribute.Int("import.rows_read", summary.RowsRead),
			attribute.Int("import.rows_inserted", summary.RowsInserted),
			attribute.Int("import.rows_updated", summary.RowsUpdated),
			attribute.Int("import.rows_rejected", summary.RowsRejected),
		)
		fields := summaryFields(summary)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			fields["error"] = err.Error()
			logWithFields(ctx, logrus.ErrorLevel, "milestone.import.failed", fields)
		} else {
			logWithFields(ctx, logrus.InfoLevel, "milestone.import.finished", fields)
		}
		span.End()
	}()

	if err := constants.Validate.Struct(actor); err != nil {
		return summary, errors.Wrap(ErrInvalidActor, err.Error())
	}

	mapping, err := s.readHeader(ctx, src, summary)
	if err != nil {
		return summary, err
	}

	if err := s.repo.Ping(ctx); err != nil {
		// the driver error stays in the chain for callers matching on it
		return summary, errors.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	logWithFields(ctx, logrus.InfoLevel, "milestone.import.started", logrus.Fields{
		"workers":    s.workers,
		"dry_run":    s.dryRun,
		"recognized": mapping.Recognized(),
	})

	run := &importRun{
		svc:       s,
		runID:     runID,
		mapping:   mapping,
		validator: NewValidator(s.repo, s.cache, s.layouts),
		emitter:   NewAuditEmitter(s.audit, actor, s.now),
	}
	if s.workers > 1 {
		return summary, run.partitioned(ctx, src, summary)
	}
	return summary, run.sequential(ctx, src, summary)
}

func (s *ImportService) readHeader(ctx context.Context, src Source, summary *Summary) (HeaderMapping, error) {
	header, err := src.Header()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return HeaderMapping{}, ErrMissingHeader
		}
		return HeaderMapping{}, errors.Wrap(err, "read header")
	}
	if (Record{Fields: header}).Blank() {
		return HeaderMapping{}, ErrMissingHeader
	}

	mapping := NormalizeHeaders(header)
	summary.UnrecognizedHeaders = mapping.Unrecognized
	if mapping.Recognized() == 0 {
		return mapping, errors.Wrapf(ErrUnrecognizedHeaders, "got %s", strings.Join(mapping.Unrecognized, ", "))
	}

	for _, name := range mapping.Unrecognized {
		summary.warn(Warning{Row: 1, Field: name, Code: WarnUnrecognizedHeader, Message: "column ignored"})
	}
	for _, name := range mapping.Duplicates {
		summary.warn(Warning{Row: 1, Field: name, Code: WarnDuplicateHeader, Message: "repeated column ignored, first occurrence wins"})
	}
	if len(mapping.Unrecognized) > 0 {
		logWithFields(ctx, logrus.WarnLevel, "milestone.import.header.unrecognized", logrus.Fields{
			"headers": mapping.Unrecognized,
		})
	}
	return mapping, nil
}

func (r *importRun) sequential(ctx context.Context, src Source, summary *Summary) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read source")
		}
		if err := r.process(ctx, rec, summary); err != nil {
			return err
		}
	}
}

// process handles one record. It returns an error only when the run must stop.
func (r *importRun) process(ctx context.Context, rec Record, summary *Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Err != nil {
		summary.RowsRead++
		r.reject(ctx, summary, Rejection{Row: rec.Row, Code: RejectMalformedLine, Reason: rec.Err.Error()})
		return nil
	}
	if rec.Blank() {
		return nil
	}
	summary.RowsRead++

	start := time.Now()
	defer observeRow(start)

	rowCtx, span := r.svc.tracer.Start(ctx, "milestone.import.row", trace.WithAttributes(attribute.Int("import.row", rec.Row)))
	defer span.End()
	if r.svc.rowTimeout > 0 {
		var cancel context.CancelFunc
		rowCtx, cancel = context.WithTimeout(rowCtx, r.svc.rowTimeout)
		defer cancel()
	}

	m, warnings, rejection, err := r.validator.Validate(rowCtx, r.mapping.Canonical(rec.Fields), rec.Row)
	if err != nil {
		return r.storeFailure(ctx, span, summary, rec.Row, err)
	}
	if rejection != nil {
		span.SetAttributes(attribute.String("import.result", resultRejected))
		r.reject(ctx, summary, *rejection)
		return nil
	}
	summary.warn(warnings...)
	for _, w := range warnings {
		logWithFields(ctx, logrus.DebugLevel, "milestone.import.row.warning", logrus.Fields{
			"row":     w.Row,
			"field":   w.Field,
			"code":    w.Code,
			"message": w.Message,
		})
	}

	result, err := r.apply(rowCtx, m, summary)
	if err != nil {
		return r.storeFailure(ctx, span, summary, rec.Row, err)
	}
	switch result {
	case resultInserted:
		summary.RowsInserted++
	case resultUpdated:
		summary.RowsUpdated++
	case resultUnchanged:
		summary.RowsUnchanged++
	}
	recordRow(result)
	span.SetAttributes(attribute.String("import.result", result))
	return nil
}

// storeFailure rejects the row unless the run itself was cancelled.
func (r *importRun) storeFailure(ctx context.Context, span trace.Span, summary *Summary, row int, err error) error {
	span.RecordError(err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrapf(ctxErr, "row %d", row)
	}
	span.SetStatus(codes.Error, err.Error())
	r.reject(ctx, summary, Rejection{Row: row, Code: RejectStoreError, Reason: err.Error()})
	return nil
}

func (r *importRun) reject(ctx context.Context, summary *Summary, rej Rejection) {
	summary.reject(rej.Row, rej.Code, rej.Reason)
	logWithFields(ctx, logrus.DebugLevel, "milestone.import.row.rejected", logrus.Fields{
		"row":    rej.Row,
		"code":   rej.Code,
		"reason": rej.Reason,
	})
}

// apply upserts m by business key inside one unit of work.
func (r *importRun) apply(ctx context.Context, m milestone.Milestone, summary *Summary) (string, error) {
	var (
		result      string
		auditFailed bool
	)
	err := r.svc.txFunc(ctx, func(ctx context.Context) error {
		existing, err := r.svc.repo.FindMilestone(ctx, m.ProjectID, m.Title)
		if errors.Is(err, milestone.ErrNotFound) {
			id, err := r.svc.repo.Insert(ctx, m)
			if err != nil {
				return err
			}
			result = resultInserted
			auditFailed = !r.emit(ctx, auditlog.ActionImportCreate, id, newCreateDetails(m, r.runID))
			return nil
		}
		if err != nil {
			return err
		}

		changes := milestone.Diff(existing, m)
		if changes.Empty() {
			result = resultUnchanged
			return nil
		}
		if err := r.svc.repo.Update(ctx, existing.ID, changes); err != nil {
			return err
		}
		result = resultUpdated
		auditFailed = !r.emit(ctx, auditlog.ActionImportUpdate, existing.ID, changes.Details())
		return nil
	})
	if err != nil {
		return "", err
	}
	if auditFailed {
		summary.AuditFailures++
		recordAuditFailure()
	}
	return result, nil
}

func (r *importRun) emit(ctx context.Context, action string, entityID int64, details any) bool {
	err := r.svc.auditTxFunc(ctx, func(ctx context.Context) error {
		return r.emitter.Emit(ctx, action, entityID, details)
	})
	if err == nil {
		return true
	}
	logWithFields(ctx, logrus.WarnLevel, "milestone.import.audit.failed", logrus.Fields{
		"action":    action,
		"entity_id": entityID,
		"error":     err.Error(),
	})
	return false
}

func summaryFields(s *Summary) logrus.Fields {
	return logrus.Fields{
		"rows_read":      s.RowsRead,
		"rows_inserted":  s.RowsInserted,
		"rows_updated":   s.RowsUpdated,
		"rows_unchanged": s.RowsUnchanged,
		"rows_rejected":  s.RowsRejected,
		"warnings":       len(s.Warnings),
		"audit_failures": s.AuditFailures,
		"dry_run":        s.DryRun,
	}
}
