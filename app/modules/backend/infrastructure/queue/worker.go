package tracequeue

import (
	"context"
	"errors"
	"log/slog"

	"github.com/riverqueue/river"

	backendservice "github.com/Black-And-White-Club/arena-sync/app/modules/backend/application"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

// Archiver finishes a stored trace.
type Archiver interface {
	ArchiveTrace(ctx context.Context, digest string) error
}

// TraceArchiveWorker runs TraceArchiveJob.
type TraceArchiveWorker struct {
	river.WorkerDefaults[TraceArchiveJob]
	archiver Archiver
	logger   *slog.Logger
}

func NewTraceArchiveWorker(logger *slog.Logger, archiver Archiver) *TraceArchiveWorker {
	return &TraceArchiveWorker{archiver: archiver, logger: logger}
}

// Work archives the job's trace. A digest that no longer exists cancels the job instead of
// retrying it.
func (w *TraceArchiveWorker) Work(ctx context.Context, job *river.Job[TraceArchiveJob]) error {
	logger := w.logger.With(
		attr.String("digest", job.Args.Digest),
		attr.Int64("job_id", job.ID),
		attr.Int("attempt", job.Attempt),
	)

	err := w.archiver.ArchiveTrace(ctx, job.Args.Digest)
	switch {
	case err == nil:
		logger.InfoContext(ctx, "Trace archive job completed")
		return nil
	case errors.Is(err, backendservice.ErrTraceNotFound):
		logger.WarnContext(ctx, "Trace vanished before archiving, cancelling job")
		return river.JobCancel(err)
	default:
		logger.ErrorContext(ctx, "Trace archive job failed", attr.Error(err))
		return err
	}
}
