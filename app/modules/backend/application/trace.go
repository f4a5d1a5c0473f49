package backendservice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
	backenddb "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

// TraceDigest is the hex SHA-256 of the trace data's JSON encoding.
func TraceDigest(data backenddto.TraceData) (string, []byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal trace data: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), raw, nil
}

func (s *BackendService) traceURL(digest string) string {
	return strings.TrimRight(s.cfg.PublicURL, "/") + "/trace/" + digest
}

// SubmitTrace stores a trace and schedules it for archiving. Resubmitting the same data returns
// the same receipt without scheduling it again.
func (s *BackendService) SubmitTrace(ctx context.Context, req backenddto.TraceRequest) (backenddto.TraceReceipt, error) {
	return observability.WithTelemetry(ctx, s.tel, serviceName, "submit_trace", func(ctx context.Context) (backenddto.TraceReceipt, error) {
		if req.RoomID == "" || len(req.Data.Participants) == 0 {
			return backenddto.TraceReceipt{}, ErrInvalidTrace
		}
		digest, raw, err := TraceDigest(req.Data)
		if err != nil {
			return backenddto.TraceReceipt{}, err
		}

		created, err := s.repo.InsertTrace(ctx, s.db, &backenddb.Trace{
			Digest:    digest,
			RoomID:    req.RoomID,
			Title:     req.Data.Title,
			Data:      raw,
			Status:    backenddb.TraceStatusPending,
			CreatedAt: s.now().UTC(),
		})
		if err != nil {
			return backenddto.TraceReceipt{}, err
		}
		receipt := backenddto.TraceReceipt{Digest: digest, URL: s.traceURL(digest)}
		if !created {
			s.tel.Logger.InfoContext(ctx, "Trace already stored", attr.String("digest", digest))
			return receipt, nil
		}

		if s.queue == nil {
			return receipt, s.archive(ctx, digest)
		}
		if err := s.queue.EnqueueArchive(ctx, digest); err != nil {
			return backenddto.TraceReceipt{}, fmt.Errorf("failed to schedule trace archive: %w", err)
		}
		s.tel.Logger.InfoContext(ctx, "Trace accepted", attr.String("digest", digest), attr.Room(req.RoomID))
		return receipt, nil
	})
}

// ArchiveTrace marks a stored trace as archived. It is run by the archive queue worker.
func (s *BackendService) ArchiveTrace(ctx context.Context, digest string) error {
	return observability.Run(ctx, s.tel, serviceName, "archive_trace", func(ctx context.Context) error {
		return s.archive(ctx, digest)
	})
}

func (s *BackendService) archive(ctx context.Context, digest string) error {
	trace, err := s.repo.GetTrace(ctx, s.db, digest)
	if errors.Is(err, backenddb.ErrNotFound) {
		return ErrTraceNotFound
	}
	if err != nil {
		return err
	}
	if trace.Status == backenddb.TraceStatusArchived {
		return nil
	}
	if err := s.repo.MarkTraceArchived(ctx, s.db, digest, s.now().UTC()); err != nil {
		return err
	}
	s.tel.Logger.InfoContext(ctx, "Trace archived", attr.String("digest", digest), attr.Room(trace.RoomID))
	return nil
}

func (s *BackendService) Trace(ctx context.Context, digest string) (backenddto.TraceRecord, error) {
	return observability.WithTelemetry(ctx, s.tel, serviceName, "get_trace", func(ctx context.Context) (backenddto.TraceRecord, error) {
		trace, err := s.repo.GetTrace(ctx, s.db, digest)
		if errors.Is(err, backenddb.ErrNotFound) {
			return backenddto.TraceRecord{}, ErrTraceNotFound
		}
		if err != nil {
			return backenddto.TraceRecord{}, err
		}
		record := backenddto.TraceRecord{Digest: trace.Digest, RoomID: trace.RoomID, Status: trace.Status}
		if err := json.Unmarshal(trace.Data, &record.Data); err != nil {
			return backenddto.TraceRecord{}, fmt.Errorf("failed to unmarshal trace %s: %w", digest, err)
		}
		if !trace.ArchivedAt.IsZero() {
			at := trace.ArchivedAt
			record.ArchivedAt = &at
		}
		return record, nil
	})
}
