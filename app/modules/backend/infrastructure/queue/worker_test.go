package tracequeue

import (
	"context"
	"errors"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	backendservice "github.com/Black-And-White-Club/arena-sync/app/modules/backend/application"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
)

type fakeArchiver struct {
	digests []string
	err     error
}

func (f *fakeArchiver) ArchiveTrace(_ context.Context, digest string) error {
	f.digests = append(f.digests, digest)
	return f.err
}

func TestTraceArchiveJob_Kind(t *testing.T) {
	assert.Equal(t, "trace_archive", TraceArchiveJob{}.Kind())
}

func TestTraceArchiveWorker_Work(t *testing.T) {
	tests := []struct {
		name       string
		archiveErr error
		wantErr    bool
	}{
		{name: "archives trace"},
		{name: "transient failure is retried", archiveErr: errors.New("connection reset"), wantErr: true},
		{name: "missing trace cancels job", archiveErr: backendservice.ErrTraceNotFound, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archiver := &fakeArchiver{err: tt.archiveErr}
			w := NewTraceArchiveWorker(observability.NopLogger(), archiver)
			job := &river.Job[TraceArchiveJob]{
				JobRow: &rivertype.JobRow{ID: 42, Attempt: 1},
				Args:   TraceArchiveJob{Digest: "abc123"},
			}

			err := w.Work(context.Background(), job)
			assert.Equal(t, []string{"abc123"}, archiver.digests)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.archiveErr)
		})
	}
}
