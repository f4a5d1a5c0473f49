package backendservice

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
	backenddb "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
)

var testNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo *FakeRepository, queue ArchiveQueue) *BackendService {
	cfg := DefaultConfig()
	cfg.PublicURL = "https://arena.example/"
	s := NewBackendService(repo, &FakeDB{}, queue, FakeTokens{}, cfg, observability.NopTelemetry())
	s.now = func() time.Time { return testNow }
	return s
}

func TestBackendService_LookupUser(t *testing.T) {
	tests := []struct {
		name      string
		wallet    string
		setupRepo func(*FakeRepository)
		want      backenddto.UserProfile
		wantErr   error
	}{
		{
			name:   "known wallet",
			wallet: "0xabc",
			setupRepo: func(r *FakeRepository) {
				r.GetPlayerFunc = func(_ context.Context, _ bun.IDB, wallet string) (*backenddb.Player, error) {
					return &backenddb.Player{Wallet: wallet, Username: "neo", IsStaked: true, CurrentRoom: "Room_7", DurationSeconds: 120}, nil
				}
			},
			want: backenddto.UserProfile{Username: "neo", IsStaked: true, CurrentRoom: "Room_7", Duration: 120},
		},
		{
			name:   "missing duration falls back to default",
			wallet: " 0xabc ",
			setupRepo: func(r *FakeRepository) {
				r.GetPlayerFunc = func(_ context.Context, _ bun.IDB, wallet string) (*backenddb.Player, error) {
					if wallet != "0xabc" {
						return nil, backenddb.ErrNotFound
					}
					return &backenddb.Player{Wallet: wallet, Username: "neo"}, nil
				}
			},
			want: backenddto.UserProfile{Username: "neo", Duration: 300},
		},
		{name: "unknown wallet", wallet: "0xdef", wantErr: ErrUserNotFound},
		{name: "empty wallet", wallet: "  ", wantErr: ErrInvalidWallet},
		{
			name:   "repository failure",
			wallet: "0xabc",
			setupRepo: func(r *FakeRepository) {
				r.GetPlayerFunc = func(context.Context, bun.IDB, string) (*backenddb.Player, error) {
					return nil, errors.New("connection refused")
				}
			},
			wantErr: errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &FakeRepository{}
			if tt.setupRepo != nil {
				tt.setupRepo(repo)
			}
			got, err := newTestService(repo, nil).LookupUser(context.Background(), tt.wallet)
			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, ErrUserNotFound) || errors.Is(tt.wantErr, ErrInvalidWallet) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Contains(t, err.Error(), tt.wantErr.Error())
				}
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.want, got))
		})
	}
}

func TestBackendService_AddLeaderboardEntry(t *testing.T) {
	id := uuid.MustParse("6f1c1c1e-2b7a-4c7f-9a55-3f0e2d8d0a11")

	tests := []struct {
		name      string
		entry     backenddto.LeaderboardEntry
		setupRepo func(*FakeRepository)
		want      backenddto.LeaderboardEntry
		wantErr   error
		wantTrace []string
	}{
		{
			name:  "stores entry and player",
			entry: backenddto.LeaderboardEntry{WalletAddress: "0xabc", Kills: 3, Score: 25, RoomID: "Room_1", Username: "neo"},
			setupRepo: func(r *FakeRepository) {
				r.InsertLeaderboardEntryFunc = func(_ context.Context, _ bun.IDB, e *backenddb.LeaderboardEntry) error {
					e.ID = id
					return nil
				}
			},
			want: backenddto.LeaderboardEntry{
				ID: id.String(), WalletAddress: "0xabc", Kills: 3, Score: 25, RoomID: "Room_1", Username: "neo", CreatedAt: testNow,
			},
			wantTrace: []string{"UpsertPlayer", "InsertLeaderboardEntry"},
		},
		{
			name:    "negative score",
			entry:   backenddto.LeaderboardEntry{WalletAddress: "0xabc", Score: -1, RoomID: "Room_1"},
			wantErr: ErrInvalidEntry,
		},
		{
			name:    "missing room",
			entry:   backenddto.LeaderboardEntry{WalletAddress: "0xabc"},
			wantErr: ErrInvalidEntry,
		},
		{
			name:    "missing wallet",
			entry:   backenddto.LeaderboardEntry{RoomID: "Room_1"},
			wantErr: ErrInvalidWallet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &FakeRepository{}
			if tt.setupRepo != nil {
				tt.setupRepo(repo)
			}
			got, err := newTestService(repo, nil).AddLeaderboardEntry(context.Background(), tt.entry)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, repo.Trace())
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.want, got))
			assert.Empty(t, cmp.Diff(tt.wantTrace, repo.Trace()))
		})
	}
}

func TestBackendService_SetStakeAndToken(t *testing.T) {
	ctx := context.Background()
	var staked []string
	repo := &FakeRepository{SetStakeFunc: func(_ context.Context, _ bun.IDB, wallet string, on bool) error {
		if on {
			staked = append(staked, wallet)
		}
		return nil
	}}
	s := newTestService(repo, nil)

	got, err := s.SetStake(ctx, backenddto.StakeRequest{WalletAddress: "0xabc", IsStaked: true})
	require.NoError(t, err)
	assert.Equal(t, backenddto.StakeRequest{WalletAddress: "0xabc", IsStaked: true}, got)
	assert.Equal(t, []string{"0xabc"}, staked)

	tok, err := s.IssueToken(ctx, backenddto.TokenRequest{WalletAddress: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, "token-0xabc", tok.Token)

	s.tokens = nil
	_, err = s.IssueToken(ctx, backenddto.TokenRequest{WalletAddress: "0xabc"})
	assert.ErrorIs(t, err, ErrTokensOff)
}

func sampleTrace() backenddto.TraceRequest {
	return backenddto.TraceRequest{
		RoomID: "Room_1",
		Data: backenddto.TraceData{
			Title: "Arena match in Room_1",
			Participants: []backenddto.Participant{
				{Name: "alice", Score: 25, Kills: 3, BotKills: 3},
				{Name: "bob", Score: 10, Kills: 1},
			},
			Schedule: backenddto.Schedule{Start: testNow.Add(-5 * time.Minute), End: testNow, DurationSeconds: 300},
		},
	}
}

func TestBackendService_SubmitTrace(t *testing.T) {
	digest, raw, err := TraceDigest(sampleTrace().Data)
	require.NoError(t, err)
	require.Len(t, digest, 64)

	tests := []struct {
		name        string
		req         backenddto.TraceRequest
		exists      bool
		queueErr    error
		wantErr     error
		wantQueued  []string
		wantReceipt backenddto.TraceReceipt
	}{
		{
			name:        "new trace is queued",
			req:         sampleTrace(),
			wantQueued:  []string{digest},
			wantReceipt: backenddto.TraceReceipt{Digest: digest, URL: "https://arena.example/trace/" + digest},
		},
		{
			name:        "resubmission is not queued again",
			req:         sampleTrace(),
			exists:      true,
			wantReceipt: backenddto.TraceReceipt{Digest: digest, URL: "https://arena.example/trace/" + digest},
		},
		{
			name:     "queue failure",
			req:      sampleTrace(),
			queueErr: errors.New("river unavailable"),
			wantErr:  errors.New("river unavailable"),
		},
		{
			name:    "no participants",
			req:     backenddto.TraceRequest{RoomID: "Room_1"},
			wantErr: ErrInvalidTrace,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stored *backenddb.Trace
			repo := &FakeRepository{InsertTraceFunc: func(_ context.Context, _ bun.IDB, trace *backenddb.Trace) (bool, error) {
				stored = trace
				return !tt.exists, nil
			}}
			queue := &FakeQueue{Err: tt.queueErr}

			got, err := newTestService(repo, queue).SubmitTrace(context.Background(), tt.req)
			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, ErrInvalidTrace) {
					assert.ErrorIs(t, err, ErrInvalidTrace)
				} else {
					assert.Contains(t, err.Error(), tt.wantErr.Error())
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantReceipt, got)
			assert.Equal(t, tt.wantQueued, queue.Digests)
			require.NotNil(t, stored)
			assert.JSONEq(t, string(raw), string(stored.Data))
			assert.Equal(t, backenddb.TraceStatusPending, stored.Status)
		})
	}
}

func TestBackendService_SubmitTraceWithoutQueueArchivesInline(t *testing.T) {
	var archived []string
	repo := &FakeRepository{
		GetTraceFunc: func(_ context.Context, _ bun.IDB, digest string) (*backenddb.Trace, error) {
			return &backenddb.Trace{Digest: digest, RoomID: "Room_1", Status: backenddb.TraceStatusPending}, nil
		},
		MarkTraceArchivedFunc: func(_ context.Context, _ bun.IDB, digest string, at time.Time) error {
			assert.Equal(t, testNow, at)
			archived = append(archived, digest)
			return nil
		},
	}
	receipt, err := newTestService(repo, nil).SubmitTrace(context.Background(), sampleTrace())
	require.NoError(t, err)
	assert.Equal(t, []string{receipt.Digest}, archived)
}

func TestBackendService_ArchiveTrace(t *testing.T) {
	tests := []struct {
		name      string
		status    string
		missing   bool
		wantErr   error
		wantTrace []string
	}{
		{name: "pending trace", status: backenddb.TraceStatusPending, wantTrace: []string{"GetTrace", "MarkTraceArchived"}},
		{name: "already archived", status: backenddb.TraceStatusArchived, wantTrace: []string{"GetTrace"}},
		{name: "unknown digest", missing: true, wantErr: ErrTraceNotFound, wantTrace: []string{"GetTrace"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &FakeRepository{}
			if !tt.missing {
				repo.GetTraceFunc = func(_ context.Context, _ bun.IDB, digest string) (*backenddb.Trace, error) {
					return &backenddb.Trace{Digest: digest, Status: tt.status}, nil
				}
			}
			err := newTestService(repo, nil).ArchiveTrace(context.Background(), "abc")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Empty(t, cmp.Diff(tt.wantTrace, repo.Trace()))
		})
	}
}

func TestBackendService_Trace(t *testing.T) {
	req := sampleTrace()
	_, raw, err := TraceDigest(req.Data)
	require.NoError(t, err)
	archivedAt := testNow.Add(time.Minute)

	repo := &FakeRepository{GetTraceFunc: func(_ context.Context, _ bun.IDB, digest string) (*backenddb.Trace, error) {
		return &backenddb.Trace{Digest: digest, RoomID: "Room_1", Data: json.RawMessage(raw), Status: backenddb.TraceStatusArchived, ArchivedAt: archivedAt}, nil
	}}
	got, err := newTestService(repo, nil).Trace(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Room_1", got.RoomID)
	assert.Equal(t, backenddb.TraceStatusArchived, got.Status)
	require.NotNil(t, got.ArchivedAt)
	assert.Equal(t, archivedAt, *got.ArchivedAt)
	assert.Empty(t, cmp.Diff(req.Data, got.Data))
}
