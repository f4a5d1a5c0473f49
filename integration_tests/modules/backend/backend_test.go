package backend_integration_tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	backendservice "github.com/Black-And-White-Club/arena-sync/app/modules/backend/application"
	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
	tracequeue "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/queue"
	backenddb "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
)

func newService() *backendservice.BackendService {
	return backendservice.NewBackendService(
		backenddb.NewRepository(),
		testEnv.DB,
		nil,
		nil,
		testEnv.Config.BackendServiceConfig(),
		observability.NopTelemetry(),
	)
}

func TestLeaderboardRanking(t *testing.T) {
	testEnv.ResetDatabase(t)
	ctx := context.Background()
	svc := newService()

	entries := []backenddto.LeaderboardEntry{
		{WalletAddress: "0xa", Username: "alice", RoomID: "Room_1", Score: 20, Kills: 2},
		{WalletAddress: "0xb", Username: "bob", RoomID: "Room_1", Score: 30, Kills: 1},
		{WalletAddress: "0xc", Username: "carol", RoomID: "Room_1", Score: 20, Kills: 4},
		{WalletAddress: "0xd", Username: "dave", RoomID: "Room_2", Score: 99, Kills: 9},
	}
	for _, e := range entries {
		stored, err := svc.AddLeaderboardEntry(ctx, e)
		require.NoError(t, err)
		assert.NotEmpty(t, stored.ID)
	}

	got, err := svc.Leaderboard(ctx, "Room_1")
	require.NoError(t, err)
	var names []string
	for _, e := range got {
		names = append(names, e.Username)
	}
	assert.Equal(t, []string{"bob", "carol", "alice"}, names)

	profile, err := svc.LookupUser(ctx, "0xa")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, 300, profile.Duration)

	_, err = svc.LookupUser(ctx, "0xunknown")
	assert.ErrorIs(t, err, backendservice.ErrUserNotFound)
}

func TestStakeCreatesPlayer(t *testing.T) {
	testEnv.ResetDatabase(t)
	ctx := context.Background()
	svc := newService()

	_, err := svc.SetStake(ctx, backenddto.StakeRequest{WalletAddress: "0xs", IsStaked: true})
	require.NoError(t, err)

	profile, err := svc.LookupUser(ctx, "0xs")
	require.NoError(t, err)
	assert.True(t, profile.IsStaked)
}

func sampleTrace(room string) backenddto.TraceRequest {
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	return backenddto.TraceRequest{
		RoomID: room,
		Data: backenddto.TraceData{
			Title:        "Arena match in " + room,
			Participants: []backenddto.Participant{{Name: "alice", Score: 10, Kills: 1}},
			Schedule:     backenddto.Schedule{Start: start, End: start.Add(5 * time.Minute), DurationSeconds: 300},
		},
	}
}

func TestTraceArchivedInline(t *testing.T) {
	testEnv.ResetDatabase(t)
	ctx := context.Background()
	svc := newService()

	receipt, err := svc.SubmitTrace(ctx, sampleTrace("Room_1"))
	require.NoError(t, err)

	again, err := svc.SubmitTrace(ctx, sampleTrace("Room_1"))
	require.NoError(t, err)
	assert.Equal(t, receipt, again)

	record, err := svc.Trace(ctx, receipt.Digest)
	require.NoError(t, err)
	assert.Equal(t, backenddb.TraceStatusArchived, record.Status)
	require.NotNil(t, record.ArchivedAt)
	assert.Equal(t, "Arena match in Room_1", record.Data.Title)
}

func TestTraceArchivedByQueue(t *testing.T) {
	testEnv.ResetDatabase(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := newService()
	queue, err := tracequeue.NewService(ctx, testEnv.Config.Postgres.DSN, svc, observability.NopLogger(), nil)
	require.NoError(t, err)
	svc.SetQueue(queue)
	require.NoError(t, queue.Start(ctx))
	defer func() { _ = queue.Stop(context.Background()) }()

	receipt, err := svc.SubmitTrace(ctx, sampleTrace("Room_Q"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		record, err := svc.Trace(ctx, receipt.Digest)
		return err == nil && record.Status == backenddb.TraceStatusArchived
	}, 20*time.Second, 100*time.Millisecond)
}
