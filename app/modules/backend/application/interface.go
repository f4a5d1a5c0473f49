package backendservice

import (
	"context"

	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
)

// Service is the arena backend API.
type Service interface {
	LookupUser(ctx context.Context, wallet string) (backenddto.UserProfile, error)
	AddLeaderboardEntry(ctx context.Context, entry backenddto.LeaderboardEntry) (backenddto.LeaderboardEntry, error)
	SetStake(ctx context.Context, req backenddto.StakeRequest) (backenddto.StakeRequest, error)
	IssueToken(ctx context.Context, req backenddto.TokenRequest) (backenddto.TokenResponse, error)
	SubmitTrace(ctx context.Context, req backenddto.TraceRequest) (backenddto.TraceReceipt, error)
	ArchiveTrace(ctx context.Context, digest string) error
	Trace(ctx context.Context, digest string) (backenddto.TraceRecord, error)
	Leaderboard(ctx context.Context, roomID string) ([]backenddto.LeaderboardEntry, error)
	ExportLeaderboard(ctx context.Context, roomID string) ([]byte, error)
	LeaderboardChart(ctx context.Context, roomID string) ([]byte, error)
}

// ArchiveQueue schedules trace archiving.
type ArchiveQueue interface {
	EnqueueArchive(ctx context.Context, digest string) error
}
