package backendhandlers

import (
	"context"
	"strings"
	"time"

	backendservice "github.com/Black-And-White-Club/arena-sync/app/modules/backend/application"
	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
	backendjwt "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/jwt"
)

// FakeService is a programmable backendservice.Service. Unset funcs return zero values.
type FakeService struct {
	LookupUserFunc          func(ctx context.Context, wallet string) (backenddto.UserProfile, error)
	AddLeaderboardEntryFunc func(ctx context.Context, entry backenddto.LeaderboardEntry) (backenddto.LeaderboardEntry, error)
	SetStakeFunc            func(ctx context.Context, req backenddto.StakeRequest) (backenddto.StakeRequest, error)
	IssueTokenFunc          func(ctx context.Context, req backenddto.TokenRequest) (backenddto.TokenResponse, error)
	SubmitTraceFunc         func(ctx context.Context, req backenddto.TraceRequest) (backenddto.TraceReceipt, error)
	TraceFunc               func(ctx context.Context, digest string) (backenddto.TraceRecord, error)
	LeaderboardFunc         func(ctx context.Context, roomID string) ([]backenddto.LeaderboardEntry, error)
	ExportLeaderboardFunc   func(ctx context.Context, roomID string) ([]byte, error)
	LeaderboardChartFunc    func(ctx context.Context, roomID string) ([]byte, error)
}

var _ backendservice.Service = (*FakeService)(nil)

func (f *FakeService) LookupUser(ctx context.Context, wallet string) (backenddto.UserProfile, error) {
	if f.LookupUserFunc != nil {
		return f.LookupUserFunc(ctx, wallet)
	}
	return backenddto.UserProfile{}, nil
}

func (f *FakeService) AddLeaderboardEntry(ctx context.Context, entry backenddto.LeaderboardEntry) (backenddto.LeaderboardEntry, error) {
	if f.AddLeaderboardEntryFunc != nil {
		return f.AddLeaderboardEntryFunc(ctx, entry)
	}
	return entry, nil
}

func (f *FakeService) SetStake(ctx context.Context, req backenddto.StakeRequest) (backenddto.StakeRequest, error) {
	if f.SetStakeFunc != nil {
		return f.SetStakeFunc(ctx, req)
	}
	return req, nil
}

func (f *FakeService) IssueToken(ctx context.Context, req backenddto.TokenRequest) (backenddto.TokenResponse, error) {
	if f.IssueTokenFunc != nil {
		return f.IssueTokenFunc(ctx, req)
	}
	return backenddto.TokenResponse{}, nil
}

func (f *FakeService) SubmitTrace(ctx context.Context, req backenddto.TraceRequest) (backenddto.TraceReceipt, error) {
	if f.SubmitTraceFunc != nil {
		return f.SubmitTraceFunc(ctx, req)
	}
	return backenddto.TraceReceipt{}, nil
}

func (f *FakeService) ArchiveTrace(context.Context, string) error { return nil }

func (f *FakeService) Trace(ctx context.Context, digest string) (backenddto.TraceRecord, error) {
	if f.TraceFunc != nil {
		return f.TraceFunc(ctx, digest)
	}
	return backenddto.TraceRecord{}, nil
}

func (f *FakeService) Leaderboard(ctx context.Context, roomID string) ([]backenddto.LeaderboardEntry, error) {
	if f.LeaderboardFunc != nil {
		return f.LeaderboardFunc(ctx, roomID)
	}
	return nil, nil
}

func (f *FakeService) ExportLeaderboard(ctx context.Context, roomID string) ([]byte, error) {
	if f.ExportLeaderboardFunc != nil {
		return f.ExportLeaderboardFunc(ctx, roomID)
	}
	return nil, nil
}

func (f *FakeService) LeaderboardChart(ctx context.Context, roomID string) ([]byte, error) {
	if f.LeaderboardChartFunc != nil {
		return f.LeaderboardChartFunc(ctx, roomID)
	}
	return nil, nil
}

// FakeTokens accepts "token-<wallet>".
type FakeTokens struct{}

var _ backendjwt.Provider = FakeTokens{}

func (FakeTokens) GenerateToken(wallet string, _ time.Duration) (string, error) {
	return "token-" + wallet, nil
}

func (FakeTokens) ValidateToken(token string) (string, error) {
	wallet, ok := strings.CutPrefix(token, "token-")
	if !ok || wallet == "" {
		return "", backendjwt.ErrInvalidToken
	}
	return wallet, nil
}
