package backendservice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
	backendjwt "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/jwt"
	backenddb "github.com/Black-And-White-Club/arena-sync/app/modules/backend/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-sync/internal/observability"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

const serviceName = "backend"

// BackendService implements Service on a repository.
type BackendService struct {
	repo   backenddb.Repository
	db     bun.IDB
	queue  ArchiveQueue
	tokens backendjwt.Provider
	cfg    Config
	tel    observability.Telemetry
	now    func() time.Time
}

var _ Service = (*BackendService)(nil)

// NewBackendService creates the service. queue and tokens may be nil: traces are then archived
// inline and token issuance is disabled.
func NewBackendService(repo backenddb.Repository, db bun.IDB, queue ArchiveQueue, tokens backendjwt.Provider, cfg Config, tel observability.Telemetry) *BackendService {
	return &BackendService{
		repo:   repo,
		db:     db,
		queue:  queue,
		tokens: tokens,
		cfg:    cfg,
		tel:    tel.WithDefaults(),
		now:    time.Now,
	}
}

// SetQueue attaches the archive queue once it exists; the queue's worker needs the service first.
func (s *BackendService) SetQueue(q ArchiveQueue) { s.queue = q }

func normalizeWallet(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return "", ErrInvalidWallet
	}
	return wallet, nil
}

func (s *BackendService) LookupUser(ctx context.Context, wallet string) (backenddto.UserProfile, error) {
	return observability.WithTelemetry(ctx, s.tel, serviceName, "lookup_user", func(ctx context.Context) (backenddto.UserProfile, error) {
		wallet, err := normalizeWallet(wallet)
		if err != nil {
			return backenddto.UserProfile{}, err
		}
		player, err := s.repo.GetPlayer(ctx, s.db, wallet)
		if errors.Is(err, backenddb.ErrNotFound) {
			return backenddto.UserProfile{}, ErrUserNotFound
		}
		if err != nil {
			return backenddto.UserProfile{}, err
		}
		duration := player.DurationSeconds
		if duration <= 0 {
			duration = int(s.cfg.DefaultDuration / time.Second)
		}
		return backenddto.UserProfile{
			Username:    player.Username,
			IsStaked:    player.IsStaked,
			CurrentRoom: player.CurrentRoom,
			Duration:    duration,
		}, nil
	})
}

func (s *BackendService) AddLeaderboardEntry(ctx context.Context, entry backenddto.LeaderboardEntry) (backenddto.LeaderboardEntry, error) {
	return observability.WithTelemetry(ctx, s.tel, serviceName, "add_leaderboard_entry", func(ctx context.Context) (backenddto.LeaderboardEntry, error) {
		wallet, err := normalizeWallet(entry.WalletAddress)
		if err != nil {
			return backenddto.LeaderboardEntry{}, err
		}
		if entry.RoomID == "" || entry.Kills < 0 || entry.Score < 0 {
			return backenddto.LeaderboardEntry{}, ErrInvalidEntry
		}

		var row backenddb.LeaderboardEntry
		err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := s.repo.UpsertPlayer(ctx, tx, &backenddb.Player{Wallet: wallet, Username: entry.Username}); err != nil {
				return err
			}
			row = backenddb.LeaderboardEntry{
				WalletAddress: wallet,
				Username:      entry.Username,
				RoomID:        entry.RoomID,
				Kills:         entry.Kills,
				Score:         entry.Score,
				CreatedAt:     s.now().UTC(),
			}
			return s.repo.InsertLeaderboardEntry(ctx, tx, &row)
		})
		if err != nil {
			return backenddto.LeaderboardEntry{}, err
		}
		s.tel.Logger.InfoContext(ctx, "Leaderboard entry stored",
			attr.String("wallet", wallet),
			attr.Room(entry.RoomID),
			attr.Int("score", entry.Score),
		)
		return toEntryDTO(row), nil
	})
}

func (s *BackendService) SetStake(ctx context.Context, req backenddto.StakeRequest) (backenddto.StakeRequest, error) {
	return observability.WithTelemetry(ctx, s.tel, serviceName, "set_stake", func(ctx context.Context) (backenddto.StakeRequest, error) {
		wallet, err := normalizeWallet(req.WalletAddress)
		if err != nil {
			return backenddto.StakeRequest{}, err
		}
		if err := s.repo.SetStake(ctx, s.db, wallet, req.IsStaked); err != nil {
			return backenddto.StakeRequest{}, err
		}
		return backenddto.StakeRequest{WalletAddress: wallet, IsStaked: req.IsStaked}, nil
	})
}

func (s *BackendService) IssueToken(ctx context.Context, req backenddto.TokenRequest) (backenddto.TokenResponse, error) {
	return observability.WithTelemetry(ctx, s.tel, serviceName, "issue_token", func(ctx context.Context) (backenddto.TokenResponse, error) {
		if s.tokens == nil {
			return backenddto.TokenResponse{}, ErrTokensOff
		}
		wallet, err := normalizeWallet(req.WalletAddress)
		if err != nil {
			return backenddto.TokenResponse{}, err
		}
		token, err := s.tokens.GenerateToken(wallet, s.cfg.TokenTTL)
		if err != nil {
			return backenddto.TokenResponse{}, err
		}
		return backenddto.TokenResponse{Token: token}, nil
	})
}

func (s *BackendService) Leaderboard(ctx context.Context, roomID string) ([]backenddto.LeaderboardEntry, error) {
	return observability.WithTelemetry(ctx, s.tel, serviceName, "leaderboard", func(ctx context.Context) ([]backenddto.LeaderboardEntry, error) {
		rows, err := s.repo.ListLeaderboard(ctx, s.db, roomID)
		if err != nil {
			return nil, err
		}
		out := make([]backenddto.LeaderboardEntry, 0, len(rows))
		for _, row := range rows {
			out = append(out, toEntryDTO(row))
		}
		return out, nil
	})
}

func toEntryDTO(row backenddb.LeaderboardEntry) backenddto.LeaderboardEntry {
	return backenddto.LeaderboardEntry{
		ID:            row.ID.String(),
		WalletAddress: row.WalletAddress,
		Kills:         row.Kills,
		Score:         row.Score,
		RoomID:        row.RoomID,
		Username:      row.Username,
		CreatedAt:     row.CreatedAt,
	}
}
