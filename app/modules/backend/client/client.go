// Package backendclient is the HTTP client peers use to reach the arena backend.
package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	backenddto "github.com/Black-And-White-Club/arena-sync/app/modules/backend/dto"
	roomservice "github.com/Black-And-White-Club/arena-sync/app/modules/room/application"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

// DefaultDuration is the game length reported when the backend cannot be reached.
const DefaultDuration = 300

// Config points the client at a backend.
type Config struct {
	BaseURL string
	// DisplayName is reported as the username when the backend cannot be reached.
	DisplayName string
	Timeout     time.Duration
	// MaxTries bounds attempts for writes. Lookups are tried once.
	MaxTries uint
	// RetryInterval is the first backoff delay between write attempts.
	RetryInterval time.Duration
}

// StatusError is a non-2xx backend response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend responded %d: %s", e.Code, e.Message)
}

// Client talks to the backend. Every failure is returned, but LookupUser also returns usable
// defaults so callers can carry on.
type Client struct {
	baseURL string
	cfg     Config
	http    *http.Client
	logger  *slog.Logger

	mu    sync.RWMutex
	token string
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// Defaults is the profile used when the backend has nothing for wallet.
func (c *Client) Defaults(wallet string) backenddto.UserProfile {
	return backenddto.UserProfile{
		Username:    c.cfg.DisplayName,
		CurrentRoom: roomservice.WalletRoomName(wallet),
		Duration:    DefaultDuration,
	}
}

func (c *Client) LookupUser(ctx context.Context, wallet string) (backenddto.UserProfile, error) {
	defaults := c.Defaults(wallet)
	var profile backenddto.UserProfile
	if err := c.do(ctx, http.MethodGet, "/user/"+url.PathEscape(wallet), nil, &profile); err != nil {
		c.logger.WarnContext(ctx, "Backend user lookup failed, using defaults",
			attr.String("wallet", wallet),
			attr.Error(err),
		)
		return defaults, err
	}
	if profile.Username == "" {
		profile.Username = defaults.Username
	}
	if profile.CurrentRoom == "" {
		profile.CurrentRoom = defaults.CurrentRoom
	}
	if profile.Duration <= 0 {
		profile.Duration = defaults.Duration
	}
	return profile, nil
}

func (c *Client) AddLeaderboardEntry(ctx context.Context, entry backenddto.LeaderboardEntry) (backenddto.LeaderboardEntry, error) {
	return retry(ctx, c, func() (backenddto.LeaderboardEntry, error) {
		var stored backenddto.LeaderboardEntry
		err := c.do(ctx, http.MethodPost, "/leaderboard/add", entry, &stored)
		return stored, err
	})
}

func (c *Client) SubmitTrace(ctx context.Context, req backenddto.TraceRequest) (backenddto.TraceReceipt, error) {
	return retry(ctx, c, func() (backenddto.TraceReceipt, error) {
		var receipt backenddto.TraceReceipt
		err := c.do(ctx, http.MethodPost, "/trace", req, &receipt)
		return receipt, err
	})
}

func (c *Client) SetStake(ctx context.Context, wallet string, staked bool) error {
	_, err := retry(ctx, c, func() (backenddto.StakeRequest, error) {
		var resp backenddto.StakeRequest
		err := c.do(ctx, http.MethodPost, "/stake", backenddto.StakeRequest{WalletAddress: wallet, IsStaked: staked}, &resp)
		return resp, err
	})
	return err
}

// Authenticate fetches a session token for wallet and sends it with every later request.
func (c *Client) Authenticate(ctx context.Context, wallet string) error {
	var resp backenddto.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/token", backenddto.TokenRequest{WalletAddress: wallet}, &resp); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return nil
}

// retry repeats op with exponential backoff. Client errors are not retried.
func retry[T any](ctx context.Context, c *Client, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInterval
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		var status *StatusError
		if errors.As(err, &status) && status.Code < http.StatusInternalServerError && status.Code != http.StatusTooManyRequests {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.cfg.MaxTries),
	)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e backenddto.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
