package connectionservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/Black-And-White-Club/arena-sync/internal/clock"
	"github.com/Black-And-White-Club/arena-sync/internal/observability/attr"
)

// TryReconnect starts the bounded reconnect loop. It reports false when a loop is already running.
func (s *Supervisor) TryReconnect(ctx context.Context) bool {
	s.mu.Lock()
	if s.reconnecting {
		s.mu.Unlock()
		return false
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.reconnecting = true
	s.terminal = false
	s.cancel = cancel
	s.mu.Unlock()

	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		defer cancel()
		err := s.reconnectLoop(loopCtx)

		s.mu.Lock()
		s.reconnecting = false
		s.cancel = nil
		if errors.Is(err, ErrReconnectExhausted) {
			s.terminal = true
		}
		s.mu.Unlock()
	}()
	return true
}

func (s *Supervisor) reconnectLoop(ctx context.Context) error {
	for attempt := 1; attempt <= s.cfg.MaxAttempts && !s.deps.Relay.Connected(); attempt++ {
		s.tel.Logger.InfoContext(ctx, "Attempting to reconnect",
			attr.Int("attempt", attempt),
			attr.Int("max_attempts", s.cfg.MaxAttempts),
		)
		s.status(ctx, fmt.Sprintf("Reconnecting... Attempt %d/%d", attempt, s.cfg.MaxAttempts))
		s.metrics.RecordReconnectAttempt("attempt")
		s.setState(StateConnectingToMaster)
		if err := s.deps.Relay.Connect(ctx); err != nil {
			s.tel.Logger.WarnContext(ctx, "Reconnect attempt failed", attr.Int("attempt", attempt), attr.Error(err))
		}
		if err := clock.Sleep(ctx, s.clk, s.cfg.RetryInterval); err != nil {
			s.tel.Logger.InfoContext(ctx, "Reconnect cancelled")
			return err
		}
	}

	if s.deps.Relay.Connected() {
		s.metrics.RecordReconnectAttempt("success")
		return nil
	}
	s.metrics.RecordReconnectAttempt("exhausted")
	s.setState(StateDisconnected)
	s.tel.Logger.ErrorContext(ctx, "Failed to reconnect after maximum attempts", attr.Int("max_attempts", s.cfg.MaxAttempts))
	s.status(ctx, StatusReconnectFailed)
	return ErrReconnectExhausted
}

// Cancel stops a running reconnect loop.
func (s *Supervisor) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Wait blocks until the running reconnect loop returns.
func (s *Supervisor) Wait() {
	s.loops.Wait()
}
