package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// StartAutoRefresh starts the background loop that keeps the stored session
// fresh. It checks immediately and then every tick. Calling it while the
// loop is running is a no-op.
func (a *Auth) StartAutoRefresh() {
	a.arMu.Lock()
	defer a.arMu.Unlock()

	if a.arCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.arCancel = cancel
	a.arDone = done

	a.logger.Debug(ctx, "auto refresh started", "tick", a.tick)
	go a.autoRefreshLoop(ctx, done)
}

// StopAutoRefresh stops the loop and waits for it to exit. Calling it while
// the loop is stopped is a no-op.
func (a *Auth) StopAutoRefresh() {
	a.arMu.Lock()
	cancel, done := a.arCancel, a.arDone
	a.arCancel, a.arDone = nil, nil
	a.arMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	a.logger.Debug(context.Background(), "auto refresh stopped")
}

func (a *Auth) autoRefreshLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	for {
		a.autoRefreshTick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *Auth) autoRefreshTick(ctx context.Context) {
	s, err := a.store.Load(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn(ctx, "auto refresh: load session", "error", err)
		}
		return
	}
	if s == nil || !s.ExpiresWithin(a.now(), a.threshold) {
		return
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.retryInterval

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		_, err := a.refresh(ctx, s)
		if err != nil && !isTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(a.retries),
		backoff.WithNotify(func(err error, next time.Duration) {
			a.logger.Debug(ctx, "auto refresh: retrying", "error", err, "in", next)
		}),
	)
	if err != nil && ctx.Err() == nil {
		a.logger.Warn(ctx, "auto refresh failed", "error", err)
	}
}
