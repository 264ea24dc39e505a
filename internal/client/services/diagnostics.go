package services

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// LogTransitions subscribes a logger to svc. It only reads snapshots and
// never calls back into the controller.
func LogTransitions(svc AuthService, logger logging.Logger) (unsubscribe func()) {
	prev := svc.Snapshot()
	return svc.Subscribe(func(snap Snapshot) {
		ctx := context.Background()
		if snap.Status != prev.Status {
			args := []any{"from", prev.Status, "to", snap.Status}
			if snap.User != nil {
				args = append(args, "user_id", snap.User.ID)
			}
			logger.Info(ctx, "auth state changed", args...)
		}
		if snap.IsLoading != prev.IsLoading {
			logger.Debug(ctx, "auth loading", "loading", snap.IsLoading)
		}
		prev = snap
	})
}
