package service

import (
	"context"
	"time"

	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/model"
)

// ProgressStore is the persistence contract the loyalty service consumes.
// GetOrCreateProgress is an idempotent get-or-create: a user's first
// reference registers a zeroed row. MutateProgress must run the closure
// against the current row as an atomic read-modify-write, persisting only
// when the closure reports a write.
type ProgressStore interface {
	GetOrCreateProgress(ctx context.Context, userID string) (*model.Progress, error)
	MutateProgress(ctx context.Context, userID string, mutate func(p *model.Progress) (bool, error)) (*model.Progress, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

type LoyaltyServiceI interface {
	GetStatus(ctx context.Context, userID string) (*model.Status, error)
	RecordScan(ctx context.Context, userID string) (*model.ScanResult, error)
	Redeem(ctx context.Context, userID string) (*model.RedeemResult, error)
	Reset(ctx context.Context, userID string) (*model.Status, error)
	GetCard(ctx context.Context, userID string) (*model.User, *model.Status, error)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func SystemClock() Clock {
	return systemClock{}
}
