package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/model"
)

const (
	DefaultTargetStamps = 5
	DefaultScanCooldown = 30 * time.Second
)

// Rules are the two tunables of the loyalty cycle: how many stamps unlock a
// reward and the minimum gap between two accepted scans for one user.
type Rules struct {
	TargetStamps int
	ScanCooldown time.Duration
}

type LoyaltyService struct {
	store ProgressStore
	clock Clock
	rules Rules
}

func NewLoyaltyService(store ProgressStore, clock Clock, rules Rules) *LoyaltyService {
	if rules.TargetStamps <= 0 {
		rules.TargetStamps = DefaultTargetStamps
	}
	if rules.ScanCooldown <= 0 {
		rules.ScanCooldown = DefaultScanCooldown
	}
	if clock == nil {
		clock = SystemClock()
	}

	return &LoyaltyService{
		store: store,
		clock: clock,
		rules: rules,
	}
}

func (s *LoyaltyService) GetStatus(ctx context.Context, userID string) (*model.Status, error) {
	p, err := s.store.GetOrCreateProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	return s.statusOf(p), nil
}

// CanScan is the sole anti-abuse gate: a scan is admitted when no scan was
// ever registered or when at least the configured cooldown has elapsed since
// the last one. Pure, no side effects.
func (s *LoyaltyService) CanScan(p *model.Progress, now time.Time) (bool, time.Duration) {
	if p.LastScanAt == nil {
		return true, 0
	}
	elapsed := now.Sub(*p.LastScanAt)
	if elapsed >= s.rules.ScanCooldown {
		return true, 0
	}
	return false, s.rules.ScanCooldown - elapsed
}

func (s *LoyaltyService) RecordScan(ctx context.Context, userID string) (*model.ScanResult, error) {
	now := s.clock.Now()
	res := &model.ScanResult{}

	p, err := s.store.MutateProgress(ctx, userID, func(p *model.Progress) (bool, error) {
		allowed, wait := s.CanScan(p, now)
		if !allowed {
			res.Accepted = false
			res.WaitSeconds = ceilSeconds(wait)
			res.Message = fmt.Sprintf("Too soon! Try again in %d seconds.", res.WaitSeconds)
			return false, nil
		}

		res.Accepted = true
		scannedAt := now

		if p.RewardAvailable {
			// Stamps never exceed the target. The scan is acknowledged and
			// still consumes the cooldown, so repeated no-op scans are not
			// free of rate limiting.
			p.LastScanAt = &scannedAt
			p.UpdatedAt = now
			res.AlreadyRewarded = true
			res.Message = "You already have a reward waiting. Go redeem it!"
			return true, nil
		}

		p.Stamps++
		if p.Stamps >= s.rules.TargetStamps {
			p.Stamps = s.rules.TargetStamps
			p.RewardAvailable = true
			res.RewardJustUnlocked = true
			res.Message = "Reward unlocked!"
		} else {
			res.Message = fmt.Sprintf("Stamp recorded. %d more to go.", s.rules.TargetStamps-p.Stamps)
		}
		p.LastScanAt = &scannedAt
		p.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record scan: %w", err)
	}

	res.Status = s.statusOf(p)
	return res, nil
}

func (s *LoyaltyService) Redeem(ctx context.Context, userID string) (*model.RedeemResult, error) {
	now := s.clock.Now()
	res := &model.RedeemResult{}

	p, err := s.store.MutateProgress(ctx, userID, func(p *model.Progress) (bool, error) {
		if !p.RewardAvailable {
			res.Redeemed = false
			res.Message = "No reward available yet."
			return false, nil
		}

		// New accrual cycle. The cooldown state is independent of
		// redemption, so last_scan_at stays put.
		p.Stamps = 0
		p.RewardAvailable = false
		p.UpdatedAt = now
		res.Redeemed = true
		res.Message = "Reward redeemed. Enjoy!"
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to redeem reward: %w", err)
	}

	res.Status = s.statusOf(p)
	return res, nil
}

func (s *LoyaltyService) Reset(ctx context.Context, userID string) (*model.Status, error) {
	now := s.clock.Now()

	p, err := s.store.MutateProgress(ctx, userID, func(p *model.Progress) (bool, error) {
		p.Stamps = 0
		p.RewardAvailable = false
		p.LastScanAt = nil
		p.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reset progress: %w", err)
	}

	return s.statusOf(p), nil
}

// GetCard is the administrative read: identity plus current status. Unlike
// GetStatus it does not register unknown users, so the store's not-found
// error passes through.
func (s *LoyaltyService) GetCard(ctx context.Context, userID string) (*model.User, *model.Status, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}

	p, err := s.store.GetOrCreateProgress(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get progress: %w", err)
	}

	return u, s.statusOf(p), nil
}

func (s *LoyaltyService) statusOf(p *model.Progress) *model.Status {
	remaining := s.rules.TargetStamps - p.Stamps
	if remaining < 0 {
		remaining = 0
	}

	return &model.Status{
		UserID:          p.UserID,
		Stamps:          p.Stamps,
		Target:          s.rules.TargetStamps,
		Remaining:       remaining,
		RewardAvailable: p.RewardAvailable,
		LastScanAt:      p.LastScanAt,
	}
}

func ceilSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
