package model

import "time"

// Progress is the per-user loyalty state as stored: one row per user,
// created on first reference and mutated in place.
type Progress struct {
	UserID          string
	Stamps          int
	RewardAvailable bool
	LastScanAt      *time.Time
	UpdatedAt       time.Time
}

// Status is the read view handed to the presentation layer.
type Status struct {
	UserID          string
	Stamps          int
	Target          int
	Remaining       int
	RewardAvailable bool
	LastScanAt      *time.Time
}

// ScanResult reports the outcome of a scan attempt. A cooldown rejection
// is a normal outcome, not an error: Accepted is false and WaitSeconds
// says how long until the next scan would be admitted.
type ScanResult struct {
	Accepted           bool
	WaitSeconds        int
	RewardJustUnlocked bool
	AlreadyRewarded    bool
	Message            string
	Status             *Status
}

// RedeemResult reports the outcome of a redeem attempt. Redeemed is false
// when no reward was available; the status is returned unchanged.
type RedeemResult struct {
	Redeemed bool
	Message  string
	Status   *Status
}
