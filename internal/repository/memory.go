package repository

import (
	"context"
	"sync"
	"time"

	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/model"
)

// MemoryStore is a mutex-guarded in-memory implementation of the progress
// store. It backs local/demo runs without Postgres and doubles as the test
// store. The per-store mutex gives the same single-writer-per-user guarantee
// the Postgres row lock provides.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]time.Time
	progress map[string]*model.Progress
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]time.Time),
		progress: make(map[string]*model.Progress),
	}
}

func (s *MemoryStore) GetOrCreateProgress(ctx context.Context, userID string) (*model.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.ensureLocked(userID)
	return clone(p), nil
}

func (s *MemoryStore) MutateProgress(ctx context.Context, userID string, mutate func(p *model.Progress) (bool, error)) (*model.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.ensureLocked(userID)
	p := clone(current)
	write, err := mutate(p)
	if err != nil {
		return nil, err
	}
	if write {
		s.progress[userID] = clone(p)
	}
	return p, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &model.User{
		ID:        userID,
		CreatedAt: createdAt,
	}, nil
}

func (s *MemoryStore) ensureLocked(userID string) *model.Progress {
	if p, ok := s.progress[userID]; ok {
		return p
	}
	now := time.Now().UTC()
	s.users[userID] = now
	p := &model.Progress{
		UserID:    userID,
		UpdatedAt: now,
	}
	s.progress[userID] = p
	return p
}

func clone(p *model.Progress) *model.Progress {
	c := *p
	if p.LastScanAt != nil {
		t := *p.LastScanAt
		c.LastScanAt = &t
	}
	return &c
}
