// Package state holds view state that mirrors server-confirmed results.
// Local values are only ever replaced by what the server returned.
package state

import (
	"context"
	"sync"

	"github.com/and161185/agora/internal/errs"
	"github.com/and161185/agora/internal/model"
	"go.uber.org/zap"
)

// Joiner is the membership subset Memberships needs.
type Joiner interface {
	Join(ctx context.Context, communityID int64) (model.JoinResult, error)
	Leave(ctx context.Context, communityID int64) (model.LeaveResult, error)
}

// Memberships tracks is_member per community and refuses a second join or
// leave for a community while one is in flight.
type Memberships struct {
	api Joiner
	log *zap.Logger

	mu       sync.Mutex
	member   map[int64]bool
	inFlight map[int64]bool
}

func NewMemberships(api Joiner, log *zap.Logger) *Memberships {
	if log == nil {
		log = zap.NewNop()
	}
	return &Memberships{api: api, log: log, member: map[int64]bool{}, inFlight: map[int64]bool{}}
}

// Seed overwrites known membership flags, e.g. from community details.
func (m *Memberships) Seed(flags map[int64]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range flags {
		m.member[id] = v
	}
}

func (m *Memberships) IsMember(communityID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.member[communityID]
}

// Pending reports whether a join or leave for communityID is in flight,
// so a long-lived caller can disable its join/leave control meanwhile.
func (m *Memberships) Pending(communityID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight[communityID]
}

// Join requests membership. On failure the previous state is kept.
func (m *Memberships) Join(ctx context.Context, communityID int64) error {
	return m.run(communityID, func() (bool, error) {
		_, err := m.api.Join(ctx, communityID)
		return true, err
	})
}

// Leave drops membership. On failure the previous state is kept.
func (m *Memberships) Leave(ctx context.Context, communityID int64) error {
	return m.run(communityID, func() (bool, error) {
		_, err := m.api.Leave(ctx, communityID)
		return false, err
	})
}

func (m *Memberships) run(communityID int64, call func() (bool, error)) error {
	m.mu.Lock()
	if m.inFlight[communityID] {
		m.mu.Unlock()
		return errs.ErrInFlight
	}
	m.inFlight[communityID] = true
	m.mu.Unlock()

	confirmed, err := call()

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, communityID)
	if err != nil {
		m.log.Debug("membership change failed", zap.Int64("community_id", communityID), zap.Error(err))
		return err
	}
	m.member[communityID] = confirmed
	return nil
}
