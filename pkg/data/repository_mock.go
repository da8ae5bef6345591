package data

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository used in tests and when no
// database is configured
type MemoryRepository struct {
	instances map[uint64]*InstanceRecord
	ballots   map[string]*BallotRecord
	mu        sync.RWMutex
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		instances: make(map[uint64]*InstanceRecord),
		ballots:   make(map[string]*BallotRecord),
	}
}

// SaveInstance stores an instance record
func (m *MemoryRepository) SaveInstance(_ context.Context, record *InstanceRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.instances[record.Identifier]; exists {
		return ErrDuplicate
	}
	clone := *record
	m.instances[record.Identifier] = &clone
	return nil
}

// GetInstance retrieves an instance record by identifier
func (m *MemoryRepository) GetInstance(_ context.Context, identifier uint64) (*InstanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.instances[identifier]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *record
	return &clone, nil
}

// ListInstances retrieves instance records matching the filter
func (m *MemoryRepository) ListInstances(_ context.Context, filter InstanceFilter) ([]*InstanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*InstanceRecord, 0)
	for _, record := range m.instances {
		if filter.Status != "" && record.Status != filter.Status {
			continue
		}
		if filter.Initiator != "" && record.Initiator != filter.Initiator {
			continue
		}
		if filter.CreatedAfter != nil && record.CreatedAt.Before(*filter.CreatedAfter) {
			continue
		}
		if filter.CreatedBefore != nil && record.CreatedAt.After(*filter.CreatedBefore) {
			continue
		}
		if filter.DeadlineBefore != nil && !record.Deadline.Before(*filter.DeadlineBefore) {
			continue
		}
		clone := *record
		matched = append(matched, &clone)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Identifier < matched[j].Identifier
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*InstanceRecord{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

// FinalizeInstance records a terminal status for an active instance
func (m *MemoryRepository) FinalizeInstance(_ context.Context, identifier uint64, status string, tally int64, finalizedAt time.Time) error {
	if status != StatusCompleted && status != StatusFailed {
		return ErrInvalidStatus
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.instances[identifier]
	if !ok || record.Status != StatusActive {
		return ErrNotFound
	}

	record.Status = status
	record.Tally = tally
	record.FinalizedAt = &finalizedAt
	return nil
}

// SaveBallot stores a counted ballot
func (m *MemoryRepository) SaveBallot(_ context.Context, ballot *BallotRecord) error {
	if err := ballot.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.ballots[ballot.ID]; exists {
		return ErrDuplicate
	}
	clone := *ballot
	m.ballots[ballot.ID] = &clone
	return nil
}

// GetBallotsByInstance retrieves ballots for an instance
func (m *MemoryRepository) GetBallotsByInstance(_ context.Context, identifier uint64) ([]*BallotRecord, error) {
	return m.filterBallots(func(b *BallotRecord) bool {
		return b.Identifier == identifier
	}), nil
}

// GetBallotsByParticipant retrieves ballots cast by a participant
func (m *MemoryRepository) GetBallotsByParticipant(_ context.Context, participant string) ([]*BallotRecord, error) {
	return m.filterBallots(func(b *BallotRecord) bool {
		return b.Participant == participant
	}), nil
}

func (m *MemoryRepository) filterBallots(match func(*BallotRecord) bool) []*BallotRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ballots := make([]*BallotRecord, 0)
	for _, ballot := range m.ballots {
		if match(ballot) {
			clone := *ballot
			ballots = append(ballots, &clone)
		}
	}

	sort.Slice(ballots, func(i, j int) bool {
		return ballots[i].CastAt.Before(ballots[j].CastAt)
	})

	return ballots
}
