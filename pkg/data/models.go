package data

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Error variables for consistent error handling
var (
	ErrInvalidID     = errors.New("invalid identifier")
	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidTime   = errors.New("invalid timestamp")
)

// Statuses stored in the instance archive. They mirror the registry's
// stored statuses; "inactive" is an absence marker and never persisted.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// InstanceRecord is the archived form of a voting instance. The
// in-memory registry stays authoritative; records exist for indexers
// and for inspecting history after restarts.
type InstanceRecord struct {
	Identifier   uint64     `json:"identifier"`
	Status       string     `json:"status"`
	Initiator    string     `json:"initiator"`
	Deadline     time.Time  `json:"deadline"`
	Tally        int64      `json:"tally"`
	ConfigData   []byte     `json:"config_data,omitempty"`
	DecisionData []byte     `json:"decision_data,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	FinalizedAt  *time.Time `json:"finalized_at,omitempty"`
}

// Validate checks if the instance record is valid
func (r *InstanceRecord) Validate() error {
	switch r.Status {
	case StatusActive, StatusCompleted, StatusFailed:
	default:
		return ErrInvalidStatus
	}
	if r.Initiator == "" {
		return errors.New("initiator cannot be empty")
	}
	if r.Deadline.IsZero() || r.CreatedAt.IsZero() {
		return ErrInvalidTime
	}
	if !r.Deadline.After(r.CreatedAt) {
		return errors.New("deadline must be after creation time")
	}
	return nil
}

// Finalized reports whether the record carries a terminal status
func (r *InstanceRecord) Finalized() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// BallotRecord is one counted ballot. Rejected and late ballots are
// never archived, so the records for an instance reproduce its tally.
type BallotRecord struct {
	ID          string    `json:"id"`
	Identifier  uint64    `json:"identifier"`
	Participant string    `json:"participant"`
	Approve     bool      `json:"approve"`
	CastAt      time.Time `json:"cast_at"`
}

// NewBallotRecord creates a new BallotRecord
func NewBallotRecord(identifier uint64, participant string, approve bool, castAt time.Time) (*BallotRecord, error) {
	if participant == "" {
		return nil, errors.New("participant cannot be empty")
	}
	if castAt.IsZero() {
		return nil, ErrInvalidTime
	}

	return &BallotRecord{
		ID:          uuid.New().String(),
		Identifier:  identifier,
		Participant: participant,
		Approve:     approve,
		CastAt:      castAt,
	}, nil
}

// Validate checks if the ballot record is valid
func (b *BallotRecord) Validate() error {
	if b.ID == "" {
		return ErrInvalidID
	}
	if b.Participant == "" {
		return errors.New("participant cannot be empty")
	}
	if b.CastAt.IsZero() {
		return ErrInvalidTime
	}
	return nil
}

// Weight returns the ballot's tally contribution
func (b *BallotRecord) Weight() int64 {
	if b.Approve {
		return 1
	}
	return -1
}
