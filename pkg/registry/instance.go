package registry

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Status represents the lifecycle state of a voting instance
type Status string

const (
	// StatusInactive is reported for identifiers that were never started.
	// It is never stored in the table.
	StatusInactive  Status = "inactive"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// VotingDuration is the fixed lifetime of every voting instance,
// measured from its creation time. 432000 seconds, five days.
const VotingDuration = 432000 * time.Second

// Instance is a single voting round owned by the registry
type Instance struct {
	ID           uint64
	Status       Status
	Initiator    peer.ID
	Deadline     time.Time
	Tally        int64
	ConfigData   []byte
	DecisionData []byte
	CreatedAt    time.Time

	voted map[peer.ID]struct{}
}

func newInstance(id uint64, initiator peer.ID, configData, decisionData []byte, createdAt time.Time) *Instance {
	return &Instance{
		ID:           id,
		Status:       StatusActive,
		Initiator:    initiator,
		Deadline:     createdAt.Add(VotingDuration),
		ConfigData:   cloneBytes(configData),
		DecisionData: cloneBytes(decisionData),
		CreatedAt:    createdAt,
		voted:        make(map[peer.ID]struct{}),
	}
}

func (in *Instance) hasVoted(p peer.ID) bool {
	_, ok := in.voted[p]
	return ok
}

func (in *Instance) markVoted(p peer.ID) {
	in.voted[p] = struct{}{}
}

// finalize moves the instance out of Active. A nonzero tally means the
// round produced a signed outcome; a tie is the only way to fail.
func (in *Instance) finalize() Status {
	if in.Tally != 0 {
		in.Status = StatusCompleted
	} else {
		in.Status = StatusFailed
	}
	return in.Status
}

// Snapshot is a read-only copy of an instance's state
type Snapshot struct {
	ID           uint64
	Status       Status
	Initiator    peer.ID
	Deadline     time.Time
	Tally        int64
	ConfigData   []byte
	DecisionData []byte
	CreatedAt    time.Time
	VoterCount   int
}

func (in *Instance) snapshot() Snapshot {
	return Snapshot{
		ID:           in.ID,
		Status:       in.Status,
		Initiator:    in.Initiator,
		Deadline:     in.Deadline,
		Tally:        in.Tally,
		ConfigData:   cloneBytes(in.ConfigData),
		DecisionData: cloneBytes(in.DecisionData),
		CreatedAt:    in.CreatedAt,
		VoterCount:   len(in.voted),
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
