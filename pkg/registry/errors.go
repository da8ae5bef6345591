package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// ErrMalformedBallot is returned when an encoded ballot cannot be decoded
var ErrMalformedBallot = errors.New("malformed ballot encoding")

// StatusError reports an operation against an instance that is not active.
// The status is the stored one: Inactive when the identifier was never
// started, Completed or Failed after finalization.
type StatusError struct {
	ID     uint64
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("voting instance %d is not active: status %s", e.ID, e.Status)
}

// AlreadyVotedError reports a second pre-deadline ballot from the same participant
type AlreadyVotedError struct {
	ID          uint64
	Participant peer.ID
}

func (e *AlreadyVotedError) Error() string {
	return fmt.Sprintf("participant %s already voted on instance %d", e.Participant, e.ID)
}

// DeadlineNotPassedError reports an explicit conclude before the deadline expired
type DeadlineNotPassedError struct {
	ID       uint64
	Deadline time.Time
}

func (e *DeadlineNotPassedError) Error() string {
	return fmt.Sprintf("deadline for instance %d has not passed (deadline %s)", e.ID, e.Deadline.Format(time.RFC3339))
}
