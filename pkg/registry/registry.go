package registry

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"
)

// InstanceCreated is delivered to observers when a new instance is started
type InstanceCreated struct {
	ID        uint64
	Initiator peer.ID
	Deadline  int64 // unix seconds
}

// InstanceFinalized is delivered to observers when an instance leaves Active
type InstanceFinalized struct {
	ID     uint64
	Status Status
	Tally  int64
}

// Observer receives registry lifecycle notifications. Delivery is
// best-effort and happens after the state change has been committed.
type Observer interface {
	InstanceCreated(ctx context.Context, ev InstanceCreated)
	InstanceFinalized(ctx context.Context, ev InstanceFinalized)
}

// Registry is an append-only table of voting instances keyed by a
// sequential identifier. Every mutating operation is serialized under a
// single mutex; status transitions out of Active happen only inside
// Vote (when a ballot arrives past the deadline) or Conclude, never on
// read and never from a timer.
type Registry struct {
	instances map[uint64]*Instance
	nextID    uint64
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *Metrics
	observer  Observer
	mu        sync.RWMutex
}

// Option configures a Registry
type Option func(*Registry)

// WithClock sets the clock used for deadline checks
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithObserver sets the lifecycle observer
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// NewRegistry creates an empty voting registry
func NewRegistry(logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		instances: make(map[uint64]*Instance),
		clock:     clock.New(),
		logger:    logger,
		metrics:   NewMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start allocates the next identifier and creates a new active instance.
// The two payloads are stored verbatim and never interpreted. Identifiers
// are assigned 0, 1, 2, ... in call order and never reused.
func (r *Registry) Start(ctx context.Context, initiator peer.ID, configData, decisionData []byte) uint64 {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	inst := newInstance(id, initiator, configData, decisionData, r.clock.Now())
	r.instances[id] = inst
	deadline := inst.Deadline
	r.mu.Unlock()

	r.metrics.IncrementInstancesStarted()
	r.logger.Info("Voting instance started",
		zap.Uint64("identifier", id),
		zap.String("initiator", initiator.String()),
		zap.Time("deadline", deadline))

	if r.observer != nil {
		r.observer.InstanceCreated(ctx, InstanceCreated{
			ID:        id,
			Initiator: initiator,
			Deadline:  deadline.Unix(),
		})
	}

	return id
}

// Vote casts an encoded ballot on an instance. Before the deadline the
// ballot is counted, at most once per participant. Strictly after the
// deadline the call still succeeds but the ballot is not counted;
// instead the instance is finalized as a side effect, which is how a
// round leaves Active without anyone calling Conclude.
func (r *Registry) Vote(ctx context.Context, id uint64, participant peer.ID, encodedBallot []byte) error {
	r.mu.Lock()

	inst, ok := r.instances[id]
	if !ok {
		r.mu.Unlock()
		return &StatusError{ID: id, Status: StatusInactive}
	}
	if inst.Status != StatusActive {
		st := inst.Status
		r.mu.Unlock()
		return &StatusError{ID: id, Status: st}
	}

	now := r.clock.Now()
	if !now.After(inst.Deadline) {
		if inst.hasVoted(participant) {
			r.mu.Unlock()
			return &AlreadyVotedError{ID: id, Participant: participant}
		}
		approve, err := DecodeBallot(encodedBallot)
		if err != nil {
			r.mu.Unlock()
			return err
		}
		inst.markVoted(participant)
		inst.Tally += ballotWeight(approve)
		tally := inst.Tally
		r.mu.Unlock()

		r.metrics.IncrementBallotsCounted()
		r.logger.Debug("Ballot counted",
			zap.Uint64("identifier", id),
			zap.String("participant", participant.String()),
			zap.Bool("approve", approve),
			zap.Int64("tally", tally))
		return nil
	}

	// Past the deadline: the ballot is not counted and not validated,
	// the attempt only finalizes the instance.
	ev := r.finalizeLocked(inst)
	r.mu.Unlock()

	r.metrics.IncrementLateBallots()
	r.logger.Info("Late ballot finalized instance",
		zap.Uint64("identifier", id),
		zap.String("participant", participant.String()),
		zap.String("status", string(ev.Status)))
	r.notifyFinalized(ctx, ev)
	return nil
}

// Conclude explicitly finalizes an instance whose deadline has passed
func (r *Registry) Conclude(ctx context.Context, id uint64) error {
	r.mu.Lock()

	inst, ok := r.instances[id]
	if !ok {
		r.mu.Unlock()
		return &StatusError{ID: id, Status: StatusInactive}
	}
	if inst.Status != StatusActive {
		st := inst.Status
		r.mu.Unlock()
		return &StatusError{ID: id, Status: st}
	}
	if !r.clock.Now().After(inst.Deadline) {
		deadline := inst.Deadline
		r.mu.Unlock()
		return &DeadlineNotPassedError{ID: id, Deadline: deadline}
	}

	ev := r.finalizeLocked(inst)
	r.mu.Unlock()

	r.metrics.IncrementConcludes()
	r.logger.Info("Voting instance concluded",
		zap.Uint64("identifier", id),
		zap.String("status", string(ev.Status)),
		zap.Int64("tally", ev.Tally))
	r.notifyFinalized(ctx, ev)
	return nil
}

// Status returns the stored status of an instance. It never finalizes
// and never checks the deadline: an expired instance that nobody has
// touched still reads Active. Unknown identifiers read Inactive.
func (r *Registry) Status(id uint64) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[id]
	if !ok {
		return StatusInactive
	}
	return inst.Status
}

// Result returns the current signed tally. During Active it is a
// snapshot in progress; after finalization it is frozen. Unknown
// identifiers read zero.
func (r *Registry) Result(id uint64) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[id]
	if !ok {
		return 0
	}
	return inst.Tally
}

// Snapshot returns a copy of an instance's state
func (r *Registry) Snapshot(id uint64) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[id]
	if !ok {
		return Snapshot{}, false
	}
	return inst.snapshot(), true
}

// ExpiredInstances lists identifiers that are still Active but whose
// deadline has passed, i.e. rounds eligible for Conclude.
func (r *Registry) ExpiredInstances() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.clock.Now()
	var ids []uint64
	for id, inst := range r.instances {
		if inst.Status == StatusActive && now.After(inst.Deadline) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of instances ever started
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// GetStats returns current registry statistics
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	active := 0
	for _, inst := range r.instances {
		if inst.Status == StatusActive {
			active++
		}
	}
	r.mu.RUnlock()

	return r.metrics.GetStats(active)
}

func (r *Registry) finalizeLocked(inst *Instance) InstanceFinalized {
	status := inst.finalize()
	return InstanceFinalized{
		ID:     inst.ID,
		Status: status,
		Tally:  inst.Tally,
	}
}

func (r *Registry) notifyFinalized(ctx context.Context, ev InstanceFinalized) {
	r.metrics.RecordFinalization(ev.Status)
	if r.observer != nil {
		r.observer.InstanceFinalized(ctx, ev)
	}
}
