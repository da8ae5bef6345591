// Package service orchestrates the in-memory registry with the
// persistent instance archive and ballot authentication. The registry
// remains the source of truth; the archive mirrors it for indexers.
package service

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"voting_registry/pkg/data"
	"voting_registry/pkg/registry"
	"voting_registry/pkg/security"
)

// ErrInvalidSignature rejects a signed ballot that fails verification
var ErrInvalidSignature = fmt.Errorf("invalid ballot signature")

// SignedBallot is a ballot submission at the service boundary
type SignedBallot struct {
	Identifier  uint64
	Participant peer.ID
	Encoded     []byte
	Signature   []byte
	PublicKey   []byte
}

// VotingService exposes the registry operations with archival side effects
type VotingService struct {
	registry *registry.Registry
	repo     data.Repository
	crypto   *security.CryptoManager
	clock    clock.Clock
	logger   *zap.Logger

	requireSigned bool
}

// Option configures a VotingService
type Option func(*VotingService)

// WithClock sets the clock used for archived timestamps
func WithClock(c clock.Clock) Option {
	return func(s *VotingService) { s.clock = c }
}

// WithBallotVerification enables ed25519 signature checks on ballots
func WithBallotVerification(cm *security.CryptoManager) Option {
	return func(s *VotingService) {
		s.crypto = cm
		s.requireSigned = true
	}
}

// NewVotingService creates a service around a registry and an archive
func NewVotingService(reg *registry.Registry, repo data.Repository, logger *zap.Logger, opts ...Option) *VotingService {
	s := &VotingService{
		registry: reg,
		repo:     repo,
		clock:    clock.New(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartInstance starts a new voting instance and archives its record
func (s *VotingService) StartInstance(ctx context.Context, initiator peer.ID, configData, decisionData []byte) (uint64, error) {
	id := s.registry.Start(ctx, initiator, configData, decisionData)

	snap, ok := s.registry.Snapshot(id)
	if !ok {
		// Instances are never removed, so a missing snapshot right
		// after Start cannot happen
		return id, fmt.Errorf("instance %d missing after start", id)
	}

	record := &data.InstanceRecord{
		Identifier:   snap.ID,
		Status:       string(snap.Status),
		Initiator:    initiator.String(),
		Deadline:     snap.Deadline,
		Tally:        snap.Tally,
		ConfigData:   snap.ConfigData,
		DecisionData: snap.DecisionData,
		CreatedAt:    snap.CreatedAt,
	}

	if err := s.repo.SaveInstance(ctx, record); err != nil {
		return id, fmt.Errorf("archiving instance %d: %w", id, err)
	}

	return id, nil
}

// CastBallot applies a ballot to the registry. Counted ballots are
// archived; a late ballot that finalizes the instance archives the
// outcome instead.
func (s *VotingService) CastBallot(ctx context.Context, ballot SignedBallot) error {
	if s.requireSigned {
		if !s.crypto.VerifyBallot(ballot.Identifier, ballot.Participant, ballot.Encoded, ballot.Signature, ballot.PublicKey) {
			return ErrInvalidSignature
		}
	}

	wasActive := s.registry.Status(ballot.Identifier) == registry.StatusActive

	if err := s.registry.Vote(ctx, ballot.Identifier, ballot.Participant, ballot.Encoded); err != nil {
		return err
	}

	status := s.registry.Status(ballot.Identifier)
	if wasActive && status != registry.StatusActive {
		// Late ballot: not counted, the call finalized the instance
		s.archiveFinalization(ctx, ballot.Identifier, status)
		return nil
	}

	approve, err := registry.DecodeBallot(ballot.Encoded)
	if err != nil {
		// The registry accepted the ballot, so this cannot happen
		return fmt.Errorf("decoding counted ballot: %w", err)
	}

	record, err := data.NewBallotRecord(ballot.Identifier, ballot.Participant.String(), approve, s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("building ballot record: %w", err)
	}
	if err := s.repo.SaveBallot(ctx, record); err != nil {
		return fmt.Errorf("archiving ballot: %w", err)
	}

	return nil
}

// Conclude explicitly finalizes an expired instance and archives the outcome
func (s *VotingService) Conclude(ctx context.Context, identifier uint64) error {
	if err := s.registry.Conclude(ctx, identifier); err != nil {
		return err
	}

	s.archiveFinalization(ctx, identifier, s.registry.Status(identifier))
	return nil
}

// ExpiredInstances lists instances eligible for Conclude
func (s *VotingService) ExpiredInstances() []uint64 {
	return s.registry.ExpiredInstances()
}

// Status reads the stored status of an instance
func (s *VotingService) Status(identifier uint64) registry.Status {
	return s.registry.Status(identifier)
}

// Result reads the current signed tally of an instance
func (s *VotingService) Result(identifier uint64) int64 {
	return s.registry.Result(identifier)
}

// History retrieves archived instance records
func (s *VotingService) History(ctx context.Context, filter data.InstanceFilter) ([]*data.InstanceRecord, error) {
	return s.repo.ListInstances(ctx, filter)
}

// Ballots retrieves the archived counted ballots of an instance
func (s *VotingService) Ballots(ctx context.Context, identifier uint64) ([]*data.BallotRecord, error) {
	return s.repo.GetBallotsByInstance(ctx, identifier)
}

func (s *VotingService) archiveFinalization(ctx context.Context, identifier uint64, status registry.Status) {
	tally := s.registry.Result(identifier)
	err := s.repo.FinalizeInstance(ctx, identifier, string(status), tally, s.clock.Now().UTC())
	if err != nil {
		// The registry has already transitioned; the archive catches up
		// on the next sweep or restart
		s.logger.Warn("Archiving finalization failed",
			zap.Uint64("identifier", identifier),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}
