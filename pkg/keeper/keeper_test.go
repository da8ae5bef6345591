package keeper

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voting_registry/pkg/data"
	"voting_registry/pkg/registry"
	"voting_registry/pkg/service"
)

func TestKeeper_SweepConcludesExpiredInstances(t *testing.T) {
	mock := clock.NewMock()
	reg := registry.NewRegistry(zap.NewNop(), registry.WithClock(mock))
	k := NewKeeper(reg, "0 * * * * *", zap.NewNop())
	ctx := context.Background()

	voted := reg.Start(ctx, peer.ID("alice"), nil, nil)
	require.NoError(t, reg.Vote(ctx, voted, peer.ID("alice"), registry.EncodeBallot(true)))
	tied := reg.Start(ctx, peer.ID("bob"), nil, nil)

	mock.Add(registry.VotingDuration / 2)
	open := reg.Start(ctx, peer.ID("carol"), nil, nil)

	mock.Add(registry.VotingDuration/2 + time.Second)
	k.Sweep(ctx)

	assert.Equal(t, registry.StatusCompleted, reg.Status(voted))
	assert.Equal(t, registry.StatusFailed, reg.Status(tied))
	assert.Equal(t, registry.StatusActive, reg.Status(open))

	metrics := k.Metrics()
	assert.Equal(t, int64(1), metrics.Sweeps)
	assert.Equal(t, int64(2), metrics.InstancesConcluded)
	assert.Equal(t, int64(0), metrics.Errors)
}

func TestKeeper_SweepWithNothingExpired(t *testing.T) {
	mock := clock.NewMock()
	reg := registry.NewRegistry(zap.NewNop(), registry.WithClock(mock))
	k := NewKeeper(reg, "0 * * * * *", zap.NewNop())

	reg.Start(context.Background(), peer.ID("alice"), nil, nil)
	k.Sweep(context.Background())

	metrics := k.Metrics()
	assert.Equal(t, int64(1), metrics.Sweeps)
	assert.Equal(t, int64(0), metrics.InstancesConcluded)
}

func TestKeeper_SweepThroughService(t *testing.T) {
	mock := clock.NewMock()
	repo := data.NewMemoryRepository()
	reg := registry.NewRegistry(zap.NewNop(), registry.WithClock(mock))
	svc := service.NewVotingService(reg, repo, zap.NewNop(), service.WithClock(mock))
	k := NewKeeper(svc, "0 * * * * *", zap.NewNop())
	ctx := context.Background()

	id, err := svc.StartInstance(ctx, peer.ID("alice"), nil, nil)
	require.NoError(t, err)
	require.NoError(t, svc.CastBallot(ctx, service.SignedBallot{
		Identifier:  id,
		Participant: peer.ID("alice"),
		Encoded:     registry.EncodeBallot(true),
	}))

	mock.Add(registry.VotingDuration + time.Second)
	k.Sweep(ctx)

	// The sweep finalized the registry and the archive together
	assert.Equal(t, registry.StatusCompleted, svc.Status(id))
	record, err := repo.GetInstance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, data.StatusCompleted, record.Status)
	assert.Equal(t, int64(1), record.Tally)
}

func TestKeeper_StartStop(t *testing.T) {
	mock := clock.NewMock()
	reg := registry.NewRegistry(zap.NewNop(), registry.WithClock(mock))
	k := NewKeeper(reg, "* * * * * *", zap.NewNop())

	require.NoError(t, k.Start())
	assert.Error(t, k.Start())
	k.Stop()

	// Stop is idempotent
	k.Stop()
}

func TestKeeper_BadSchedule(t *testing.T) {
	reg := registry.NewRegistry(zap.NewNop())
	k := NewKeeper(reg, "not a schedule", zap.NewNop())
	assert.Error(t, k.Start())
}
