package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInstanceRecord(identifier uint64, status string) *InstanceRecord {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &InstanceRecord{
		Identifier: identifier,
		Status:     status,
		Initiator:  "alice",
		Deadline:   created.Add(432000 * time.Second),
		CreatedAt:  created,
	}
}

func TestMemoryRepository_Instances(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	record := testInstanceRecord(0, StatusActive)
	record.ConfigData = []byte("config")
	require.NoError(t, repo.SaveInstance(ctx, record))

	t.Run("Get", func(t *testing.T) {
		got, err := repo.GetInstance(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, got.Status)
		assert.Equal(t, []byte("config"), got.ConfigData)
		assert.Nil(t, got.FinalizedAt)
	})

	t.Run("Duplicate", func(t *testing.T) {
		err := repo.SaveInstance(ctx, testInstanceRecord(0, StatusActive))
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetInstance(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Finalize", func(t *testing.T) {
		finalizedAt := record.Deadline.Add(time.Hour)
		require.NoError(t, repo.FinalizeInstance(ctx, 0, StatusCompleted, 3, finalizedAt))

		got, err := repo.GetInstance(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, got.Status)
		assert.Equal(t, int64(3), got.Tally)
		require.NotNil(t, got.FinalizedAt)
		assert.Equal(t, finalizedAt, *got.FinalizedAt)
	})

	t.Run("FinalizeTwice", func(t *testing.T) {
		err := repo.FinalizeInstance(ctx, 0, StatusFailed, 0, time.Now())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("FinalizeNonTerminalStatus", func(t *testing.T) {
		err := repo.FinalizeInstance(ctx, 0, StatusActive, 0, time.Now())
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})
}

func TestMemoryRepository_ListInstances(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for i := uint64(0); i < 4; i++ {
		record := testInstanceRecord(i, StatusActive)
		record.CreatedAt = record.CreatedAt.Add(time.Duration(i) * time.Hour)
		record.Deadline = record.CreatedAt.Add(432000 * time.Second)
		require.NoError(t, repo.SaveInstance(ctx, record))
	}
	require.NoError(t, repo.FinalizeInstance(ctx, 1, StatusFailed, 0, time.Now()))

	t.Run("ByStatus", func(t *testing.T) {
		active, err := repo.ListInstances(ctx, InstanceFilter{Status: StatusActive})
		require.NoError(t, err)
		assert.Len(t, active, 3)

		failed, err := repo.ListInstances(ctx, InstanceFilter{Status: StatusFailed})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, uint64(1), failed[0].Identifier)
	})

	t.Run("OrderedByIdentifier", func(t *testing.T) {
		all, err := repo.ListInstances(ctx, InstanceFilter{})
		require.NoError(t, err)
		require.Len(t, all, 4)
		for i, record := range all {
			assert.Equal(t, uint64(i), record.Identifier)
		}
	})

	t.Run("LimitOffset", func(t *testing.T) {
		page, err := repo.ListInstances(ctx, InstanceFilter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, uint64(1), page[0].Identifier)
		assert.Equal(t, uint64(2), page[1].Identifier)
	})

	t.Run("DeadlineBefore", func(t *testing.T) {
		cutoff := testInstanceRecord(0, StatusActive).Deadline.Add(90 * time.Minute)
		expired, err := repo.ListInstances(ctx, InstanceFilter{DeadlineBefore: &cutoff})
		require.NoError(t, err)
		assert.Len(t, expired, 2)
	})
}

func TestMemoryRepository_Ballots(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.SaveInstance(ctx, testInstanceRecord(0, StatusActive)))

	first, err := NewBallotRecord(0, "alice", true, now)
	require.NoError(t, err)
	second, err := NewBallotRecord(0, "bob", false, now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, repo.SaveBallot(ctx, first))
	require.NoError(t, repo.SaveBallot(ctx, second))

	t.Run("ByInstance", func(t *testing.T) {
		ballots, err := repo.GetBallotsByInstance(ctx, 0)
		require.NoError(t, err)
		require.Len(t, ballots, 2)
		assert.Equal(t, "alice", ballots[0].Participant)
		assert.Equal(t, "bob", ballots[1].Participant)

		var tally int64
		for _, b := range ballots {
			tally += b.Weight()
		}
		assert.Equal(t, int64(0), tally)
	})

	t.Run("ByParticipant", func(t *testing.T) {
		ballots, err := repo.GetBallotsByParticipant(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, ballots, 1)
		assert.True(t, ballots[0].Approve)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		dup := *first
		assert.ErrorIs(t, repo.SaveBallot(ctx, &dup), ErrDuplicate)
	})
}

func TestInstanceRecord_Validate(t *testing.T) {
	valid := testInstanceRecord(0, StatusActive)
	require.NoError(t, valid.Validate())

	badStatus := testInstanceRecord(0, "pending")
	assert.ErrorIs(t, badStatus.Validate(), ErrInvalidStatus)

	noInitiator := testInstanceRecord(0, StatusActive)
	noInitiator.Initiator = ""
	assert.Error(t, noInitiator.Validate())

	badDeadline := testInstanceRecord(0, StatusActive)
	badDeadline.Deadline = badDeadline.CreatedAt
	assert.Error(t, badDeadline.Validate())
}

func TestNewBallotRecord(t *testing.T) {
	ballot, err := NewBallotRecord(3, "carol", false, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, ballot.ID)
	assert.Equal(t, int64(-1), ballot.Weight())

	_, err = NewBallotRecord(3, "", true, time.Now())
	assert.Error(t, err)

	_, err = NewBallotRecord(3, "carol", true, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidTime)
}
