package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Increments(t *testing.T) {
	metrics := NewMetrics()
	metrics.IncrementInstancesStarted()
	metrics.IncrementBallotsCounted()
	metrics.IncrementBallotsCounted()
	metrics.IncrementLateBallots()
	metrics.IncrementConcludes()

	stats := metrics.GetStats(1)
	assert.Equal(t, int64(1), stats.InstancesStarted)
	assert.Equal(t, int64(2), stats.BallotsCounted)
	assert.Equal(t, int64(1), stats.LateBallots)
	assert.Equal(t, int64(1), stats.Concludes)
	assert.False(t, stats.LastUpdate.IsZero())
}

func TestMetrics_RecordFinalization(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordFinalization(StatusCompleted)
	metrics.RecordFinalization(StatusCompleted)
	metrics.RecordFinalization(StatusFailed)

	stats := metrics.GetStats(0)
	assert.Equal(t, int64(2), stats.InstancesCompleted)
	assert.Equal(t, int64(1), stats.InstancesFailed)
}

func TestMetrics_GetStats(t *testing.T) {
	metrics := NewMetrics()
	metrics.instancesStarted = 10
	metrics.instancesCompleted = 6
	metrics.instancesFailed = 2

	stats := metrics.GetStats(2)
	assert.Equal(t, 2, stats.ActiveInstances)
	assert.Equal(t, int64(10), stats.InstancesStarted)
	assert.Equal(t, int64(6), stats.InstancesCompleted)
	assert.Equal(t, int64(2), stats.InstancesFailed)
}
