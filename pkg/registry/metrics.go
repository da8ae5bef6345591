package registry

import (
	"sync"
	"time"
)

// Metrics tracks registry activity
type Metrics struct {
	instancesStarted   int64
	instancesCompleted int64
	instancesFailed    int64
	ballotsCounted     int64
	lateBallots        int64
	concludes          int64
	lastUpdate         time.Time
	mu                 sync.RWMutex
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncrementInstancesStarted increments the instancesStarted counter
func (m *Metrics) IncrementInstancesStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instancesStarted++
	m.lastUpdate = time.Now()
}

// IncrementBallotsCounted increments the ballotsCounted counter
func (m *Metrics) IncrementBallotsCounted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ballotsCounted++
	m.lastUpdate = time.Now()
}

// IncrementLateBallots increments the lateBallots counter
func (m *Metrics) IncrementLateBallots() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lateBallots++
	m.lastUpdate = time.Now()
}

// IncrementConcludes increments the concludes counter
func (m *Metrics) IncrementConcludes() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.concludes++
	m.lastUpdate = time.Now()
}

// RecordFinalization records the terminal status of a finalized instance
func (m *Metrics) RecordFinalization(status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch status {
	case StatusCompleted:
		m.instancesCompleted++
	case StatusFailed:
		m.instancesFailed++
	}
	m.lastUpdate = time.Now()
}

// Stats is a point-in-time snapshot of registry activity
type Stats struct {
	ActiveInstances    int
	InstancesStarted   int64
	InstancesCompleted int64
	InstancesFailed    int64
	BallotsCounted     int64
	LateBallots        int64
	Concludes          int64
	LastUpdate         time.Time
}

// GetStats returns the current registry statistics
func (m *Metrics) GetStats(activeInstances int) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Stats{
		ActiveInstances:    activeInstances,
		InstancesStarted:   m.instancesStarted,
		InstancesCompleted: m.instancesCompleted,
		InstancesFailed:    m.instancesFailed,
		BallotsCounted:     m.ballotsCounted,
		LateBallots:        m.lateBallots,
		Concludes:          m.concludes,
		LastUpdate:         m.lastUpdate,
	}
}
