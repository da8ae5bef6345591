// Package keeper periodically concludes voting instances whose deadline
// has passed. The registry finalizes only on write, so without traffic
// an expired instance would stay Active forever; the keeper is the
// ordinary external caller that eventually pokes it. It holds no
// special access and goes through the same Conclude path as everyone
// else.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"voting_registry/pkg/registry"
)

// Target is the surface the keeper sweeps. Both the registry and the
// voting service satisfy it.
type Target interface {
	ExpiredInstances() []uint64
	Conclude(ctx context.Context, identifier uint64) error
}

// Keeper schedules conclude sweeps with a cron expression
type Keeper struct {
	cron     *cron.Cron
	target   Target
	schedule string
	logger   *zap.Logger
	metrics  *keeperMetrics

	mu      sync.Mutex
	entryID cron.EntryID
	running bool
}

// KeeperStats is a point-in-time snapshot of sweep activity
type KeeperStats struct {
	Sweeps             int64
	InstancesConcluded int64
	Errors             int64
	LastSweep          time.Time
}

type keeperMetrics struct {
	stats KeeperStats
	mu    sync.RWMutex
}

func (m *keeperMetrics) record(concluded, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Sweeps++
	m.stats.InstancesConcluded += int64(concluded)
	m.stats.Errors += int64(failed)
	m.stats.LastSweep = time.Now()
}

func (m *keeperMetrics) snapshot() KeeperStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// NewKeeper creates a keeper sweeping the target on the given cron
// schedule (six-field spec with seconds)
func NewKeeper(target Target, schedule string, logger *zap.Logger) *Keeper {
	return &Keeper{
		cron:     cron.New(cron.WithSeconds()),
		target:   target,
		schedule: schedule,
		logger:   logger,
		metrics:  &keeperMetrics{},
	}
}

// Start begins the sweep schedule
func (k *Keeper) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.running {
		return fmt.Errorf("keeper already running")
	}

	entryID, err := k.cron.AddFunc(k.schedule, func() {
		k.Sweep(context.Background())
	})
	if err != nil {
		return fmt.Errorf("scheduling sweep: %w", err)
	}
	k.entryID = entryID

	k.cron.Start()
	k.running = true
	k.logger.Info("Keeper started", zap.String("schedule", k.schedule))
	return nil
}

// Stop halts the sweep schedule, waiting for a running sweep to finish
func (k *Keeper) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.running {
		return
	}

	<-k.cron.Stop().Done()
	k.running = false
	k.logger.Info("Keeper stopped")
}

// Sweep concludes every expired instance once. Exported so operators
// can trigger a sweep outside the schedule.
func (k *Keeper) Sweep(ctx context.Context) {
	ids := k.target.ExpiredInstances()
	if len(ids) == 0 {
		k.metrics.record(0, 0)
		return
	}

	concluded, failed := 0, 0
	for _, id := range ids {
		err := k.target.Conclude(ctx, id)
		switch {
		case err == nil:
			concluded++
		case isAlreadyFinalized(err):
			// Someone beat the keeper to it; nothing to do
		default:
			failed++
			k.logger.Warn("Concluding instance failed",
				zap.Uint64("identifier", id),
				zap.Error(err))
		}
	}

	k.metrics.record(concluded, failed)
	k.logger.Info("Sweep finished",
		zap.Int("expired", len(ids)),
		zap.Int("concluded", concluded),
		zap.Int("failed", failed))
}

// Metrics returns current sweep metrics
func (k *Keeper) Metrics() KeeperStats {
	return k.metrics.snapshot()
}

func isAlreadyFinalized(err error) bool {
	var stErr *registry.StatusError
	return errors.As(err, &stErr)
}
