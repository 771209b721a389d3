// Package janitor periodically sweeps the durable chunk store for rows left
// behind by transfers whose Session no longer exists — most commonly after
// an ungraceful process restart drops in-memory session state while the
// chunk store (on disk) survives.
//
// Grounded on the cron.New/AddFunc/Start/Stop scheduling idiom used by the
// retrieval pack's backup-scheduler agent.
package janitor

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ChunkStore is the narrow persistence seam the janitor needs.
type ChunkStore interface {
	DeleteOrphaned(liveIDs map[string]bool) (int64, error)
}

// Janitor runs a single cron-scheduled sweep job.
type Janitor struct {
	cron    *cron.Cron
	chunks  ChunkStore
	liveIDs func() map[string]bool
	logger  zerolog.Logger
}

// New builds a Janitor that, on the given cron schedule, deletes every
// chunk-store row whose transfer_id is not returned by liveIDs.
func New(schedule string, chunks ChunkStore, liveIDs func() map[string]bool, logger zerolog.Logger) (*Janitor, error) {
	j := &Janitor{
		cron:    cron.New(),
		chunks:  chunks,
		liveIDs: liveIDs,
		logger:  logger.With().Str("component", "janitor").Logger(),
	}
	if _, err := j.cron.AddFunc(schedule, j.sweep); err != nil {
		return nil, err
	}
	return j, nil
}

// Start begins running the scheduled sweep in the background.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the scheduler and waits for any in-flight sweep to finish.
func (j *Janitor) Stop() { <-j.cron.Stop().Done() }

// Sweep runs one orphan sweep immediately, outside the cron schedule — used
// by tests.
func (j *Janitor) Sweep() { j.sweep() }

func (j *Janitor) sweep() {
	n, err := j.chunks.DeleteOrphaned(j.liveIDs())
	if err != nil {
		j.logger.Warn().Err(err).Msg("orphan sweep failed")
		return
	}
	if n > 0 {
		j.logger.Info().Int64("rows_deleted", n).Msg("swept orphaned chunk rows")
	}
}
