package mind

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/lmittmann/tint"
)

// MaintenanceResult reports what a maintenance pass did.
type MaintenanceResult struct {
	Swept     int
	SweepRan  bool
	Compacted int
	Backup    string
}

// Maintain runs the daily-gated retention sweep, compaction and an
// interval-gated backup in one locked pass.
func (s *Store) Maintain() (MaintenanceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res MaintenanceResult
	res.Swept, res.SweepRan = s.sweepLocked(s.now())
	res.Compacted = s.compactLocked()
	if res.SweepRan || res.Compacted > 0 {
		if err := s.saveLocked(); err != nil {
			return res, err
		}
	}
	path, err := s.backupLocked(false)
	if err != nil {
		return res, err
	}
	res.Backup = path
	return res, nil
}

// ScheduleMaintenance registers Maintain on scheduler to run every interval.
// The caller owns the scheduler and starts and stops it.
func (s *Store) ScheduleMaintenance(scheduler gocron.Scheduler, every time.Duration) (gocron.Job, error) {
	if every <= 0 {
		return nil, fmt.Errorf("maintenance interval must be positive, got %s", every)
	}
	job, err := scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			res, err := s.Maintain()
			if err != nil {
				s.log.Error("memory maintenance failed", tint.Err(err))
				return
			}
			s.log.Debug("memory maintenance done",
				"swept", res.Swept, "compacted", res.Compacted, "backup", res.Backup)
		}),
		gocron.WithName("memory-maintenance"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule memory maintenance: %w", err)
	}
	return job, nil
}
