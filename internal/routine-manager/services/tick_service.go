package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

const (
	minuteTickTag  = "routine_minute_tick"
	retentionTag   = "routine_retention"
	minuteTickCron = "* * * * *"
)

// TickService runs the wall-clock jobs of the routine manager on gocron: the minute-boundary
// re-evaluation and the optional daily retention prune.
type TickService struct {
	Scheduler gocron.Scheduler

	mu     sync.Mutex
	onTick func()
}

func NewTickService(clock clockwork.Clock, loc *time.Location) (*TickService, error) {
	opts := []gocron.SchedulerOption{}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	if loc != nil {
		opts = append(opts, gocron.WithLocation(loc))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &TickService{Scheduler: s}, nil
}

// Start starts the scheduler and registers the minute job calling onTick.
func (s *TickService) Start(onTick func()) error {
	s.mu.Lock()
	s.onTick = onTick
	s.mu.Unlock()

	hlog.Info("TickService starting...")
	s.Scheduler.Start()
	return s.Resume()
}

// Pause removes the minute job. Retention jobs keep running.
func (s *TickService) Pause() {
	s.Scheduler.RemoveByTags(minuteTickTag)
	hlog.Info("TickService: minute tick paused.")
}

// Resume (re)registers the minute job. It is a no-op when the job is already scheduled.
func (s *TickService) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onTick == nil {
		return fmt.Errorf("tick service not started")
	}
	if s.hasJob(minuteTickTag) {
		return nil
	}
	job, err := s.Scheduler.NewJob(
		gocron.CronJob(minuteTickCron, false),
		gocron.NewTask(s.onTick),
		gocron.WithName("minute_tick"),
		gocron.WithTags(minuteTickTag),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule minute tick: %w", err)
	}
	logNextRun("minute tick", job)
	return nil
}

// SchedulePrune runs prune once a day at the given local time.
func (s *TickService) SchedulePrune(hour, minute uint, prune func()) error {
	s.Scheduler.RemoveByTags(retentionTag)
	job, err := s.Scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0))),
		gocron.NewTask(prune),
		gocron.WithName("retention_prune"),
		gocron.WithTags(retentionTag),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule retention prune: %w", err)
	}
	logNextRun("retention prune", job)
	return nil
}

func (s *TickService) Stop() {
	hlog.Info("TickService stopping...")
	if err := s.Scheduler.Shutdown(); err != nil {
		hlog.Errorf("Error shutting down gocron scheduler: %v", err)
	} else {
		hlog.Info("Gocron scheduler shut down successfully.")
	}
}

func (s *TickService) hasJob(tag string) bool {
	for _, j := range s.Scheduler.Jobs() {
		for _, t := range j.Tags() {
			if t == tag {
				return true
			}
		}
	}
	return false
}

func logNextRun(name string, job gocron.Job) {
	next, err := job.NextRun()
	if err != nil {
		hlog.Infof("Scheduled %s. gocron Job ID: %s, Tags: %v, Next Run: (error: %v)", name, job.ID(), job.Tags(), err)
		return
	}
	hlog.Infof("Scheduled %s. gocron Job ID: %s, Tags: %v, Next Run: %s", name, job.ID(), job.Tags(), next.Format(time.RFC3339))
}
