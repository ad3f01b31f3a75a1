package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/sitefreelance/backend/internal/logging"
)

// Scheduler runs periodic maintenance jobs
type Scheduler struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	mu      sync.Mutex
	running bool
	lastRun map[string]time.Time
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler; jobs are added before Start
func New() *Scheduler {
	logger := logging.NewLogger("scheduler")
	cronLogger := cronLogAdapter{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger:  logger,
		lastRun: make(map[string]time.Time),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers fn under a cron spec such as "@every 1m"
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		fn(s.ctx)

		s.mu.Lock()
		s.lastRun[name] = start
		s.mu.Unlock()

		s.logger.Debug().
			Str("job", name).
			Dur("duration", time.Since(start)).
			Msg("Scheduled job finished")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

// Start begins running the registered jobs
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.cron.Start()

	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
	return nil
}

// Stop stops scheduling and returns a context done once running jobs finish
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.running = false
	s.cancel()

	s.logger.Info().Msg("Scheduler stopped")
	return s.cron.Stop()
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastRun returns when the named job last started
func (s *Scheduler) LastRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastRun[name]
	return t, ok
}

// cronLogAdapter routes cron's logger onto zerolog
type cronLogAdapter struct {
	logger zerolog.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
