// Package jobs runs the periodic maintenance of the store on a cron
// schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Task is one unit of maintenance. Run reports how many rows it touched.
type Task struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (int64, error)
}

type Scheduler struct {
	log     logrus.FieldLogger
	cron    *cron.Cron
	timeout time.Duration
}

func New(log logrus.FieldLogger, timeout time.Duration) *Scheduler {
	l := cronLogger{log: log.WithField("component", "cron")}
	return &Scheduler{
		log:     log,
		timeout: timeout,
		cron: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
	}
}

// Add schedules t. A task with an empty spec is disabled.
func (s *Scheduler) Add(t Task) error {
	log := s.log.WithField("job", t.Name)
	if t.Spec == "" {
		log.Warn("job has no schedule and will not run")
		return nil
	}

	id, err := s.cron.AddFunc(t.Spec, func() { s.run(t) })
	if err != nil {
		return fmt.Errorf("scheduling job[%s] with spec[%s]: %w", t.Name, t.Spec, err)
	}
	log.WithFields(logrus.Fields{"spec": t.Spec, "entry": id}).Info("job scheduled")
	return nil
}

func (s *Scheduler) run(t Task) {
	log := s.log.WithField("job", t.Name)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	n, err := t.Run(ctx)
	if err != nil {
		log.WithError(err).Error("job failed")
		return
	}
	log.WithFields(logrus.Fields{
		"rows":     n,
		"duration": time.Since(start),
	}).Info("job completed")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

// =============================================================================

type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k := fmt.Sprint(kv[i])
		if i+1 < len(kv) {
			f[k] = kv[i+1]
		} else {
			f[k] = "MISSING"
		}
	}
	return f
}
