package work

import (
	"fmt"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
	"github.com/secureher/secureher/server/cron"
	"github.com/secureher/secureher/server/models"
)

const MAX_CONCURRENCY = 1

type WorkerPoolAdapter struct {
	cronScheduler *gocron.Scheduler
	pool          *WorkerPool
	requeuers     []*requeuer
}

// NewWorkerAdapter wires a cron scheduler, a worker pool & the requeuers that
// move scheduled/stuck jobs back into the queue. In testMode requeuers poll
// aggressively so tests don't have to wait out production backoffs.
func NewWorkerAdapter(timeZoneArg string, testMode bool) *WorkerPoolAdapter {
	adapter := &WorkerPoolAdapter{
		cronScheduler: cron.NewCronScheduler(timeZoneArg),
		pool:          newWorkerPool(MAX_CONCURRENCY),
	}

	for _, queue := range []string{models.SCHEDULED_JOB, models.IN_PROGRESS_JOB} {
		r, err := newRequeuer(queue, testMode)
		if err != nil {
			logg.Panic(err)
		}
		adapter.requeuers = append(adapter.requeuers, r)
	}

	return adapter
}

// Start starts the cron scheduler, worker pool & requeuers
func (adapter *WorkerPoolAdapter) Start() {
	logg.Info("Starting cron scheduler & worker pool")
	adapter.cronScheduler.StartAsync()
	adapter.pool.start()

	for _, r := range adapter.requeuers {
		r.start()
	}
}

// Stop stops the cron scheduler, worker pool & requeuers
func (adapter *WorkerPoolAdapter) Stop() {
	logg.Info("Stopping cron scheduler & worker pool")
	adapter.cronScheduler.Stop()
	adapter.pool.stop()

	for _, r := range adapter.requeuers {
		r.stop()
	}
}

// Register binds a name to a handler.
func (adapter *WorkerPoolAdapter) Register(name string, handler Handler) error {
	return adapter.pool.registerHandler(name, handler)
}

// Perform sends a new job to the queue, now - to be executed as soon as a worker is available
func (adapter *WorkerPoolAdapter) Perform(job JobParams) error {
	logg.Infof("Enqueuing job: %v", job.Name)

	err := adapter.pool.enqueue(job)
	if errors.Is(err, models.ErrDuplicateJob) {
		logg.Warnf("Duplicate job already in queue for: %v", job.Name)
		return nil
	}

	if err != nil {
		return fmt.Errorf("error enqueuing job: %v, %v", job.Name, err)
	}

	return nil
}

// PerformIn schedules a job to be enqueued 'secondsInFuture' seconds from now
func (adapter *WorkerPoolAdapter) PerformIn(secondsInFuture int64, job JobParams) error {
	logg.Infof("Scheduling job: %v to run in %vs", job.Name, secondsInFuture)
	return adapter.pool.enqueueIn(secondsInFuture, job)
}

// PeriodicallyPerform adds a job to the queue (to be executed)
// periodically, based on the 'cronExpression' expression provided
func (adapter *WorkerPoolAdapter) PeriodicallyPerform(cronExpression string, job JobParams) error {
	_, err := adapter.cronScheduler.Cron(cronExpression).Tag(job.Name).
		Do(
			func(job JobParams) {
				err := adapter.Perform(job)
				if err != nil {
					logg.Error(err)
				}
			},
			job,
		)
	return err
}

func (adapter *WorkerPoolAdapter) RemovePeriodicJob(jobName string) {
	adapter.cronScheduler.RemoveByTag(jobName)
}
