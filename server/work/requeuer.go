package work

import (
	"errors"
	"fmt"
	"time"

	"github.com/secureher/secureher/colors"
	"github.com/secureher/secureher/server/models"
	"gorm.io/gorm"
)

// How long a job may sit in-progress before it's considered stuck.
const stuckAfterMinutes = 10

var supportedQueues = map[string]bool{models.IN_PROGRESS_JOB: true, models.SCHEDULED_JOB: true}

type requeuer struct {
	fromQueue    string
	stopChan     chan struct{}
	sleepBackoff time.Duration
}

func newRequeuer(fromQueue string, testMode bool) (*requeuer, error) {
	if !supportedQueues[fromQueue] {
		return nil, fmt.Errorf("%v is not a supported queue, must be in %v", fromQueue, supportedQueues)
	}

	sleepBackoff := 5 * time.Second
	if testMode {
		sleepBackoff = 100 * time.Millisecond
	}

	return &requeuer{
		fromQueue:    fromQueue,
		stopChan:     make(chan struct{}),
		sleepBackoff: sleepBackoff,
	}, nil
}

// start starts the requeuer loop that pulls jobs that are due(scheduled) or
// stuck(stayed too long in-progress) & moves them back into the queue
func (r *requeuer) start() {
	go r.loop()
}

func (r *requeuer) stop() {
	r.stopChan <- struct{}{}
}

func (r *requeuer) loop() {
	var job *models.Job
	var err error

	rateLimiter := time.NewTicker(DefaultTickerDuration)
	defer rateLimiter.Stop()

	logg.Infof("Starting %s job requeuer", r.fromQueue)
	for {
		select {
		case <-r.stopChan:
			logg.Infof("Stopping %s job requeuer", r.fromQueue)
			return
		case <-rateLimiter.C:
			job, err = r.nextJob()

			// If no job found, sleep for 'sleepBackoff'
			if errors.Is(err, gorm.ErrRecordNotFound) {
				rateLimiter.Reset(r.sleepBackoff)
				continue
			}

			if err != nil {
				r.logError(err)
				rateLimiter.Reset(TickerDurationOnError)
				continue
			}

			r.requeue(job)
			rateLimiter.Reset(DefaultTickerDuration)
		}
	}
}

func (r *requeuer) nextJob() (*models.Job, error) {
	if r.fromQueue == models.IN_PROGRESS_JOB {
		return models.LastJobLastUpdated(stuckAfterMinutes, models.IN_PROGRESS_JOB)
	}
	return models.FirstScheduledJobToBeQueued()
}

func (r *requeuer) requeue(job *models.Job) {
	jobStatus, err := models.FindJobStatus(models.ENQUEUED_JOB)
	if err != nil {
		logg.Error(err)
		return
	}

	err = job.Update(map[string]interface{}{
		"claimed":       false,
		"job_status_id": jobStatus.ID,
	})
	if err != nil {
		r.logError(err)
		return
	}

	r.logInfof("job with id=%v requeued", job.ID)
}

func (r *requeuer) logInfof(template string, args ...interface{}) {
	prefix := colors.Yellow(fmt.Sprintf("[%s job requeuer] ", r.fromQueue))
	logg.Infof(prefix+template, args...)
}

func (r *requeuer) logError(args ...interface{}) {
	prefix := colors.Red(fmt.Sprintf("[%s job requeuer] ", r.fromQueue))
	logg.Error(append([]interface{}{prefix}, args...)...)
}
