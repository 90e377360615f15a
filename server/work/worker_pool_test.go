package work

import (
	"testing"
	"time"

	"github.com/secureher/secureher/server/models"
	"github.com/stretchr/testify/assert"
)

func TestEnqueueIn(t *testing.T) {
	models.InitializeTestDb()

	workerPool := newWorkerPool(MAX_CONCURRENCY)

	err := workerPool.enqueueIn(1, JobParams{
		Name:    "backup_db",
		Handler: "backup_db",
		Args: map[string]interface{}{
			"db_file": "/tmp/secureher.db",
		},
	})
	assert.Nil(t, err)

	// At some point we need to be able to
	// mock the current time, instead of stopping the
	// process. For now, keep it simple
	time.Sleep(1 * time.Second)

	// Make sure the correct job is created & scheduled to be run
	job, err := models.FirstScheduledJobToBeQueued()
	assert.Nil(t, err)
	assert.Equal(t, "backup_db", job.Name, "The job name should match the expected job name")
	assert.Contains(t, job.Args, "secureher.db", "Should contain the correct arg values")
	assert.Equal(t, models.SCHEDULED_JOB, job.JobStatus.Name, "The job should be in scheduled queue")
}

func TestEnqueueRejectsNamelessJobs(t *testing.T) {
	models.InitializeTestDb()

	workerPool := newWorkerPool(MAX_CONCURRENCY)

	err := workerPool.enqueue(JobParams{Handler: "backup_db"})
	assert.NotNil(t, err)
}

func TestRegisterHandlerRejectsDuplicates(t *testing.T) {
	workerPool := newWorkerPool(MAX_CONCURRENCY)

	noop := func(m map[string]interface{}) error { return nil }
	assert.Nil(t, workerPool.registerHandler("backup_db", noop))
	assert.ErrorIs(t, workerPool.registerHandler("backup_db", noop), ErrDuplicateHandler)
}
