package work

import (
	"bytes"
	"testing"
	"time"

	"github.com/secureher/secureher/server/models"
	"github.com/stretchr/testify/assert"
)

func TestPerformIn(t *testing.T) {
	models.InitializeTestDb()

	workerPool := NewWorkerAdapter("UTC", true)
	outputBuffer := new(bytes.Buffer)
	outStr := outputBuffer.String()

	// Register job function
	writeToBuffer := func(m map[string]interface{}) error {
		_, err := outputBuffer.WriteString("backed up")
		return err
	}
	workerPool.Register("write_to_buffer", writeToBuffer)

	err := workerPool.PerformIn(2, JobParams{
		Name:    "write_to_buffer",
		Handler: "write_to_buffer",
		Args:    map[string]interface{}{},
	})
	assert.Nil(t, err)
	assert.Empty(t, outStr, "Expected outputBuffer to be empty")

	// Wait until time to perform job has elapsed
	time.Sleep(3 * time.Second)

	workerPool.Start()

	// Wait for job to be processed
	time.Sleep(2 * time.Second)

	workerPool.Stop()

	outStr = outputBuffer.String()
	assert.Equal(t, "backed up", outStr, "Expected job to write to outputBuffer")
}

func TestPerformSwallowsDuplicates(t *testing.T) {
	models.InitializeTestDb()

	workerPool := NewWorkerAdapter("UTC", true)
	noop := func(m map[string]interface{}) error { return nil }
	workerPool.Register("backup_db", noop)

	job := JobParams{Name: "backup_db", Handler: "backup_db", Args: map[string]interface{}{}}
	assert.Nil(t, workerPool.Perform(job))

	// A duplicate of a queued job is dropped with a warning, not an error
	assert.Nil(t, workerPool.Perform(job))

	lastJob, err := models.LastJob(models.ENQUEUED_JOB, false)
	assert.Nil(t, err)
	assert.Equal(t, "backup_db", lastJob.Name)
}
