package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrDuplicateJob = errors.New("job with the given name already exists in queue")

type Job struct {
	BaseModel
	Fails        int        `json:"fails"`
	Name         string     `json:"name"`
	Handler      string     `json:"handler"`
	Args         string     `json:"args"`
	LastError    string     `json:"last_error"`
	Claimed      bool       `json:"claimed" gorm:"default:false"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	JobStatusID  uint       `json:"job_status_id"`
	JobStatus    *JobStatus `json:"status"`
}

func (job *Job) MarkAsClaimed() (bool, error) {
	inProgressStatus, err := FindJobStatus(IN_PROGRESS_JOB)
	if err != nil {
		return false, err
	}

	res := db.Model(&Job{}).Where("id = ? AND claimed = ?", job.ID, false).Updates(map[string]interface{}{
		"claimed":       true,
		"job_status_id": inProgressStatus.ID,
	})

	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

func (job *Job) Update(data map[string]interface{}) error {
	return db.Model(job).Updates(data).Error
}

// CreateUniqueJobByName enqueues a job, unless one with the same name is
// already waiting or running.
func CreateUniqueJobByName(name, handler, args string) error {
	statusIDs, err := queuedJobStatusIDs()
	if err != nil {
		return err
	}

	results := db.Where("name = ? AND job_status_id IN ?", name, statusIDs).First(&Job{})
	if results.Error != nil && !errors.Is(results.Error, gorm.ErrRecordNotFound) {
		return results.Error
	}

	if results.RowsAffected > 0 {
		return ErrDuplicateJob
	}

	enqueuedStatus, err := FindJobStatus(ENQUEUED_JOB)
	if err != nil {
		return err
	}

	return db.Create(&Job{
		Name:        name,
		Handler:     handler,
		Args:        args,
		JobStatusID: enqueuedStatus.ID,
	}).Error
}

// CreateScheduledJob records a job to be moved into the queue at 'performAt'.
func CreateScheduledJob(name, handler, args string, performAt time.Time) error {
	scheduledStatus, err := FindJobStatus(SCHEDULED_JOB)
	if err != nil {
		return err
	}

	return db.Create(&Job{
		Name:         name,
		Handler:      handler,
		Args:         args,
		ScheduledFor: &performAt,
		JobStatusID:  scheduledStatus.ID,
	}).Error
}

func LastJob(status string, claimed bool) (*Job, error) {
	job := Job{}
	err := db.Joins("INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ? AND claimed = ? ",
		status, claimed).Last(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// FirstScheduledJobToBeQueued returns the oldest scheduled job whose
// 'scheduled_for' time has passed.
func FirstScheduledJobToBeQueued() (*Job, error) {
	scheduledStatus, err := FindJobStatus(SCHEDULED_JOB)
	if err != nil {
		return nil, err
	}

	job := Job{}
	err = db.Where("job_status_id = ? AND scheduled_for <= ?", scheduledStatus.ID, time.Now()).
		Preload("JobStatus").First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func FetchJobs(page int) ([]Job, *Paging, error) {
	var total int64
	jobs := []Job{}

	err := db.Model(&Job{}).Count(&total).Error
	if err != nil {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, MAX_PAGE_SIZE)).
		Preload("JobStatus").Order("jobs.id desc").Find(&jobs).Error
	if err != nil {
		return nil, nil, err
	}

	return jobs, newPaging(int64(page), MAX_PAGE_SIZE, total), nil
}

// LastJobLastUpdated returns the last job of 'status' which was last updated
// 'minutesAgo' minutes ago or earlier.
//
// WARNING: THIS QUERY IS UNIQUE TO SQLITE, REMEMBER TO UPDATE IT IF/WHEN
// OTHER SQL DATABASES ARE SUPPORTED
func LastJobLastUpdated(minutesAgo uint, status string) (*Job, error) {
	jobStatus, err := FindJobStatus(status)
	if err != nil {
		return nil, err
	}

	job := Job{}
	err = db.Where(
		fmt.Sprintf("job_status_id = ? AND datetime(updated_at, '+%v minute') <= datetime('now')", minutesAgo),
		jobStatus.ID,
	).Last(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func queuedJobStatusIDs() ([]uint, error) {
	queuedStatuses := []JobStatus{}
	err := db.Where("name IN ?", []string{ENQUEUED_JOB, IN_PROGRESS_JOB}).Find(&queuedStatuses).Error
	if err != nil {
		return nil, err
	}

	ids := []uint{}
	for _, status := range queuedStatuses {
		ids = append(ids, status.ID)
	}

	return ids, nil
}
