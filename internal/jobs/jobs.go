package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type JobStatus string

const (
	StatusRunning   JobStatus = "running"
	StatusDone      JobStatus = "done"
	StatusError     JobStatus = "error"
	StatusCancelled JobStatus = "cancelled"
)

type JobResult struct {
	Mode     string `json:"mode"`
	Rows     int    `json:"rows"`
	Sheet    string `json:"sheet"`
	Output   string `json:"output"`   // Full path
	Filename string `json:"filename"` // Just filename for download
	Report   string `json:"report"`   // JSON report filename
	Skipped  int    `json:"skipped"`
}

type Job struct {
	ID        string
	Status    JobStatus
	Logs      []string
	Progress  int // 0-100
	Result    *JobResult
	Error     string
	CreatedAt time.Time

	mu     sync.RWMutex
	cancel context.CancelFunc
	logger zerolog.Logger
}

// Snapshot is a consistent copy of a job's state for the polling endpoints.
type Snapshot struct {
	ID       string     `json:"id"`
	Status   JobStatus  `json:"status"`
	Logs     []string   `json:"logs"`
	Progress int        `json:"progress"`
	Result   *JobResult `json:"result,omitempty"`
	Error    string     `json:"error"`
}

func timestamped(msg string) string {
	return fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg)
}

func (j *Job) Log(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Logs = append(j.Logs, timestamped(msg))
	j.logger.Info().Msg(msg)
}

func (j *Job) SetProgress(current, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if total > 0 {
		j.Progress = int(float64(current) / float64(total) * 100)
	}
}

// Fail marks the job as failed unless it already finished or was cancelled.
func (j *Job) Fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != StatusRunning {
		return
	}
	j.Status = StatusError
	j.Error = msg
	j.Logs = append(j.Logs, "[ERROR] "+msg)
	j.logger.Error().Msg(msg)
}

func (j *Job) Finish(res *JobResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != StatusRunning {
		return
	}
	j.Status = StatusDone
	j.Result = res
	j.Progress = 100
	j.Logs = append(j.Logs, timestamped("Job completed successfully."))
	j.logger.Info().Int("rows", res.Rows).Msg("job completed")
}

// Cancel stops the job's context. It reports false if the job is not running.
func (j *Job) Cancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != StatusRunning {
		return false
	}
	j.Status = StatusCancelled
	j.Logs = append(j.Logs, timestamped("Cancelled by user."))
	j.logger.Warn().Msg("job cancelled")
	j.cancel()
	return true
}

func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	logs := make([]string, len(j.Logs))
	copy(logs, j.Logs)
	return Snapshot{
		ID:       j.ID,
		Status:   j.Status,
		Logs:     logs,
		Progress: j.Progress,
		Result:   j.Result,
		Error:    j.Error,
	}
}

// Store keeps jobs in memory for the lifetime of the process.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	logger zerolog.Logger
}

func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		jobs:   make(map[string]*Job),
		logger: logger,
	}
}

// Create registers a running job and returns the context its work must
// observe; Cancel on the job cancels that context.
func (s *Store) Create(parent context.Context) (*Job, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.New().String()
	job := &Job{
		ID:        id,
		Status:    StatusRunning,
		Logs:      []string{},
		CreatedAt: time.Now(),
		cancel:    cancel,
		logger:    s.logger.With().Str("job_id", id).Logger(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job, ctx
}

func (s *Store) Get(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

// Prune drops finished jobs created before the cutoff and returns how many
// were removed. Running jobs are kept.
func (s *Store) Prune(olderThan time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, j := range s.jobs {
		j.mu.RLock()
		stale := j.Status != StatusRunning && j.CreatedAt.Before(olderThan)
		j.mu.RUnlock()
		if stale {
			j.cancel()
			delete(s.jobs, id)
			n++
		}
	}
	return n
}
