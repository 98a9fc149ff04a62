package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Refresh job states
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Refresh job types
const (
	JobTypeGroupRefresh = "group_refresh"
	JobTypeRefreshAll   = "refresh_all"
)

// ErrJobNotFound is returned for an unknown refresh job ID
var ErrJobNotFound = errors.New("refresh job not found")

// RefreshJob tracks one batch refresh of saved contracts
type RefreshJob struct {
	ID                  string    `json:"id"`
	JobType             string    `json:"job_type"`
	GroupID             uint      `json:"group_id,omitempty"`
	Status              string    `json:"status"`
	TotalContracts      int       `json:"total_contracts"`
	ProcessedContracts  int       `json:"processed_contracts"`
	SuccessfulContracts int       `json:"successful_contracts"`
	FailedContracts     int       `json:"failed_contracts"`
	ErrorMessage        string    `json:"error_message,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	ProgressPercentage  int       `json:"progress_percentage"`
}

// DailyRefreshLog is a day's worth of refresh jobs
type DailyRefreshLog struct {
	Date    string            `json:"date"`
	Summary RefreshDaySummary `json:"summary"`
	Jobs    []*RefreshJob     `json:"jobs"`
}

// RefreshDaySummary provides high-level stats for the day
type RefreshDaySummary struct {
	TotalJobs          int `json:"total_jobs"`
	CompletedJobs      int `json:"completed_jobs"`
	FailedJobs         int `json:"failed_jobs"`
	ContractsRefreshed int `json:"contracts_refreshed"`
	ContractsFailed    int `json:"contracts_failed"`
}

// RefreshJournal records refresh jobs in one JSON file per day. With an
// empty log directory jobs are kept in memory only.
//
// A job stays in the log of the day it started on, even when it finishes
// after midnight.
type RefreshJournal struct {
	mu         sync.Mutex
	logger     *logrus.Logger
	logDir     string
	now        func() time.Time
	currentLog *DailyRefreshLog
	active     map[string]*DailyRefreshLog // unfinished job ID -> its day's log
}

// NewRefreshJournal creates a new refresh journal
func NewRefreshJournal(logDir string, now func() time.Time, logger *logrus.Logger) (*RefreshJournal, error) {
	if logger == nil {
		logger = newDefaultLogger()
	}
	if now == nil {
		now = time.Now
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create refresh journal directory: %w", err)
		}
	}

	return &RefreshJournal{
		logger: logger,
		logDir: logDir,
		now:    now,
		active: make(map[string]*DailyRefreshLog),
	}, nil
}

// StartJob records a new running job
func (j *RefreshJournal) StartJob(jobType string, groupID uint, total int) (*RefreshJob, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	log := j.today()
	now := j.now()
	job := &RefreshJob{
		ID:             fmt.Sprintf("%s-%04d", strings.ReplaceAll(log.Date, "-", ""), len(log.Jobs)+1),
		JobType:        jobType,
		GroupID:        groupID,
		Status:         JobRunning,
		TotalContracts: total,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	log.Jobs = append(log.Jobs, job)
	log.Summary.TotalJobs++
	j.active[job.ID] = log

	j.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"job_type": jobType,
		"group_id": groupID,
		"total":    total,
	}).Info("Refresh job started")

	copied := *job
	return &copied, j.saveLog(log)
}

// RecordContract counts one processed contract of a job
func (j *RefreshJournal) RecordContract(jobID string, err error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	log, job := j.find(jobID)
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	job.ProcessedContracts++
	if err != nil {
		job.FailedContracts++
		log.Summary.ContractsFailed++
	} else {
		job.SuccessfulContracts++
		log.Summary.ContractsRefreshed++
	}
	job.ProgressPercentage = progress(job)
	job.UpdatedAt = j.now()

	return j.saveLog(log)
}

// FinishJob marks a job completed, or failed when err is set
func (j *RefreshJournal) FinishJob(jobID string, err error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	log, job := j.find(jobID)
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if err != nil {
		job.Status = JobFailed
		job.ErrorMessage = err.Error()
		log.Summary.FailedJobs++
	} else {
		job.Status = JobCompleted
		log.Summary.CompletedJobs++
	}
	job.ProgressPercentage = progress(job)
	job.UpdatedAt = j.now()
	delete(j.active, jobID)

	j.logger.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"status":     job.Status,
		"successful": job.SuccessfulContracts,
		"failed":     job.FailedContracts,
	}).Info("Refresh job finished")

	return j.saveLog(log)
}

// GetJob returns a snapshot of a job from today's log or, for older jobs,
// from the log file of the day encoded in the ID
func (j *RefreshJournal) GetJob(jobID string) (*RefreshJob, error) {
	j.mu.Lock()
	_, job := j.find(jobID)
	if job != nil {
		copied := *job
		j.mu.Unlock()
		return &copied, nil
	}
	j.mu.Unlock()

	day, _, ok := strings.Cut(jobID, "-")
	if !ok || len(day) != 8 || j.logDir == "" {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	date := day[:4] + "-" + day[4:6] + "-" + day[6:]

	log, err := j.GetLogForDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	for _, job := range log.Jobs {
		if job.ID == jobID {
			return job, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
}

// GetCurrentLog returns a snapshot of today's log
func (j *RefreshJournal) GetCurrentLog() *DailyRefreshLog {
	j.mu.Lock()
	defer j.mu.Unlock()
	return cloneLog(j.today())
}

// GetLogForDate retrieves the log for a specific date
func (j *RefreshJournal) GetLogForDate(date string) (*DailyRefreshLog, error) {
	j.mu.Lock()
	if log := j.loaded(date); log != nil {
		cloned := cloneLog(log)
		j.mu.Unlock()
		return cloned, nil
	}
	j.mu.Unlock()

	if _, ok := parseDate(date); !ok {
		return nil, fmt.Errorf("%w: invalid date %q", ErrInvalidInput, date)
	}
	if j.logDir == "" {
		return nil, fmt.Errorf("%w: no log for %s", ErrJobNotFound, date)
	}

	log, err := j.readLog(date)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no log for %s", ErrJobNotFound, date)
		}
		return nil, err
	}
	return log, nil
}

// ListAvailableLogs returns the dates that have a log file
func (j *RefreshJournal) ListAvailableLogs() ([]string, error) {
	dates := make([]string, 0)
	if j.logDir == "" {
		j.mu.Lock()
		if j.currentLog != nil {
			dates = append(dates, j.currentLog.Date)
		}
		for _, log := range j.active {
			dates = append(dates, log.Date)
		}
		j.mu.Unlock()
		slices.Sort(dates)
		return slices.Compact(dates), nil
	}

	files, err := os.ReadDir(j.logDir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasPrefix(name, "refresh_") || filepath.Ext(name) != ".json" {
			continue
		}
		dates = append(dates, strings.TrimSuffix(strings.TrimPrefix(name, "refresh_"), ".json"))
	}
	return dates, nil
}

// today returns the log for the current date, rolling over at midnight and
// picking up a file left by an earlier run. Callers hold j.mu.
func (j *RefreshJournal) today() *DailyRefreshLog {
	date := j.now().UTC().Format(dateLayout)
	if j.currentLog != nil && j.currentLog.Date == date {
		return j.currentLog
	}

	j.currentLog = &DailyRefreshLog{Date: date, Jobs: make([]*RefreshJob, 0)}
	if j.logDir != "" {
		if existing, err := j.readLog(date); err == nil {
			j.currentLog = existing
		} else if !errors.Is(err, os.ErrNotExist) {
			j.logger.WithError(err).WithField("date", date).Warn("Ignoring unreadable refresh journal")
		}
	}
	return j.currentLog
}

// find looks up a job among unfinished jobs and today's log. Callers hold j.mu.
func (j *RefreshJournal) find(jobID string) (*DailyRefreshLog, *RefreshJob) {
	for _, log := range []*DailyRefreshLog{j.active[jobID], j.currentLog} {
		if log == nil {
			continue
		}
		for _, job := range log.Jobs {
			if job.ID == jobID {
				return log, job
			}
		}
	}
	return nil, nil
}

// loaded returns the in-memory log of a date, if any. Callers hold j.mu.
func (j *RefreshJournal) loaded(date string) *DailyRefreshLog {
	if j.currentLog != nil && j.currentLog.Date == date {
		return j.currentLog
	}
	for _, log := range j.active {
		if log.Date == date {
			return log
		}
	}
	return nil
}

func (j *RefreshJournal) filename(date string) string {
	return filepath.Join(j.logDir, fmt.Sprintf("refresh_%s.json", date))
}

func (j *RefreshJournal) readLog(date string) (*DailyRefreshLog, error) {
	data, err := os.ReadFile(j.filename(date))
	if err != nil {
		return nil, err
	}

	var log DailyRefreshLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to parse refresh journal: %w", err)
	}
	if log.Jobs == nil {
		log.Jobs = make([]*RefreshJob, 0)
	}
	return &log, nil
}

// saveLog writes a day's log to its file. Callers hold j.mu.
func (j *RefreshJournal) saveLog(log *DailyRefreshLog) error {
	if j.logDir == "" || log == nil {
		return nil
	}

	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal refresh journal: %w", err)
	}

	if err := os.WriteFile(j.filename(log.Date), data, 0644); err != nil {
		return fmt.Errorf("failed to write refresh journal: %w", err)
	}
	return nil
}

func progress(job *RefreshJob) int {
	if job.TotalContracts == 0 {
		if job.Status == JobCompleted {
			return 100
		}
		return 0
	}
	return job.ProcessedContracts * 100 / job.TotalContracts
}

func cloneLog(log *DailyRefreshLog) *DailyRefreshLog {
	cloned := &DailyRefreshLog{
		Date:    log.Date,
		Summary: log.Summary,
		Jobs:    make([]*RefreshJob, len(log.Jobs)),
	}
	for i, job := range log.Jobs {
		copied := *job
		cloned.Jobs[i] = &copied
	}
	return cloned
}
