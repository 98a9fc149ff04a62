package controllers

import (
	"errors"
	"net/http"
	"stocktimus/services"

	"github.com/gin-gonic/gin"
)

// RefreshJobController handles refresh job status and journal endpoints
type RefreshJobController struct {
	journal *services.RefreshJournal
}

// NewRefreshJobController creates a new refresh job controller
func NewRefreshJobController(journal *services.RefreshJournal) *RefreshJobController {
	return &RefreshJobController{
		journal: journal,
	}
}

// HandleGetJob returns the status and progress of a refresh job
// GET /api/v1/refresh-jobs/:id
func (rc *RefreshJobController) HandleGetJob(c *gin.Context) {
	job, err := rc.journal.GetJob(c.Param("id"))
	if err != nil {
		respondJournalError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// HandleGetCurrentLog returns today's refresh jobs
// GET /api/v1/refresh-logs/today
func (rc *RefreshJobController) HandleGetCurrentLog(c *gin.Context) {
	c.JSON(http.StatusOK, rc.journal.GetCurrentLog())
}

// HandleGetLogByDate returns the refresh jobs of a specific date
// GET /api/v1/refresh-logs/:date
func (rc *RefreshJobController) HandleGetLogByDate(c *gin.Context) {
	log, err := rc.journal.GetLogForDate(c.Param("date"))
	if err != nil {
		respondJournalError(c, err)
		return
	}

	c.JSON(http.StatusOK, log)
}

// HandleListLogs returns the dates with recorded refresh jobs
// GET /api/v1/refresh-logs
func (rc *RefreshJobController) HandleListLogs(c *gin.Context) {
	dates, err := rc.journal.ListAvailableLogs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"dates": dates,
		"count": len(dates),
	})
}

func respondJournalError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
