package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uxsense/backend/analyzer"
	"github.com/uxsense/backend/session"
	"github.com/uxsense/backend/wizard"
)

// apiError writes the error as {"error": message} with its mapped status
func apiError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": messageFor(err)})
}

func (s *Server) apiCurrent(c *gin.Context) (*session.Session, bool) {
	sess, err := s.manager.Current()
	if err != nil {
		apiError(c, err)
		return nil, false
	}
	return sess, true
}

type sessionResponse struct {
	User          session.UserIdentity     `json:"user"`
	URL           string                   `json:"url"`
	Step          wizard.Step              `json:"step"`
	Steps         []stepResponse           `json:"steps"`
	Metrics       analyzer.BehaviorMetrics `json:"metrics"`
	HasResult     bool                     `json:"hasResult"`
	HasScreenshot bool                     `json:"hasScreenshot"`
	Analyzing     bool                     `json:"analyzing"`
	Retrieving    bool                     `json:"retrieving"`
	Error         string                   `json:"error,omitempty"`
}

type stepResponse struct {
	Step    wizard.Step `json:"step"`
	Label   string      `json:"label"`
	Enabled bool        `json:"enabled"`
	Active  bool        `json:"active"`
}

// auditRequest optionally updates the session before an action
type auditRequest struct {
	URL        *string                   `json:"url"`
	Screenshot *string                   `json:"screenshot"`
	Metrics    *analyzer.BehaviorMetrics `json:"metrics"`
}

func (s *Server) apiHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) apiSession(c *gin.Context) {
	sess, ok := s.apiCurrent(c)
	if !ok {
		return
	}

	user, _ := s.manager.Identity()
	view := sess.Snapshot()

	steps := make([]stepResponse, 0, len(view.Steps))
	for _, item := range view.Steps {
		steps = append(steps, stepResponse{Step: item.Step, Label: item.Label, Enabled: item.Enabled, Active: item.Active})
	}

	c.JSON(http.StatusOK, sessionResponse{
		User:          user,
		URL:           view.URL,
		Step:          view.Step,
		Steps:         steps,
		Metrics:       view.Metrics,
		HasResult:     view.HasResult,
		HasScreenshot: view.HasScreenshot,
		Analyzing:     view.Analyzing,
		Retrieving:    view.Retrieving,
		Error:         view.Error,
	})
}

// applyAuditRequest binds an optional JSON body onto the session
func applyAuditRequest(c *gin.Context, sess *session.Session) error {
	var req auditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &analyzer.ValidationError{Field: "body", Message: "Invalid request body"}
	}

	if req.Metrics != nil {
		if err := sess.SetMetrics(*req.Metrics); err != nil {
			return err
		}
	}
	if req.URL != nil {
		sess.SetTarget(*req.URL)
	}
	if req.Screenshot != nil {
		if err := sess.SetScreenshot(*req.Screenshot); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) apiRetrieve(c *gin.Context) {
	sess, ok := s.apiCurrent(c)
	if !ok {
		return
	}
	if err := applyAuditRequest(c, sess); err != nil {
		apiError(c, err)
		return
	}

	metrics, err := sess.Retrieve(detached(c))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

func (s *Server) apiAnalyze(c *gin.Context) {
	sess, ok := s.apiCurrent(c)
	if !ok {
		return
	}
	if err := applyAuditRequest(c, sess); err != nil {
		apiError(c, err)
		return
	}

	result, err := sess.Analyze(detached(c))
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) apiReport(c *gin.Context) {
	sess, ok := s.apiCurrent(c)
	if !ok {
		return
	}

	doc, err := sess.Document()
	if err != nil {
		apiError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) apiStatistics(c *gin.Context) {
	if s.stats == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.stats.Statistics(s.devMode))
}
