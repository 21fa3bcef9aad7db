package server

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/uxsense/backend/analyzer"
	"github.com/uxsense/backend/middleware"
	"github.com/uxsense/backend/session"
	"github.com/uxsense/backend/wizard"
)

// targetForm is the setup form. Metric fields bind through the embedded
// struct's form tags.
type targetForm struct {
	URL string `form:"url"`
	analyzer.BehaviorMetrics
}

// detached keeps provider and retrieval calls running when the browser
// goes away.
func detached(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

func stepPath(step wizard.Step) string {
	return "/steps/" + string(step)
}

func (s *Server) page(sess *session.Session, title string) pageData {
	user, _ := s.manager.Identity()
	view := sess.Snapshot()
	return pageData{
		Title: title,
		User:  user,
		View:  view,
		Error: view.Error,
		Model: s.model,
	}
}

// render shows the session's current step
func (s *Server) render(c *gin.Context, sess *session.Session, notice string) {
	data := s.page(sess, "")
	data.Notice = notice
	data.Title = data.View.Step.Label()
	c.HTML(http.StatusOK, string(data.View.Step), data)
}

// current returns the session or sends the visitor to the login page
func (s *Server) current(c *gin.Context) (*session.Session, bool) {
	sess, err := s.manager.Current()
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/")
		c.Abort()
		return nil, false
	}
	return sess, true
}

func (s *Server) index(c *gin.Context) {
	sess, err := s.manager.Current()
	if err != nil {
		c.HTML(http.StatusOK, "login", pageData{Title: "Sign in", Model: s.model})
		return
	}
	c.Redirect(http.StatusSeeOther, stepPath(sess.Snapshot().Step))
}

func (s *Server) login(c *gin.Context) {
	email := c.PostForm("email")
	name := c.PostForm("name")

	if _, err := s.manager.Login(c.Request.Context(), email, name); err != nil {
		c.HTML(statusFor(err), "login", pageData{
			Title: "Sign in",
			Model: s.model,
			Error: messageFor(err),
			Email: email,
			Name:  name,
		})
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) logout(c *gin.Context) {
	if err := s.manager.Logout(c.Request.Context()); err != nil {
		s.logger.Error("logout failed", zap.Error(err))
		c.String(http.StatusInternalServerError, messageFor(err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) step(c *gin.Context) {
	sess, ok := s.current(c)
	if !ok {
		return
	}

	step, err := wizard.ParseStep(c.Param("step"))
	if err == nil {
		err = sess.Navigate(step)
	}
	if err != nil {
		c.Redirect(http.StatusSeeOther, stepPath(sess.Snapshot().Step)+"?notice=locked")
		return
	}

	notice := ""
	if c.Query("notice") == "locked" {
		notice = lockedStepMessage
	}
	s.render(c, sess, notice)
}

func (s *Server) target(c *gin.Context) {
	sess, ok := s.current(c)
	if !ok {
		return
	}

	var form targetForm
	if err := c.ShouldBind(&form); err != nil {
		s.logger.Debug("invalid setup form", zap.Error(err))
		sess.SetTarget(form.URL)
		s.renderInput(c, http.StatusBadRequest, sess, "Please check the metric values")
		return
	}

	sess.SetTarget(form.URL)
	if err := sess.SetMetrics(form.BehaviorMetrics); err != nil {
		s.renderInput(c, statusFor(err), sess, messageFor(err))
		return
	}
	sess.ClearError()
	c.Redirect(http.StatusSeeOther, stepPath(wizard.StepInput))
}

// renderInput shows the setup step with a message that is not kept in the
// session.
func (s *Server) renderInput(c *gin.Context, status int, sess *session.Session, message string) {
	data := s.page(sess, wizard.StepInput.Label())
	data.Error = message
	c.HTML(status, string(wizard.StepInput), data)
}

func (s *Server) screenshot(c *gin.Context) {
	sess, ok := s.current(c)
	if !ok {
		return
	}

	if c.PostForm("clear") != "" {
		sess.SetScreenshot("")
		c.Redirect(http.StatusSeeOther, stepPath(wizard.StepInput))
		return
	}

	dataURI, err := readScreenshot(c)
	if err == nil {
		err = sess.SetScreenshot(dataURI)
	}
	if err != nil {
		s.renderInput(c, statusFor(err), sess, messageFor(err))
		return
	}
	c.Redirect(http.StatusSeeOther, stepPath(wizard.StepInput))
}

// readScreenshot reads the uploaded image and converts it to a data URI
func readScreenshot(c *gin.Context) (string, error) {
	invalid := &analyzer.ValidationError{Field: "screenshot", Message: "Please upload an image file"}

	header, err := c.FormFile("screenshot")
	if err != nil {
		return "", invalid
	}
	if header.Size > maxScreenshotSize {
		return "", &analyzer.ValidationError{Field: "screenshot", Message: "Screenshot is larger than 10 MB"}
	}

	file, err := header.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxScreenshotSize))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(mimetype.Detect(data).String(), "image/") {
		return "", invalid
	}
	return analyzer.EncodeDataURI(data), nil
}

func (s *Server) retrieve(c *gin.Context) {
	sess, ok := s.current(c)
	if !ok {
		return
	}

	if _, err := sess.Retrieve(detached(c)); err != nil {
		s.renderInput(c, statusFor(err), sess, messageFor(err))
		return
	}
	c.Redirect(http.StatusSeeOther, stepPath(wizard.StepInput))
}

func (s *Server) analyze(c *gin.Context) {
	sess, ok := s.current(c)
	if !ok {
		return
	}

	if _, err := sess.Analyze(detached(c)); err != nil {
		s.logger.Info("analysis request failed",
			zap.String("request_id", middleware.RequestID(c)),
			zap.Error(err))
		s.renderInput(c, statusFor(err), sess, messageFor(err))
		return
	}
	c.Redirect(http.StatusSeeOther, stepPath(wizard.StepAnalysis))
}

func (s *Server) export(c *gin.Context) {
	sess, ok := s.current(c)
	if !ok {
		return
	}

	data, filename, err := sess.Export()
	if err != nil {
		c.String(statusFor(err), messageFor(err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/json", data)
}
