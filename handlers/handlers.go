package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"visa-assessor/advisor"
	"visa-assessor/config"
	"visa-assessor/content"
	"visa-assessor/middleware"
	"visa-assessor/models"
	"visa-assessor/payment"
	"visa-assessor/service"
	"visa-assessor/session"
)

// Handlers wires the HTTP surface to the assessment service.
type Handlers struct {
	cfg      *config.Config
	svc      *service.Service
	advisors *advisor.CachedDirectoryService
}

// NewHandlers creates new HTTP handlers.
func NewHandlers(cfg *config.Config, svc *service.Service, advisors *advisor.CachedDirectoryService) *Handlers {
	return &Handlers{cfg: cfg, svc: svc, advisors: advisors}
}

// RegisterRoutes attaches all routes to the engine.
func (h *Handlers) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.POST("/session", h.CreateSession)
		api.GET("/session/:id", h.GetSession)
		api.POST("/session/:id/start", h.StartSession)
		api.POST("/session/:id/navigate", h.Navigate)
		api.POST("/session/:id/reset", h.ResetSession)

		api.POST("/session/:id/assess", h.Assess)
		api.POST("/session/:id/assess/sandbox", h.AssessSandbox)
		api.POST("/session/:id/checkout", h.Checkout)
		api.POST("/session/:id/payment/complete", h.CompletePayment)
		api.POST("/session/:id/payment/cancel", h.CancelPayment)

		api.POST("/leads", h.CaptureLead)
		api.GET("/content/:slug", h.GetContent)
		api.GET("/guides", h.GetGuides)
		api.GET("/advisors", h.GetAdvisors)

		api.GET("/profile/:userId", h.GetProfile)
		api.PUT("/profile/:userId", h.SaveProfile)
		api.DELETE("/profile/:userId", h.WipeProfile)
		api.GET("/profile/:userId/last-assessment", h.GetLastAssessment)

		admin := api.Group("/admin", middleware.AdminAuth(h.cfg.AdminToken))
		{
			admin.GET("/leads", h.AdminLeads)
			admin.GET("/assessments", h.AdminAssessments)
		}
	}
}

// HealthCheck handles health check requests.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "visa-assessor",
	})
}

// loadSession resolves the :id path param, writing the error response on
// failure.
func (h *Handlers) loadSession(c *gin.Context) *session.Session {
	sess, err := h.svc.Sessions().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		}
		return nil
	}
	return sess
}

// saveSession persists the session, writing the error response on failure.
func (h *Handlers) saveSession(c *gin.Context, sess *session.Session) bool {
	if err := h.svc.Sessions().Put(c.Request.Context(), sess); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
		return false
	}
	return true
}

// CreateSession starts a fresh session on the landing step.
func (h *Handlers) CreateSession(c *gin.Context) {
	var body struct {
		UserID string `json:"userId"`
	}
	// Body is optional; a bare POST creates an anonymous session.
	_ = c.ShouldBindJSON(&body)

	sess := session.New()
	sess.UserID = body.UserID
	if !h.saveSession(c, sess) {
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// GetSession returns the full session state.
func (h *Handlers) GetSession(c *gin.Context) {
	sess := h.loadSession(c)
	if sess == nil {
		return
	}
	c.JSON(http.StatusOK, sess)
}

// StartSession moves landing -> form.
func (h *Handlers) StartSession(c *gin.Context) {
	sess := h.loadSession(c)
	if sess == nil {
		return
	}
	if err := h.svc.Start(sess); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if !h.saveSession(c, sess) {
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Navigate applies a step change requested by the client.
func (h *Handlers) Navigate(c *gin.Context) {
	sess := h.loadSession(c)
	if sess == nil {
		return
	}

	var body struct {
		Step string `json:"step"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	step, ok := models.ParseStep(body.Step)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown step"})
		return
	}
	if err := h.svc.Navigate(sess, step); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if !h.saveSession(c, sess) {
		return
	}
	c.JSON(http.StatusOK, sess)
}

// ResetSession returns the session to the landing step. The stored result
// and premium flag survive.
func (h *Handlers) ResetSession(c *gin.Context) {
	sess := h.loadSession(c)
	if sess == nil {
		return
	}
	h.svc.Reset(sess)
	if !h.saveSession(c, sess) {
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Assess runs the analysis against the configured provider.
func (h *Handlers) Assess(c *gin.Context) {
	h.assess(c, h.svc.Submit)
}

// AssessSandbox runs the analysis against the deterministic sandbox.
func (h *Handlers) AssessSandbox(c *gin.Context) {
	h.assess(c, h.svc.SandboxSubmit)
}

type submitFunc func(ctx context.Context, sess *session.Session, data *models.AssessmentData) error

func (h *Handlers) assess(c *gin.Context, submit submitFunc) {
	sess := h.loadSession(c)
	if sess == nil {
		return
	}

	var data models.AssessmentData
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := submit(c.Request.Context(), sess, &data)

	// The session reflects the outcome either way; persist before replying.
	if !h.saveSession(c, sess) {
		return
	}

	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		case errors.Is(err, service.ErrSubmitInFlight), errors.Is(err, service.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrAnalysisRateLimit):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":             "analysis provider quota exhausted",
				"sandbox_available": true,
			})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "analysis failed, please try again"})
		}
		return
	}

	c.JSON(http.StatusOK, sess)
}

// Checkout moves the session to the payment step and returns the Stripe
// checkout URL.
func (h *Handlers) Checkout(c *gin.Context) {
	sess := h.loadSession(c)
	if sess == nil {
		return
	}

	url, err := h.svc.Upgrade(sess)
	if err != nil {
		if errors.Is(err, service.ErrResultRequired) || errors.Is(err, service.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to start checkout"})
		}
		return
	}
	if !h.saveSession(c, sess) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout_url": url, "session": sess})
}

// CompletePayment finishes a purchase in the given mode.
func (h *Handlers) CompletePayment(c *gin.Context) {
	sess := h.loadSession(c)
	if sess == nil {
		return
	}

	var body struct {
		Mode string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	err := h.svc.CompletePayment(c.Request.Context(), sess, payment.Mode(body.Mode))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "payment cancelled"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if !h.saveSession(c, sess) {
		return
	}
	c.JSON(http.StatusOK, sess)
}

// CancelPayment returns the session to the free results view.
func (h *Handlers) CancelPayment(c *gin.Context) {
	sess := h.loadSession(c)
	if sess == nil {
		return
	}
	if err := h.svc.CancelPayment(sess); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if !h.saveSession(c, sess) {
		return
	}
	c.JSON(http.StatusOK, sess)
}

// CaptureLead stores a newsletter email. The response never reveals
// whether the email was already known.
func (h *Handlers) CaptureLead(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.CaptureLead(body.Email, body.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a valid email is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "subscribed"})
}

// GetContent serves a static page by slug.
func (h *Handlers) GetContent(c *gin.Context) {
	page, ok := content.Get(c.Param("slug"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "page not found"})
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetGuides lists the gated guide pages.
func (h *Handlers) GetGuides(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"guides": content.Guides()})
}

// GetAdvisors returns the advisor directory for the user's coordinates,
// falling back to the national listing when coordinates are absent or
// invalid.
func (h *Handlers) GetAdvisors(c *gin.Context) {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" || lonStr == "" {
		c.JSON(http.StatusOK, advisor.StaticFallback())
		return
	}

	lat, errLat := strconv.ParseFloat(latStr, 64)
	lon, errLon := strconv.ParseFloat(lonStr, 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		c.JSON(http.StatusOK, advisor.StaticFallback())
		return
	}

	c.JSON(http.StatusOK, h.advisors.Directory(c.Request.Context(), lat, lon))
}

// GetProfile returns the stored profile, or defaults when none exists.
func (h *Handlers) GetProfile(c *gin.Context) {
	profile, err := h.svc.Database().GetProfile(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// SaveProfile replaces the stored profile.
func (h *Handlers) SaveProfile(c *gin.Context) {
	var profile models.UserProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.Database().SaveProfile(c.Param("userId"), &profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// WipeProfile deletes the stored profile entirely.
func (h *Handlers) WipeProfile(c *gin.Context) {
	if err := h.svc.Database().DeleteProfile(c.Param("userId")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile deleted"})
}

// GetLastAssessment returns the newest assessment for the profile's email.
// Incognito profiles expose nothing.
func (h *Handlers) GetLastAssessment(c *gin.Context) {
	db := h.svc.Database()
	profile, err := db.GetProfile(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	if profile.Incognito || profile.Email == "" {
		c.Status(http.StatusNoContent)
		return
	}

	rec, err := db.GetLastAssessmentByEmail(profile.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load assessment"})
		return
	}
	if rec == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// AdminLeads lists all captured leads.
func (h *Handlers) AdminLeads(c *gin.Context) {
	leads, err := h.svc.Database().GetLeads()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query leads"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"leads": leads, "count": len(leads)})
}

// AdminAssessments lists all stored assessments.
func (h *Handlers) AdminAssessments(c *gin.Context) {
	records, err := h.svc.Database().GetAssessments()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query assessments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assessments": records, "count": len(records)})
}
