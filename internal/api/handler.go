package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-alert-workflow/internal/activity"
	"github.com/mr1hm/go-alert-workflow/internal/models"
	"github.com/mr1hm/go-alert-workflow/internal/registry"
	"github.com/mr1hm/go-alert-workflow/internal/workflow"
)

// actorHeader carries the acting role, asserted by the auth layer in front
// of this service. The engine validates membership but does not authenticate.
const actorHeader = "X-Actor-Role"

type Handler struct {
	registry *registry.Registry
}

func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{
		registry: reg,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.POST("/api/alerts", h.createAlert)
	r.GET("/api/alerts", h.listAlerts)
	r.GET("/api/alerts/:id", h.getAlert)
	r.POST("/api/alerts/:id/issue", h.issueAlert)
	r.POST("/api/alerts/:id/cancel", h.cancelAlert)
	r.POST("/api/alerts/:id/respond", h.respondToAlert)
	r.POST("/api/alerts/:id/recompute", h.recomputeAlert)
	r.GET("/api/activity", h.queryActivity)
}

type createAlertRequest struct {
	HazardType            string              `json:"hazard_type"`
	Zones                 []models.Zone       `json:"zones"`
	ValidFrom             time.Time           `json:"valid_from"`
	ValidTo               time.Time           `json:"valid_to"`
	Descriptions          models.Descriptions `json:"descriptions"`
	SectorRecommendations map[string]string   `json:"sector_recommendations"`
}

func (h *Handler) createAlert(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	recommendations := make(map[models.Role]string, len(req.SectorRecommendations))
	for k, v := range req.SectorRecommendations {
		role := models.ParseRole(k)
		if role == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role in recommendations: " + k})
			return
		}
		recommendations[role] = v
	}

	input := registry.CreateInput{
		HazardType:            models.ParseHazardType(req.HazardType),
		Zones:                 canonicalZones(req.Zones),
		ValidFrom:             req.ValidFrom,
		ValidTo:               req.ValidTo,
		Descriptions:          req.Descriptions,
		SectorRecommendations: recommendations,
	}

	alert, err := h.registry.Create(c.Request.Context(), input, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *Handler) issueAlert(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	alert, err := h.registry.Issue(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) cancelAlert(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	alert, err := h.registry.Cancel(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

type respondRequest struct {
	Role   string `json:"role"`
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *Handler) respondToAlert(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	role := models.ParseRole(req.Role)
	if role == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role: " + req.Role})
		return
	}
	status := models.ParseResponseStatus(req.Status)
	if status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown response status: " + req.Status})
		return
	}

	resp, err := h.registry.Respond(c.Request.Context(), c.Param("id"), role, status, req.Notes, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) recomputeAlert(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	alert, err := h.registry.Recompute(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) getAlert(c *gin.Context) {
	alert, err := h.registry.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *Handler) listAlerts(c *gin.Context) {
	filter := registry.ListFilter{}

	if s := c.Query("status"); s != "" {
		status := models.ParseAlertStatus(s)
		if status == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status: " + s})
			return
		}
		filter.Status = status
	}
	if l := c.Query("level"); l != "" {
		level := models.ParseSeverity(l)
		if level == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown level: " + l})
			return
		}
		filter.Level = level
	}

	c.JSON(http.StatusOK, gin.H{"alerts": h.registry.List(filter)})
}

func (h *Handler) queryActivity(c *gin.Context) {
	filter := activity.Filter{
		AlertID: c.Query("alert_id"),
	}

	if r := c.Query("role"); r != "" {
		role := models.ParseRole(r)
		if role == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role: " + r})
			return
		}
		filter.Role = role
	}
	if s := c.Query("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC 3339"})
			return
		}
		filter.Since = &t
	}

	seq, err := h.registry.QueryActivity(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	entries := make([]models.ActivityLogEntry, 0)
	for e := range seq {
		entries = append(entries, e)
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// actor resolves the acting role from the request header. Replies 400 and
// returns false when the header is missing or names an unknown role.
func (h *Handler) actor(c *gin.Context) (models.Role, bool) {
	raw := c.GetHeader(actorHeader)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + actorHeader + " header"})
		return "", false
	}
	role := models.ParseRole(raw)
	if role == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown actor role: " + raw})
		return "", false
	}
	return role, true
}

func canonicalZones(zones []models.Zone) []models.Zone {
	out := make([]models.Zone, len(zones))
	for i, z := range zones {
		out[i] = models.Zone{Name: z.Name, Severity: models.ParseSeverity(string(z.Severity))}
	}
	return out
}

// writeError maps the workflow error taxonomy onto HTTP: validation 400,
// violation 409, not-found 404, storage 500.
func writeError(c *gin.Context, err error) {
	var (
		validation *workflow.ValidationError
		violation  *workflow.ViolationError
		notFound   *workflow.NotFoundError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &violation):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
