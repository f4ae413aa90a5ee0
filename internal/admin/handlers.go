// Package admin provides operator-only endpoints: partner provisioning,
// blacklist and threat-intel management, and manual training runs. All
// routes are guarded by the shared admin secret.
package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/verdict-labs/verdict/internal/model"
	"github.com/verdict-labs/verdict/internal/partner"
	"github.com/verdict-labs/verdict/internal/realtime"
	"github.com/verdict-labs/verdict/internal/trust"
)

// Handler provides the admin HTTP endpoints.
type Handler struct {
	partners *partner.Manager
	trust    *trust.Service
	worker   *model.Worker
	models   *model.Provider
	feed     *realtime.Hub
}

// NewHandler creates an admin handler. Worker and feed may be nil when the
// corresponding subsystem is disabled.
func NewHandler(partners *partner.Manager, trustSvc *trust.Service, worker *model.Worker, models *model.Provider, feed *realtime.Hub) *Handler {
	return &Handler{
		partners: partners,
		trust:    trustSvc,
		worker:   worker,
		models:   models,
		feed:     feed,
	}
}

// RegisterRoutes sets up the admin routes. The group must already carry
// the admin-secret middleware.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/partners", h.ProvisionPartner)
	r.PUT("/partners/:id/tier", h.ChangeTier)

	r.POST("/blacklist", h.AddToBlacklist)
	r.DELETE("/blacklist/:identifier", h.RemoveFromBlacklist)
	r.PUT("/trust-scores/:identifier", h.SetTrustScore)
	r.PUT("/threat-patterns", h.SetThreatPatterns)

	r.POST("/training/run", h.RunTraining)
	r.GET("/model", h.ModelInfo)
	r.GET("/feed/stats", h.FeedStats)
}

// ProvisionPartner handles POST /admin/partners.
// The raw API key appears in this response and nowhere else.
func (h *Handler) ProvisionPartner(c *gin.Context) {
	var req struct {
		Name string       `json:"name" binding:"required"`
		Tier partner.Tier `json:"tier"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if req.Tier == "" {
		req.Tier = partner.TierFree
	}

	rawKey, p, err := h.partners.Provision(c.Request.Context(), req.Name, req.Tier)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"partner": p, "apiKey": rawKey})
}

// ChangeTier handles PUT /admin/partners/:id/tier.
func (h *Handler) ChangeTier(c *gin.Context) {
	var req struct {
		Tier partner.Tier `json:"tier" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	p, err := h.partners.ChangeTier(c.Request.Context(), c.Param("id"), req.Tier)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// AddToBlacklist handles POST /admin/blacklist.
func (h *Handler) AddToBlacklist(c *gin.Context) {
	var req struct {
		Identifier string `json:"identifier" binding:"required"`
		Reason     string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	if err := h.trust.Blacklist(c.Request.Context(), req.Identifier, req.Reason); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "blacklisted", "identifier": req.Identifier})
}

// RemoveFromBlacklist handles DELETE /admin/blacklist/:identifier.
func (h *Handler) RemoveFromBlacklist(c *gin.Context) {
	identifier := c.Param("identifier")
	if err := h.trust.Unblacklist(c.Request.Context(), identifier); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed", "identifier": identifier})
}

// SetTrustScore handles PUT /admin/trust-scores/:identifier.
func (h *Handler) SetTrustScore(c *gin.Context) {
	var req struct {
		Score float64 `json:"score"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if req.Score < 0 || req.Score > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "score must be in [0, 1]"})
		return
	}

	if err := h.trust.SetScore(c.Request.Context(), c.Param("identifier"), req.Score); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identifier": c.Param("identifier"), "score": req.Score})
}

// SetThreatPatterns handles PUT /admin/threat-patterns.
func (h *Handler) SetThreatPatterns(c *gin.Context) {
	var req struct {
		Patterns []string `json:"patterns"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	if err := h.trust.ReplacePatterns(c.Request.Context(), req.Patterns); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": req.Patterns})
}

// RunTraining handles POST /admin/training/run. The run happens inline so
// the response reports the real outcome, not just "accepted".
func (h *Handler) RunTraining(c *gin.Context) {
	if h.worker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable", "message": "training disabled"})
		return
	}

	outcome, err := h.worker.RunOnce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "training_failed", "outcome": outcome, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcome": outcome})
}

// ModelInfo handles GET /admin/model.
func (h *Handler) ModelInfo(c *gin.Context) {
	w, err := h.models.Current(c.Request.Context())
	if model.IsNoModel(err) {
		c.JSON(http.StatusOK, gin.H{"trained": false})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"trained":   true,
		"id":        w.ID,
		"version":   w.Version,
		"trainedAt": w.TrainedAt,
	})
}

// FeedStats handles GET /admin/feed/stats.
func (h *Handler) FeedStats(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	c.JSON(http.StatusOK, h.feed.Stats())
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, partner.ErrInvalidTier):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tier", "message": err.Error()})
	case errors.Is(err, partner.ErrPartnerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
	}
}
