package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verdict-labs/verdict/internal/analytics"
	"github.com/verdict-labs/verdict/internal/partner"
	"github.com/verdict-labs/verdict/internal/ratelimit"
	"github.com/verdict-labs/verdict/internal/realtime"
	"github.com/verdict-labs/verdict/internal/risk"
)

// Handler provides HTTP endpoints for the verification API.
type Handler struct {
	service   *Service
	analytics *analytics.Service
	feed      *realtime.Hub
}

// NewHandler creates a new verification handler.
func NewHandler(service *Service, analyticsSvc *analytics.Service, feed *realtime.Hub) *Handler {
	return &Handler{service: service, analytics: analyticsSvc, feed: feed}
}

// RegisterRoutes sets up the partner-authenticated verification routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/verify", h.Verify)
	r.POST("/verify/batch", h.VerifyBatch)
	r.GET("/verifications", h.ListVerifications)
	r.GET("/verifications/:id", h.GetVerification)
	r.POST("/verifications/:id/outcome", h.ReportOutcome)
	r.GET("/usage", h.Usage)
}

// RegisterFeedRoute sets up the WebSocket decision feed.
func (h *Handler) RegisterFeedRoute(r *gin.RouterGroup) {
	r.GET("/ws/decisions", h.DecisionFeed)
}

// Verify handles POST /v1/verify.
func (h *Handler) Verify(c *gin.Context) {
	p, ok := partner.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	start := time.Now()
	resp, err := h.service.Verify(c.Request.Context(), p, req)
	if err != nil {
		h.record(p, c, statusFor(err), "", start)
		h.writeError(c, err)
		return
	}

	h.record(p, c, http.StatusOK, resp.Decision, start)
	c.JSON(http.StatusOK, resp)
}

// VerifyBatch handles POST /v1/verify/batch.
func (h *Handler) VerifyBatch(c *gin.Context) {
	p, ok := partner.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req BatchVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	start := time.Now()
	resp, err := h.service.VerifyBatch(c.Request.Context(), p, req)
	if err != nil {
		h.record(p, c, statusFor(err), "", start)
		h.writeError(c, err)
		return
	}

	h.record(p, c, http.StatusOK, "", start)
	c.JSON(http.StatusOK, resp)
}

// GetVerification handles GET /v1/verifications/:id.
func (h *Handler) GetVerification(c *gin.Context) {
	p, ok := partner.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	resp, err := h.service.GetVerification(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ReportOutcome handles POST /v1/verifications/:id/outcome.
func (h *Handler) ReportOutcome(c *gin.Context) {
	p, ok := partner.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req OutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	if err := h.service.ReportOutcome(c.Request.Context(), p, c.Param("id"), req.Fraud); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// ListVerifications handles GET /v1/verifications.
func (h *Handler) ListVerifications(c *gin.Context) {
	p, ok := partner.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	resp, err := h.service.ListVerifications(c.Request.Context(), p, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifications": resp, "count": len(resp)})
}

// Usage handles GET /v1/usage.
func (h *Handler) Usage(c *gin.Context) {
	p, ok := partner.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	summary, err := h.analytics.Usage(c.Request.Context(), p.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DecisionFeed handles GET /ws/decisions.
func (h *Handler) DecisionFeed(c *gin.Context) {
	p, ok := partner.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	h.feed.HandleWebSocket(c.Writer, c.Request, p.ID)
}

// record appends an analytics entry for a completed request.
func (h *Handler) record(p *partner.Partner, c *gin.Context, status int, decision string, start time.Time) {
	if h.analytics == nil {
		return
	}
	h.analytics.Record(analytics.RequestLog{
		PartnerID: p.ID,
		Endpoint:  c.FullPath(),
		Method:    c.Request.Method,
		Status:    status,
		Decision:  decision,
		LatencyMs: time.Since(start).Milliseconds(),
	})
}

// writeError maps service errors onto HTTP responses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var quota *ratelimit.QuotaExceededError
	var invalid *InvalidTransactionError

	switch {
	case errors.As(err, &quota):
		retryAfter := int(time.Until(quota.ResetAt).Seconds()) + 1
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "rate_limited",
			"message": quota.Error(),
			"resetAt": quota.ResetAt.UTC(),
		})
	case errors.As(err, &invalid), errors.Is(err, ErrEmptyBatch), errors.Is(err, ErrBatchTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	case errors.Is(err, risk.ErrScoreNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "verification not found",
		})
	case errors.Is(err, ErrOutcomeDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "unavailable",
			"message": err.Error(),
		})
	case isUnavailable(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "unavailable",
			"message": "verification temporarily unavailable",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "verification failed",
		})
	}
}

// statusFor returns the HTTP status writeError would emit, for analytics.
func statusFor(err error) int {
	var quota *ratelimit.QuotaExceededError
	var invalid *InvalidTransactionError
	switch {
	case errors.As(err, &quota):
		return http.StatusTooManyRequests
	case errors.As(err, &invalid), errors.Is(err, ErrEmptyBatch), errors.Is(err, ErrBatchTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, risk.ErrScoreNotFound):
		return http.StatusNotFound
	case isUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
