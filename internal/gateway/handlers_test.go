package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdict-labs/verdict/internal/analytics"
	"github.com/verdict-labs/verdict/internal/cache"
	"github.com/verdict-labs/verdict/internal/logging"
	"github.com/verdict-labs/verdict/internal/model"
	"github.com/verdict-labs/verdict/internal/partner"
	"github.com/verdict-labs/verdict/internal/ratelimit"
	"github.com/verdict-labs/verdict/internal/risk"
	"github.com/verdict-labs/verdict/internal/trust"
)

func newTestRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c := cache.NewMemory()
	t.Cleanup(c.Stop)

	logger := logging.New("error", "text")
	manager := partner.NewManager(partner.NewMemoryStore(), nil)
	rawKey, _, err := manager.Provision(context.Background(), "Acme Payments", partner.TierGrowth)
	require.NoError(t, err)

	trustSvc := trust.NewService(trust.NewMemoryStore(), nil)
	svc := NewService(
		ratelimit.New(c, time.Hour),
		risk.NewEngine(trustSvc),
		model.NewProvider(model.NewMemoryStore(), nil),
		risk.NewMemoryStore(),
		model.NewMemorySampleStore(),
		nil,
		logger,
	)
	analyticsSvc := analytics.NewService(analytics.NewMemoryStore(), nil, logger)
	handler := NewHandler(svc, analyticsSvc, nil)

	r := gin.New()
	r.Use(partner.Middleware(manager))
	v1 := r.Group("/v1", partner.RequireAuth())
	handler.RegisterRoutes(v1)

	return r, rawKey
}

func doJSON(r *gin.Engine, method, path, key string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVerifyEndpointRequiresAuth(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/v1/verify", "", validRequest("tx_1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/verify", "vk_bogus", validRequest("tx_1"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifyEndpoint(t *testing.T) {
	r, key := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/v1/verify", key, validRequest("tx_1"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "tx_1", resp.TransactionID)
	assert.Contains(t, []string{"allow", "review", "block"}, resp.Decision)
	assert.NotEmpty(t, resp.RequestID)
}

func TestVerifyEndpointRejectsBadPayload(t *testing.T) {
	r, key := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/verify", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Valid JSON, missing required fields.
	w = doJSON(r, http.MethodPost, "/v1/verify", key, VerifyRequest{Amount: 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBatchEndpointPreservesOrder(t *testing.T) {
	r, key := newTestRouter(t)

	body := BatchVerifyRequest{Transactions: []VerifyRequest{
		validRequest("tx_1"),
		{TransactionID: "tx_2"}, // invalid
		validRequest("tx_3"),
	}}
	w := doJSON(r, http.MethodPost, "/v1/verify/batch", key, body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp BatchVerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "tx_1", resp.Results[0].Result.TransactionID)
	assert.NotEmpty(t, resp.Results[1].Error)
	assert.Equal(t, "tx_3", resp.Results[2].Result.TransactionID)
}

func TestGetVerificationEndpoint(t *testing.T) {
	r, key := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/v1/verify", key, validRequest("tx_1"))
	require.Equal(t, http.StatusOK, w.Code)
	var created VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doJSON(r, http.MethodGet, "/v1/verifications/"+created.RequestID, key, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/v1/verifications/risk_missing", key, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListVerificationsEndpoint(t *testing.T) {
	r, key := newTestRouter(t)

	for i := 0; i < 3; i++ {
		w := doJSON(r, http.MethodPost, "/v1/verify", key, validRequest(fmt.Sprintf("tx_%d", i)))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(r, http.MethodGet, "/v1/verifications?limit=2", key, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Verifications []VerifyResponse `json:"verifications"`
		Count         int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestUsageEndpoint(t *testing.T) {
	r, key := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/v1/verify", key, validRequest("tx_1"))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/v1/usage", key, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summary analytics.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.NotEmpty(t, summary.PartnerID)
}

func TestRateLimitedEndpointReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := cache.NewMemory()
	t.Cleanup(c.Stop)
	logger := logging.New("error", "text")
	manager := partner.NewManager(partner.NewMemoryStore(), nil)
	rawKey, _, err := manager.Provision(context.Background(), "Tiny Co", partner.TierFree)
	require.NoError(t, err)

	trustSvc := trust.NewService(trust.NewMemoryStore(), nil)
	svc := NewService(
		ratelimit.New(c, time.Hour),
		risk.NewEngine(trustSvc),
		model.NewProvider(model.NewMemoryStore(), nil),
		risk.NewMemoryStore(),
		model.NewMemorySampleStore(),
		nil,
		logger,
	)
	handler := NewHandler(svc, analytics.NewService(analytics.NewMemoryStore(), nil, logger), nil)

	r := gin.New()
	r.Use(partner.Middleware(manager))
	v1 := r.Group("/v1", partner.RequireAuth())
	handler.RegisterRoutes(v1)

	// Burn the whole free-tier budget in one batch, then overflow.
	big := BatchVerifyRequest{Transactions: make([]VerifyRequest, partner.LimitForTier(partner.TierFree))}
	for i := range big.Transactions {
		big.Transactions[i] = validRequest(fmt.Sprintf("tx_%d", i))
	}
	w := doJSON(r, http.MethodPost, "/v1/verify/batch", rawKey, big)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/verify", rawKey, validRequest("tx_over"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
