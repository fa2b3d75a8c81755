package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"rental-agents-service/internal/config"
	"rental-agents-service/internal/events"
	"rental-agents-service/internal/middleware"
	"rental-agents-service/internal/pkg/clock"
	"rental-agents-service/internal/pkg/jwt"
	"rental-agents-service/internal/pkg/ratelimit"
	"rental-agents-service/internal/pkg/session"
	"rental-agents-service/internal/repository/memory"
	"rental-agents-service/internal/service/verification"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const webhookSecret = "s3cret"

var (
	now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	keyOnce sync.Once
	signer  *jwt.Signer
	tokens  *jwt.Verifier
)

func init() {
	gin.SetMode(gin.TestMode)
}

func keys(t *testing.T) (*jwt.Signer, *jwt.Verifier) {
	t.Helper()
	keyOnce.Do(func() {
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		signer = jwt.NewSigner(priv, "identity", "rentals", "")
		tokens = jwt.NewVerifier(&priv.PublicKey, "identity", "rentals")
	})
	return signer, tokens
}

// identityStub answers every document with the configured verdict.
type identityStub struct {
	result verification.Result
}

func (s *identityStub) VerifyIdentity(context.Context, verification.Document) (*verification.Result, error) {
	r := s.result
	return &r, nil
}

type testEnv struct {
	t        *testing.T
	router   *gin.Engine
	store    *memory.Store
	identity *identityStub
	events   *events.Recorder
	registry *prometheus.Registry
	redis    *miniredis.Miniredis
}

func newEnv(t *testing.T, rule ratelimit.Rule) *testEnv {
	t.Helper()
	_, verifier := keys(t)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := config.AppConfig{
		TrialDuration:        14 * 24 * time.Hour,
		ReferralCodeAttempts: 5,
		FrontendURL:          "https://rentals.example.com",
		ValidateRateLimit:    rule,
		KYCWebhookSecret:     webhookSecret,
	}

	env := &testEnv{
		t:        t,
		store:    memory.NewStore(clock.Fixed(now)),
		identity: &identityStub{result: verification.Result{Approved: true, Reference: "ref-1"}},
		events:   &events.Recorder{},
		registry: prometheus.NewRegistry(),
		redis:    mr,
	}

	checks := map[string]func(ctx context.Context) error{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}

	logger := zaptest.NewLogger(t)
	handlers, hub, _, err := Wire(cfg, Components{
		Store:        env.store,
		Tokens:       verifier,
		Limiter:      ratelimit.NewRateLimiter(rdb),
		Identity:     env.identity,
		Revocations:  session.NewRevocations(rdb),
		Publisher:    env.events,
		Registry:     env.registry,
		Clock:        clock.Fixed(now),
		HealthChecks: checks,
	}, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	env.router = gin.New()
	SetupRouter(env.router, logger, handlers)
	return env
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (e *testEnv) token(userID int64, roles ...string) string {
	s, _ := keys(e.t)
	if len(roles) == 0 {
		roles = []string{jwt.RoleAgent}
	}
	tok, _, err := s.AccessToken(userID, roles, time.Hour)
	require.NoError(e.t, err)
	return tok
}

func (e *testEnv) do(method, path, token string, body interface{}, headers ...string) (int, envelope) {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func dataMap(t *testing.T, env envelope) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &m))
	return m
}

func (e *testEnv) apply(userID int64, referralCode string) map[string]interface{} {
	e.t.Helper()
	code, body := e.do(http.MethodPost, "/api/v1/agents/apply", e.token(userID), map[string]interface{}{
		"address":         "12 Admiralty Way, Lekki",
		"whatsapp_number": "+2348000000000",
		"referral_code":   referralCode,
	})
	require.Equal(e.t, http.StatusCreated, code, body.Error)
	return dataMap(e.t, body)
}

func (e *testEnv) verifyByAdmin(agentID float64) {
	e.t.Helper()
	code, body := e.do(http.MethodPut, fmt.Sprintf("/api/v1/admin/agents/%d/verify", int64(agentID)),
		e.token(900, jwt.RoleAdmin), nil)
	require.Equal(e.t, http.StatusOK, code, body.Error)
}

var nin = map[string]string{
	"id_type":      "nin",
	"id_number":    "12345678901",
	"selfie_image": "data:image/jpeg;base64,AAAA",
}

func TestAgentLifecycle(t *testing.T) {
	env := newEnv(t, ratelimit.Rule{Max: 100, Window: time.Minute})

	profile := env.apply(7, "")
	assert.Equal(t, "not_verified", profile["verification_status"])
	assert.Equal(t, "pending_verification", profile["subscription_status"])
	assert.Len(t, profile["referral_code"], 11)

	code, body := env.do(http.MethodGet, "/api/v1/agents/eligibility", env.token(7), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, dataMap(t, body)["allowed"])
	assert.Equal(t, "not_verified", dataMap(t, body)["reason"])

	code, body = env.do(http.MethodPost, "/api/v1/properties/authorize", env.token(7), nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "not_verified", dataMap(t, body)["reason"])

	code, body = env.do(http.MethodPost, "/api/v1/verification/submit", env.token(7), nin)
	require.Equal(t, http.StatusOK, code, body.Error)
	assert.Equal(t, "verified", dataMap(t, body)["verification_status"])
	assert.Equal(t, "trial", dataMap(t, body)["subscription_status"])

	code, body = env.do(http.MethodPost, "/api/v1/properties/authorize", env.token(7), nil)
	require.Equal(t, http.StatusOK, code, body.Error)
	assert.Equal(t, "active_trial", dataMap(t, body)["reason"])

	code, body = env.do(http.MethodGet, "/api/v1/agents/subscription/status", env.token(7), nil)
	require.Equal(t, http.StatusOK, code)
	status := dataMap(t, body)
	assert.Equal(t, "trial", status["subscription_status"])
	assert.Equal(t, float64(14), status["days_remaining"])

	assert.Len(t, env.events.OfType("agent.verified"), 1)
}

func TestApplyTwiceConflicts(t *testing.T) {
	env := newEnv(t, ratelimit.Rule{Max: 100, Window: time.Minute})
	env.apply(7, "")

	code, body := env.do(http.MethodPost, "/api/v1/agents/apply", env.token(7), map[string]interface{}{
		"address": "x", "whatsapp_number": "+2348000000000",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "you already have an agent profile", body.Message)
}

func TestProfileWithoutApplication(t *testing.T) {
	env := newEnv(t, ratelimit.Rule{Max: 100, Window: time.Minute})

	code, body := env.do(http.MethodGet, "/api/v1/agents/profile", env.token(7), nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, body.Success)

	code, _ = env.do(http.MethodPost, "/api/v1/properties/authorize", env.token(7), nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestReferralFlow(t *testing.T) {
	env := newEnv(t, ratelimit.Rule{Max: 100, Window: time.Minute})

	referrer := env.apply(1, "")
	refCode := referrer["referral_code"].(string)

	code, body := env.do(http.MethodGet, "/api/v1/agents/referral/validate?code="+refCode, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, dataMap(t, body)["valid"])

	env.verifyByAdmin(referrer["id"].(float64))

	code, body = env.do(http.MethodGet, "/api/v1/agents/referral/validate?code="+strings.ToLower(refCode), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, dataMap(t, body)["valid"])

	newcomer := env.apply(2, refCode)
	assert.Equal(t, refCode, newcomer["referred_by_code"])

	code, body = env.do(http.MethodGet, "/api/v1/agents/referral/stats", env.token(1), nil)
	require.Equal(t, http.StatusOK, code)
	stats := dataMap(t, body)
	assert.Equal(t, float64(1), stats["total_referrals"])
	assert.Equal(t, float64(1), stats["free_listing_weeks"])
	assert.Equal(t, "https://rentals.example.com/register?ref="+refCode, stats["referral_link"])
	assert.Len(t, stats["referrals"], 1)

	// a second application of any code is refused
	code, body = env.do(http.MethodPost, "/api/v1/agents/referral/apply", env.token(2), map[string]string{
		"referral_code": refCode,
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "you have already used a referral code", body.Message)
}

func TestSelfReferralRejected(t *testing.T) {
	env := newEnv(t, ratelimit.Rule{Max: 100, Window: time.Minute})
	me := env.apply(1, "")
	env.verifyByAdmin(me["id"].(float64))

	code, body := env.do(http.MethodPost, "/api/v1/agents/referral/apply", env.token(1), map[string]string{
		"referral_code": me["referral_code"].(string),
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "you cannot use your own referral code", body.Message)
}

func TestValidateIsRateLimited(t *testing.T) {
	env := newEnv(t, ratelimit.Rule{Max: 2, Window: time.Minute})

	for i := 0; i < 2; i++ {
		code, _ := env.do(http.MethodGet, "/api/v1/agents/referral/validate?code=REFAAAA1111", "", nil)
		require.Equal(t, http.StatusOK, code)
	}
	code, _ := env.do(http.MethodGet, "/api/v1/agents/referral/validate?code=REFAAAA1111", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestWebhookVerdict(t *testing.T) {
	env := newEnv(t, ratelimit.Rule{Max: 100, Window: time.Minute})
	env.identity.result = verification.Result{Pending: true}

	env.apply(7, "")
	code, body := env.do(http.MethodPost, "/api/v1/verification/submit", env.token(7), nin)
	require.Equal(t, http.StatusOK, code, body.Error)
	assert.Equal(t, "pending", dataMap(t, body)["verification_status"])

	payload := map[string]interface{}{"user_id": 7, "request_id": "kyc-1", "status": "approved"}

	code, _ = env.do(http.MethodPost, "/api/v1/verification/webhook", "", payload)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = env.do(http.MethodPost, "/api/v1/verification/webhook", "", payload, middleware.WebhookSecretHeader, webhookSecret)
	require.Equal(t, http.StatusOK, code)

	// redelivery is acknowledged
	code, _ = env.do(http.MethodPost, "/api/v1/verification/webhook", "", payload, middleware.WebhookSecretHeader, webhookSecret)
	assert.Equal(t, http.StatusOK, code)

	code, body = env.do(http.MethodGet, "/api/v1/verification/status", env.token(7), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "verified", dataMap(t, body)["verification_status"])
	assert.Len(t, env.events.OfType("agent.verified"), 1)
}

func TestSubscriptionRoutes(t *testing.T) {
	env := newEnv(t, ratelimit.Rule{Max: 100, Window: time.Minute})
	a := env.apply(7, "")

	code, _ := env.do(http.MethodPost, "/api/v1/agents/subscription", env.token(7), map[string]string{
		"plan": "basic", "billing_cycle": "monthly",
	})
	assert.Equal(t, http.StatusForbidden, code)

	env.verifyByAdmin(a["id"].(float64))

	code, body := env.do(http.MethodPost, "/api/v1/agents/subscription", env.token(7), map[string]string{
		"plan": "gold", "billing_cycle": "monthly",
	})
	assert.Equal(t, http.StatusBadRequest, code, body.Error)

	code, body = env.do(http.MethodPost, "/api/v1/agents/subscription", env.token(7), map[string]string{
		"plan": "premium", "billing_cycle": "monthly",
	})
	require.Equal(t, http.StatusOK, code, body.Error)
	assert.Equal(t, "active", dataMap(t, body)["subscription_status"])
	assert.Equal(t, "premium", dataMap(t, body)["subscription_plan"])

	code, body = env.do(http.MethodPost, "/api/v1/agents/subscription/cancel", env.token(7), nil)
	require.Equal(t, http.StatusOK, code, body.Error)
	assert.Equal(t, "cancelled", dataMap(t, body)["subscription_status"])

	code, body = env.do(http.MethodPost, "/api/v1/agents/subscription/renew", env.token(7), map[string]string{
		"billing_cycle": "yearly",
	})
	require.Equal(t, http.StatusOK, code, body.Error)
	assert.Equal(t, "active", dataMap(t, body)["subscription_status"])
	assert.Len(t, env.events.OfType("agent.subscription_activated"), 2)
}

func TestAdminRoutes(t *testing.T) {
	env := newEnv(t, ratelimit.Rule{Max: 100, Window: time.Minute})
	env.identity.result = verification.Result{Pending: true}
	a := env.apply(7, "")
	id := int64(a["id"].(float64))
	env.apply(8, "")

	code, body := env.do(http.MethodPost, "/api/v1/verification/submit", env.token(7), nin)
	require.Equal(t, http.StatusOK, code, body.Error)

	code, _ = env.do(http.MethodGet, fmt.Sprintf("/api/v1/admin/agents/%d", id), env.token(7), nil)
	assert.Equal(t, http.StatusForbidden, code)

	admin := env.token(900, jwt.RoleAdmin)

	code, _ = env.do(http.MethodGet, "/api/v1/admin/agents/abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = env.do(http.MethodGet, "/api/v1/admin/agents/999", admin, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = env.do(http.MethodGet, "/api/v1/admin/agents?status=pending", admin, nil)
	require.Equal(t, http.StatusOK, code, body.Error)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, float64(id), list[0]["id"])

	code, _ = env.do(http.MethodGet, "/api/v1/admin/agents?status=bogus", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = env.do(http.MethodPut, fmt.Sprintf("/api/v1/admin/agents/%d/reject", id), admin, map[string]string{
		"reason": "blurry document",
	})
	require.Equal(t, http.StatusOK, code, body.Error)
	assert.Equal(t, "rejected", dataMap(t, body)["verification_status"])
	assert.Len(t, env.events.OfType("agent.rejected"), 1)

	// rejected agents may be approved later
	env.verifyByAdmin(float64(id))

	code, body = env.do(http.MethodPut, fmt.Sprintf("/api/v1/admin/agents/%d/verify", id), admin, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "agent is already verified", body.Message)
}

func TestTokenRevocation(t *testing.T) {
	env := newEnv(t, ratelimit.Rule{Max: 100, Window: time.Minute})
	s, _ := keys(t)
	admin := env.token(900, jwt.RoleAdmin)

	tok, jti, err := s.AccessToken(7, []string{jwt.RoleAgent}, time.Hour)
	require.NoError(t, err)
	env.apply(7, "")

	code, _ := env.do(http.MethodGet, "/api/v1/agents/profile", tok, nil)
	require.Equal(t, http.StatusOK, code)

	code, body := env.do(http.MethodPost, "/api/v1/admin/tokens/revoke", tok, map[string]string{"jti": jti})
	assert.Equal(t, http.StatusForbidden, code, "agents cannot revoke")

	code, body = env.do(http.MethodPost, "/api/v1/admin/tokens/revoke", admin, map[string]interface{}{
		"jti": jti, "ttl_seconds": 3600,
	})
	require.Equal(t, http.StatusOK, code, body.Error)

	code, body = env.do(http.MethodGet, "/api/v1/agents/profile", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "token has been revoked", body.Message)

	code, _ = env.do(http.MethodDelete, "/api/v1/admin/tokens/"+jti, admin, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = env.do(http.MethodGet, "/api/v1/agents/profile", tok, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newEnv(t, ratelimit.Rule{Max: 100, Window: time.Minute})

	code, _ := env.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = env.do(http.MethodGet, "/api/v1/agents/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rental_agents_http_requests_total")

	env.redis.Close()
	code, _ = env.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
