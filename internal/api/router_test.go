package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buytime/backend/internal/api/middleware"
	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/core/service"
	"github.com/buytime/backend/internal/infrastructure/db/memory"
	"github.com/buytime/backend/internal/infrastructure/http/handlers"
	"github.com/buytime/backend/internal/infrastructure/webhook"
)

const jwtSecret = "router-test-secret"

var webhookSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("router-test-signing-key"))

type testServer struct {
	t        *testing.T
	handler  http.Handler
	verifier *webhook.Verifier
	seq      int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zerolog.Nop()
	store := memory.NewStore()

	verifier, err := webhook.NewVerifier(webhookSecret, time.Minute)
	require.NoError(t, err)
	auth, err := middleware.Auth(middleware.AuthConfig{Secret: jwtSecret})
	require.NoError(t, err)

	e := NewRouter(Deps{
		Ledger:         service.NewLedgerService(store.Balances(), nil, log),
		Preferences:    service.NewPreferencesService(store.Preferences(), log),
		Profile:        service.NewProfileService(store.Users(), log),
		Webhooks:       service.NewWebhookService(store.Users(), verifier, nil, nil, log),
		Auth:           auth,
		Health:         map[string]handlers.Pinger{"store": store},
		AllowedOrigins: []string{"*"},
		Registerer:     prometheus.NewRegistry(),
		Log:            log,
	})
	return &testServer{t: t, handler: e, verifier: verifier}
}

func (s *testServer) token(sub string) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := tok.SignedString([]byte(jwtSecret))
	require.NoError(s.t, err)
	return signed
}

// call sends a request as sub (anonymous when empty) and decodes the envelope.
func (s *testServer) call(method, path, sub, body string) (int, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sub != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(sub))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (s *testServer) deliver(body string) (int, map[string]any) {
	s.seq++
	id := "msg_" + strconv.Itoa(s.seq)
	sent := time.Now()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("svix-id", id)
	req.Header.Set("svix-timestamp", strconv.FormatInt(sent.Unix(), 10))
	req.Header.Set("svix-signature", s.verifier.Sign(id, sent, []byte(body)))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	require.Equal(t, true, body["success"], body)
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "data is not an object: %v", body)
	return d
}

func TestRouter_UserLifecycle(t *testing.T) {
	s := newTestServer(t)
	const sub = "user_lifecycle"

	code, _ := s.deliver(`{"type":"user.created","data":{"id":"user_lifecycle","email_addresses":[{"id":"e1","email_address":"ada@example.com"}],"primary_email_address_id":"e1","first_name":"Ada","last_name":"Lovelace"}}`)
	require.Equal(t, http.StatusOK, code)

	// Profile and defaults exist as soon as the user does.
	code, body := s.call(http.MethodGet, "/api/users/me", sub, "")
	require.Equal(t, http.StatusOK, code)
	me := data(t, body)
	assert.Equal(t, "ada@example.com", me["email"])
	assert.Equal(t, "Ada Lovelace", me["displayName"])
	assert.Equal(t, float64(0), me["balance"].(map[string]any)["availableMinutes"])

	code, body = s.call(http.MethodGet, "/api/preferences", sub, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(30), data(t, body)["focusDurationMinutes"])
	assert.Equal(t, "easy", data(t, body)["focusMode"])

	// A completed fun session earns 150%.
	code, body = s.call(http.MethodPost, "/api/balance/sessions", sub, `{"durationMinutes":25,"mode":"fun","status":"completed"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, float64(38), data(t, body)["rewardMinutes"])

	code, body = s.call(http.MethodGet, "/api/balance", sub, "")
	require.Equal(t, http.StatusOK, code)
	bal := data(t, body)
	assert.Equal(t, float64(38), bal["availableMinutes"])
	assert.Equal(t, float64(1), bal["currentStreakDays"])
	assert.Equal(t, float64(38), bal["today"].(map[string]any)["earnedMinutes"])

	code, body = s.call(http.MethodPatch, "/api/balance", sub, `{"availableMinutes":0}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), data(t, body)["availableMinutes"])

	code, _ = s.call(http.MethodDelete, "/api/users/me", sub, "")
	require.Equal(t, http.StatusOK, code)

	code, body = s.call(http.MethodGet, "/api/balance", sub, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "balance not found", body["error"])
}

func TestRouter_WebhookConvergence(t *testing.T) {
	s := newTestServer(t)
	const sub = "user_ooo"

	// Update before create provisions the user.
	code, _ := s.deliver(`{"type":"user.updated","data":{"id":"user_ooo","first_name":"ooo"}}`)
	require.Equal(t, http.StatusOK, code)
	code, body := s.call(http.MethodGet, "/api/users/me", sub, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ooo", data(t, body)["displayName"])

	// The late create is a no-op.
	code, _ = s.deliver(`{"type":"user.created","data":{"id":"user_ooo","first_name":"Late"}}`)
	require.Equal(t, http.StatusOK, code)
	_, body = s.call(http.MethodGet, "/api/users/me", sub, "")
	assert.Equal(t, "ooo", data(t, body)["displayName"])

	// Delete twice succeeds both times.
	for i := 0; i < 2; i++ {
		code, body = s.deliver(`{"type":"user.deleted","data":{"id":"user_ooo","deleted":true}}`)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, data(t, body)["received"])
	}
	code, _ = s.call(http.MethodGet, "/api/users/me", sub, "")
	assert.Equal(t, http.StatusNotFound, code)

	// Unknown event types are acknowledged.
	code, _ = s.deliver(`{"type":"session.created","data":{"id":"sess_1"}}`)
	assert.Equal(t, http.StatusOK, code)
}

func TestRouter_WebhookRejections(t *testing.T) {
	s := newTestServer(t)
	body := `{"type":"user.created","data":{"id":"user_forged"}}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(body))
	req.Header.Set("svix-id", "msg_forged")
	req.Header.Set("svix-timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("svix-signature", "v1,"+base64.StdEncoding.EncodeToString([]byte("forged")))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(body))
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"missing svix headers"}`, rec.Body.String())

	// Nothing was provisioned by either attempt.
	code, _ := s.call(http.MethodGet, "/api/users/me", "user_forged", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRouter_WebhookBodyTooLarge(t *testing.T) {
	s := newTestServer(t)
	oversized := `{"type":"user.created","data":{"id":"user_big","pad":"` + strings.Repeat("a", 1<<20) + `"}}`

	for name, contentLength := range map[string]int64{"declared": int64(len(oversized)), "chunked": -1} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(oversized))
			req.ContentLength = contentLength
			req.Header.Set("svix-id", "msg_big_"+name)
			req.Header.Set("svix-timestamp", strconv.FormatInt(time.Now().Unix(), 10))
			req.Header.Set("svix-signature", "v1,"+base64.StdEncoding.EncodeToString([]byte("unused")))
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		})
	}
}

func TestRouter_Validation(t *testing.T) {
	s := newTestServer(t)
	const sub = "user_validation"
	code, _ := s.deliver(`{"type":"user.created","data":{"id":"user_validation"}}`)
	require.Equal(t, http.StatusOK, code)

	tests := []struct {
		method, path, body string
		wantMsg            string
	}{
		{http.MethodPatch, "/api/balance", `{"availableMinutes":3.5}`, "availableMinutes must be an integer"},
		{http.MethodPatch, "/api/balance", `{"availableMinutes":-1}`, "availableMinutes must be at least 0"},
		{http.MethodPost, "/api/balance/sessions", `{"durationMinutes":1441,"mode":"fun","status":"completed"}`, "durationMinutes must be at most 1440"},
		{http.MethodPost, "/api/balance/sessions", `{"durationMinutes":7000000000000000000,"mode":"fun","status":"completed"}`, "durationMinutes must be at most 1440"},
		{http.MethodPatch, "/api/preferences", `{}`, domain.PublicMessage(domain.ErrEmptyPatch)},
		{http.MethodPatch, "/api/preferences", `{"focusDurationMinutes":241}`, "focusDurationMinutes must be at most 240"},
		{http.MethodPatch, "/api/users/me", `{"displayName":null}`, "displayName must be a string"},
	}
	for _, tt := range tests {
		code, body := s.call(tt.method, tt.path, sub, tt.body)
		assert.Equal(t, http.StatusBadRequest, code, "%s %s", tt.path, tt.body)
		assert.Equal(t, tt.wantMsg, body["error"], "%s %s", tt.path, tt.body)
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/balance", "/api/preferences", "/api/users/me"} {
		code, body := s.call(http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, code, path)
		assert.Equal(t, false, body["success"], path)
	}
}

func TestRouter_Operational(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.call(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, code)

	code, body := s.call(http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
