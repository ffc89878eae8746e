package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitgrid-app/backend-chat/internal/dto"
	"github.com/fitgrid-app/backend-chat/internal/service"
	"github.com/fitgrid-app/backend-chat/pkg/logger"
)

// stubAuthorizeService returns a canned answer and records the last request
type stubAuthorizeService struct {
	answer  *dto.AuthorizeResponse
	lastReq *dto.AuthorizeRequest
}

func (s *stubAuthorizeService) Authorize(ctx context.Context, req *dto.AuthorizeRequest) *dto.AuthorizeResponse {
	s.lastReq = req
	return s.answer
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func setupWebhookRouter(t *testing.T, authorize service.AuthorizeService, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewWebhookHandler(authorize, secret, logger.NewNop())
	h.RegisterRoutes(r.Group(""))
	return r
}

func postAuthorize(r *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/authorize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookAuthorize_Allow(t *testing.T) {
	stub := &stubAuthorizeService{answer: &dto.AuthorizeResponse{Allow: true}}
	r := setupWebhookRouter(t, stub, "wh-secret")

	body, _ := json.Marshal(dto.AuthorizeRequest{
		ChannelID: "t7_group_99",
		UserID:    "user-1",
		Action:    dto.ActionSend,
	})
	w := postAuthorize(r, body, signBody("wh-secret", body))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.AuthorizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Allow)
	assert.Empty(t, resp.Reason)

	require.NotNil(t, stub.lastReq)
	assert.Equal(t, "t7_group_99", stub.lastReq.ChannelID)
	assert.Equal(t, "user-1", stub.lastReq.UserID)
	assert.Equal(t, dto.ActionSend, stub.lastReq.Action)
}

func TestWebhookAuthorize_DenyReasonPassedThrough(t *testing.T) {
	stub := &stubAuthorizeService{answer: &dto.AuthorizeResponse{
		Allow:  false,
		Reason: service.DenyCrossTenant,
	}}
	r := setupWebhookRouter(t, stub, "wh-secret")

	body, _ := json.Marshal(dto.AuthorizeRequest{
		ChannelID: "t7_group_99",
		UserID:    "user-9",
		Action:    dto.ActionRead,
	})
	w := postAuthorize(r, body, signBody("wh-secret", body))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.AuthorizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Allow)
	assert.Equal(t, service.DenyCrossTenant, resp.Reason)
}

func TestWebhookAuthorize_BadSignature(t *testing.T) {
	stub := &stubAuthorizeService{answer: &dto.AuthorizeResponse{Allow: true}}
	r := setupWebhookRouter(t, stub, "wh-secret")

	body, _ := json.Marshal(dto.AuthorizeRequest{
		ChannelID: "t7_group_99",
		UserID:    "user-1",
		Action:    dto.ActionJoin,
	})
	w := postAuthorize(r, body, signBody("wrong-secret", body))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, stub.lastReq)
}

func TestWebhookAuthorize_MissingSignature(t *testing.T) {
	stub := &stubAuthorizeService{answer: &dto.AuthorizeResponse{Allow: true}}
	r := setupWebhookRouter(t, stub, "wh-secret")

	body, _ := json.Marshal(dto.AuthorizeRequest{
		ChannelID: "t7_group_99",
		UserID:    "user-1",
		Action:    dto.ActionJoin,
	})
	w := postAuthorize(r, body, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, stub.lastReq)
}

func TestWebhookAuthorize_SignatureTamperedBody(t *testing.T) {
	stub := &stubAuthorizeService{answer: &dto.AuthorizeResponse{Allow: true}}
	r := setupWebhookRouter(t, stub, "wh-secret")

	body, _ := json.Marshal(dto.AuthorizeRequest{
		ChannelID: "t7_group_99",
		UserID:    "user-1",
		Action:    dto.ActionSend,
	})
	signature := signBody("wh-secret", body)
	tampered := bytes.Replace(body, []byte("user-1"), []byte("user-2"), 1)
	w := postAuthorize(r, tampered, signature)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookAuthorize_EmptySecretSkipsVerification(t *testing.T) {
	stub := &stubAuthorizeService{answer: &dto.AuthorizeResponse{Allow: true}}
	r := setupWebhookRouter(t, stub, "")

	body, _ := json.Marshal(dto.AuthorizeRequest{
		ChannelID: "t7_group_99",
		UserID:    "user-1",
		Action:    dto.ActionSend,
	})
	w := postAuthorize(r, body, "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.AuthorizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Allow)
}

func TestWebhookAuthorize_MalformedBodyDenies(t *testing.T) {
	stub := &stubAuthorizeService{answer: &dto.AuthorizeResponse{Allow: true}}
	r := setupWebhookRouter(t, stub, "wh-secret")

	body := []byte(`{"channel_id":`)
	w := postAuthorize(r, body, signBody("wh-secret", body))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.AuthorizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Allow)
	assert.Equal(t, service.DenyInvalidChannel, resp.Reason)
	assert.Nil(t, stub.lastReq)
}

func TestWebhookAuthorize_MissingFieldsDeny(t *testing.T) {
	stub := &stubAuthorizeService{answer: &dto.AuthorizeResponse{Allow: true}}
	r := setupWebhookRouter(t, stub, "wh-secret")

	body := []byte(`{"action":"send"}`)
	w := postAuthorize(r, body, signBody("wh-secret", body))

	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.AuthorizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Allow)
	assert.Nil(t, stub.lastReq)
}
