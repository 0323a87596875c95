package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enroll-api/internal/models"
	"github.com/noah-isme/course-enroll-api/internal/service"
	appErrors "github.com/noah-isme/course-enroll-api/pkg/errors"
)

type stubUserStore struct {
	users map[string]*models.User
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{users: make(map[string]*models.User)}
}

func (s *stubUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := s.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (s *stubUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubUserStore) Create(ctx context.Context, user *models.User) error {
	if _, ok := s.users[user.Email]; ok {
		return appErrors.ErrEmailTaken
	}
	user.ID = "u" + user.Email
	s.users[user.Email] = user
	return nil
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

func newAuthRouter(store *stubUserStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewAuthService(store, nil, nil, service.AuthConfig{Secret: "secret", Expiration: time.Hour})
	h := NewAuthHandler(svc)

	router := gin.New()
	router.POST("/auth/register", h.Register)
	router.POST("/auth/login", h.Login)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func postForm(t *testing.T, router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRegisterEndpoint(t *testing.T) {
	router := newAuthRouter(newStubUserStore())

	rec := postJSON(t, router, "/auth/register", gin.H{
		"email":     "a@x.com",
		"password":  "pw123456",
		"full_name": "A",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	var user map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "a@x.com", user["email"])
	assert.Equal(t, "STUDENT", user["role"])
	// The hash must never leave the server.
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRegisterEndpointMalformedBody(t *testing.T) {
	router := newAuthRouter(newStubUserStore())

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrValidation.Code, env.Error.Code)
}

func TestRegisterEndpointDuplicateEmail(t *testing.T) {
	router := newAuthRouter(newStubUserStore())

	payload := gin.H{"email": "a@x.com", "password": "pw123456", "full_name": "A"}
	require.Equal(t, http.StatusOK, postJSON(t, router, "/auth/register", payload).Code)

	rec := postJSON(t, router, "/auth/register", payload)
	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrEmailTaken.Code, env.Error.Code)
}

func TestLoginEndpoint(t *testing.T) {
	router := newAuthRouter(newStubUserStore())
	require.Equal(t, http.StatusOK, postJSON(t, router, "/auth/register", gin.H{
		"email": "a@x.com", "password": "pw123456", "full_name": "A",
	}).Code)

	rec := postForm(t, router, "/auth/login", url.Values{
		"username": {"a@x.com"},
		"password": {"pw123456"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	var res models.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "bearer", res.TokenType)
}

func TestLoginEndpointBadPassword(t *testing.T) {
	router := newAuthRouter(newStubUserStore())
	require.Equal(t, http.StatusOK, postJSON(t, router, "/auth/register", gin.H{
		"email": "a@x.com", "password": "pw123456", "full_name": "A",
	}).Code)

	rec := postForm(t, router, "/auth/login", url.Values{
		"username": {"a@x.com"},
		"password": {"wrong123"},
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, env.Error.Code)
}
