package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enroll-api/internal/middleware"
	"github.com/noah-isme/course-enroll-api/internal/models"
	"github.com/noah-isme/course-enroll-api/internal/service"
	appErrors "github.com/noah-isme/course-enroll-api/pkg/errors"
)

type stubEnrollmentStore struct {
	rows      map[string]models.Enrollment
	enrollErr error
}

func newStubEnrollmentStore() *stubEnrollmentStore {
	return &stubEnrollmentStore{rows: make(map[string]models.Enrollment)}
}

func (s *stubEnrollmentStore) Enroll(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	if s.enrollErr != nil {
		return nil, s.enrollErr
	}
	enrollment := models.Enrollment{ID: uuid.NewString(), UserID: userID, CourseID: courseID}
	s.rows[enrollment.ID] = enrollment
	return &enrollment, nil
}

func (s *stubEnrollmentStore) DeleteOwned(ctx context.Context, id, userID string) error {
	row, ok := s.rows[id]
	if !ok || row.UserID != userID {
		return sql.ErrNoRows
	}
	delete(s.rows, id)
	return nil
}

func (s *stubEnrollmentStore) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	out := make([]models.Enrollment, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, len(out), nil
}

// asUser injects an authenticated user the way the JWT middleware does.
func asUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(middleware.ContextUserKey, user)
		}
		c.Next()
	}
}

func newEnrollmentRouter(store *stubEnrollmentStore, users *stubUserStore, actor *models.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewEnrollmentService(store, users, nil, nil)
	h := NewEnrollmentHandler(svc)

	router := gin.New()
	group := router.Group("/enrollments", asUser(actor))
	group.POST("", h.Create)
	group.POST("/admin/enroll", h.AdminEnroll)
	group.DELETE("/:id", h.Delete)
	group.GET("", h.List)
	return router
}

func TestEnrollEndpointSelf(t *testing.T) {
	actor := &models.User{ID: "u1", Role: models.RoleStudent, Active: true}
	store := newStubEnrollmentStore()
	router := newEnrollmentRouter(store, newStubUserStore(), actor)

	rec := postJSON(t, router, "/enrollments", gin.H{"user_id": "u1", "course_id": "c1"})
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	var enrollment models.Enrollment
	require.NoError(t, json.Unmarshal(env.Data, &enrollment))
	assert.Equal(t, "u1", enrollment.UserID)
	assert.Equal(t, "c1", enrollment.CourseID)
	assert.NotEmpty(t, enrollment.ID)
}

func TestEnrollEndpointRequiresAuth(t *testing.T) {
	router := newEnrollmentRouter(newStubEnrollmentStore(), newStubUserStore(), nil)

	rec := postJSON(t, router, "/enrollments", gin.H{"user_id": "u1", "course_id": "c1"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEnrollEndpointStudentCannotEnrollOthers(t *testing.T) {
	actor := &models.User{ID: "u1", Role: models.RoleStudent, Active: true}
	router := newEnrollmentRouter(newStubEnrollmentStore(), newStubUserStore(), actor)

	rec := postJSON(t, router, "/enrollments", gin.H{"user_id": "u2", "course_id": "c1"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrForbidden.Code, env.Error.Code)
}

func TestEnrollEndpointCourseFull(t *testing.T) {
	actor := &models.User{ID: "u1", Role: models.RoleStudent, Active: true}
	store := newStubEnrollmentStore()
	store.enrollErr = appErrors.ErrCourseFull
	router := newEnrollmentRouter(store, newStubUserStore(), actor)

	rec := postJSON(t, router, "/enrollments", gin.H{"user_id": "u1", "course_id": "c1"})
	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrCourseFull.Code, env.Error.Code)
}

func TestAdminEnrollEndpoint(t *testing.T) {
	actor := &models.User{ID: "a1", Role: models.RoleAdmin, Active: true}
	users := newStubUserStore()
	users.users["b@x.com"] = &models.User{ID: "u2", Email: "b@x.com", Role: models.RoleStudent, Active: true}
	router := newEnrollmentRouter(newStubEnrollmentStore(), users, actor)

	rec := postJSON(t, router, "/enrollments/admin/enroll", gin.H{"user_id": "u2", "course_id": "c1"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminEnrollEndpointUnknownUser(t *testing.T) {
	actor := &models.User{ID: "a1", Role: models.RoleAdmin, Active: true}
	router := newEnrollmentRouter(newStubEnrollmentStore(), newStubUserStore(), actor)

	rec := postJSON(t, router, "/enrollments/admin/enroll", gin.H{"user_id": "ghost", "course_id": "c1"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeregisterEndpoint(t *testing.T) {
	actor := &models.User{ID: "u1", Role: models.RoleStudent, Active: true}
	store := newStubEnrollmentStore()
	router := newEnrollmentRouter(store, newStubUserStore(), actor)

	rec := postJSON(t, router, "/enrollments", gin.H{"user_id": "u1", "course_id": "c1"})
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	var enrollment models.Enrollment
	require.NoError(t, json.Unmarshal(env.Data, &enrollment))

	req := httptest.NewRequest(http.MethodDelete, "/enrollments/"+enrollment.ID, nil)
	del := httptest.NewRecorder()
	router.ServeHTTP(del, req)
	require.Equal(t, http.StatusOK, del.Code)
	assert.Contains(t, del.Body.String(), "deregistered")
	assert.Empty(t, store.rows)
}

func TestDeregisterEndpointForeignEnrollment(t *testing.T) {
	store := newStubEnrollmentStore()
	store.rows["e1"] = models.Enrollment{ID: "e1", UserID: "someone-else", CourseID: "c1"}
	actor := &models.User{ID: "u1", Role: models.RoleStudent, Active: true}
	router := newEnrollmentRouter(store, newStubUserStore(), actor)

	req := httptest.NewRequest(http.MethodDelete, "/enrollments/e1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Reported as missing, not forbidden, so IDs cannot be probed.
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, store.rows, 1)
}

func TestListEnrollmentsEndpoint(t *testing.T) {
	store := newStubEnrollmentStore()
	store.rows["e1"] = models.Enrollment{ID: "e1", UserID: "u1", CourseID: "c1"}
	actor := &models.User{ID: "a1", Role: models.RoleAdmin, Active: true}
	router := newEnrollmentRouter(store, newStubUserStore(), actor)

	req := httptest.NewRequest(http.MethodGet, "/enrollments?skip=0&limit=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data       []models.Enrollment `json:"data"`
		Pagination *models.Pagination  `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
	require.NotNil(t, body.Pagination)
	assert.Equal(t, 1, body.Pagination.TotalCount)
	assert.Equal(t, 10, body.Pagination.Limit)
}
