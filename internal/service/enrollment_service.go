package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enroll-api/internal/models"
	appErrors "github.com/noah-isme/course-enroll-api/pkg/errors"
)

type enrollmentRepository interface {
	Enroll(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
	DeleteOwned(ctx context.Context, id, userID string) error
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// EnrollRequest describes an enrollment creation payload.
type EnrollRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	CourseID string `json:"course_id" validate:"required"`
}

// EnrollmentService orchestrates the enrollment ledger. Capacity and
// duplicate checks happen inside the repository's locked transaction; this
// layer owns authorization and error mapping only.
type EnrollmentService struct {
	repo      enrollmentRepository
	users     userReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, users userReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, users: users, validator: validate, logger: logger}
}

// Enroll registers a user to a course. Students may only enroll themselves;
// admins may enroll any existing user.
func (s *EnrollmentService) Enroll(ctx context.Context, actor *models.User, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	switch actor.Role {
	case models.RoleAdmin:
		if _, err := s.users.FindByID(ctx, req.UserID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
		}
	case models.RoleStudent:
		if req.UserID != actor.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot enroll others")
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not enough permissions")
	}

	enrollment, err := s.repo.Enroll(ctx, req.UserID, req.CourseID)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("user_id", enrollment.UserID),
		zap.String("course_id", enrollment.CourseID),
	)
	return enrollment, nil
}

// Deregister removes an enrollment owned by the actor. Existence and
// ownership mismatch are reported identically.
func (s *EnrollmentService) Deregister(ctx context.Context, actor *models.User, id string) error {
	if err := s.repo.DeleteOwned(ctx, id, actor.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	return nil
}

// List returns ledger rows with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}
	return enrollments, &models.Pagination{Skip: skip, Limit: limit, TotalCount: total}, nil
}
