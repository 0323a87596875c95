package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enroll-api/internal/models"
	appErrors "github.com/noah-isme/course-enroll-api/pkg/errors"
	"github.com/noah-isme/course-enroll-api/pkg/export"
)

const catalogCachePattern = "courses:*"

type courseRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, id string, patch models.CoursePatch) error
	Delete(ctx context.Context, id string) error
}

type rosterReader interface {
	RosterByCourse(ctx context.Context, courseID string) ([]models.RosterEntry, error)
}

// CreateCourseRequest describes the catalog creation payload. Capacity is
// validated at this boundary, not in the repository.
type CreateCourseRequest struct {
	Code        string  `json:"code" validate:"required,min=1"`
	Title       string  `json:"title" validate:"required,min=1"`
	Description *string `json:"description"`
	Capacity    int     `json:"capacity" validate:"required,min=1"`
}

type cachedCatalogPage struct {
	Courses []models.Course `json:"courses"`
	Total   int             `json:"total"`
}

// CourseService orchestrates catalog use cases.
type CourseService struct {
	repo      courseRepository
	roster    rosterReader
	cache     *CacheService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, roster rosterReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:      repo,
		roster:    roster,
		cache:     cache,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// List returns catalog entries with pagination metadata. The public listing is
// served through the cache when enabled.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	key := fmt.Sprintf("courses:skip=%d:limit=%d", filter.Skip, filter.Limit)

	var cached cachedCatalogPage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Courses, s.pagination(filter, cached.Total), nil
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	if err := s.cache.Set(ctx, key, cachedCatalogPage{Courses: courses, Total: total}, 0); err != nil {
		s.logger.Warn("failed to cache course listing", zap.Error(err))
	}

	return courses, s.pagination(filter, total), nil
}

// Get returns a single catalog entry.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create adds a catalog entry.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		Code:        req.Code,
		Title:       req.Title,
		Description: req.Description,
		Capacity:    req.Capacity,
		Active:      true,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// Update applies a partial patch to a catalog entry.
func (s *CourseService) Update(ctx context.Context, id string, patch models.CoursePatch) (*models.Course, error) {
	if err := s.validator.Struct(patch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course patch")
	}

	if err := s.repo.Update(ctx, id, patch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateCatalog(ctx)
	return s.Get(ctx, id)
}

// Delete removes a catalog entry together with its enrollments.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}

	s.invalidateCatalog(ctx)
	return nil
}

// Roster returns the enrolled students for a course.
func (s *CourseService) Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	if _, err := s.Get(ctx, courseID); err != nil {
		return nil, err
	}
	entries, err := s.roster.RosterByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return entries, nil
}

// ExportRoster renders the roster of a course as CSV or PDF.
func (s *CourseService) ExportRoster(ctx context.Context, courseID, format string) ([]byte, string, error) {
	course, err := s.Get(ctx, courseID)
	if err != nil {
		return nil, "", err
	}
	entries, err := s.Roster(ctx, courseID)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Email", "Full Name", "Enrolled At"},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, entry := range entries {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Email":       entry.Email,
			"Full Name":   entry.FullName,
			"Enrolled At": entry.EnrolledAt.Format("2006-01-02 15:04"),
		})
	}

	switch format {
	case "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, fmt.Sprintf("Roster %s", course.Code))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func (s *CourseService) pagination(filter models.CourseFilter, total int) *models.Pagination {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}
	return &models.Pagination{Skip: skip, Limit: limit, TotalCount: total}
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, catalogCachePattern); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}
