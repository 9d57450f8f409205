package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// CourseRepository defines persistence operations for courses.
type CourseRepository interface {
	GetByID(ctx context.Context, id uint) (models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	ListByStatus(ctx context.Context, statuses ...models.CourseStatus) ([]models.Course, error)
	ListCompletedWithoutCertificates(ctx context.Context) ([]models.Course, error)
	CompareAndSetStatus(ctx context.Context, id uint, from, to models.CourseStatus, extra map[string]interface{}) (bool, error)
	MarkCertificatesGenerated(ctx context.Context, id uint, at time.Time) error
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository instantiates a GORM-backed repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) Create(ctx context.Context, course *models.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepository) ListByStatus(ctx context.Context, statuses ...models.CourseStatus) ([]models.Course, error) {
	query := r.db.WithContext(ctx).Model(&models.Course{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", stringsOf(statuses))
	}

	var courses []models.Course
	if err := query.Order("id ASC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) ListCompletedWithoutCertificates(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(models.CourseStatusCompleted)).
		Where("certificates_generated_at IS NULL").
		Order("id ASC").
		Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) CompareAndSetStatus(ctx context.Context, id uint, from, to models.CourseStatus, extra map[string]interface{}) (bool, error) {
	return compareAndSetStatus(ctx, r.db, &models.Course{}, id, string(from), string(to), extra)
}

func (r *courseRepository) MarkCertificatesGenerated(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Course{}).
		Where("id = ?", id).
		Update("certificates_generated_at", at).Error
}
