package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// ClassSubjectRepository defines persistence operations for class subjects. Course
// membership is resolved through the owning class.
type ClassSubjectRepository interface {
	GetByID(ctx context.Context, id uint) (models.ClassSubject, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.ClassSubject, error)
	ListByStatus(ctx context.Context, statuses ...models.ClassSubjectStatus) ([]models.ClassSubject, error)
	CourseIDOf(ctx context.Context, classSubjectID uint) (uint, error)
	GetSubject(ctx context.Context, classSubjectID uint) (models.Subject, error)
	CompareAndSetStatus(ctx context.Context, id uint, from, to models.ClassSubjectStatus) (bool, error)
}

type classSubjectRepository struct {
	db *gorm.DB
}

// NewClassSubjectRepository instantiates a GORM-backed repository.
func NewClassSubjectRepository(db *gorm.DB) ClassSubjectRepository {
	return &classSubjectRepository{db: db}
}

func (r *classSubjectRepository) GetByID(ctx context.Context, id uint) (models.ClassSubject, error) {
	var classSubject models.ClassSubject
	if err := r.db.WithContext(ctx).First(&classSubject, id).Error; err != nil {
		return models.ClassSubject{}, err
	}
	return classSubject, nil
}

func (r *classSubjectRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.ClassSubject, error) {
	var classSubjects []models.ClassSubject
	if err := r.db.WithContext(ctx).
		Model(&models.ClassSubject{}).
		Joins("JOIN classes ON classes.id = class_subjects.class_id").
		Where("classes.course_id = ?", courseID).
		Order("class_subjects.id ASC").
		Find(&classSubjects).Error; err != nil {
		return nil, err
	}
	return classSubjects, nil
}

func (r *classSubjectRepository) ListByStatus(ctx context.Context, statuses ...models.ClassSubjectStatus) ([]models.ClassSubject, error) {
	query := r.db.WithContext(ctx).Model(&models.ClassSubject{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", stringsOf(statuses))
	}

	var classSubjects []models.ClassSubject
	if err := query.Order("id ASC").Find(&classSubjects).Error; err != nil {
		return nil, err
	}
	return classSubjects, nil
}

func (r *classSubjectRepository) CourseIDOf(ctx context.Context, classSubjectID uint) (uint, error) {
	var class models.Class
	if err := r.db.WithContext(ctx).
		Model(&models.Class{}).
		Joins("JOIN class_subjects ON class_subjects.class_id = classes.id").
		Where("class_subjects.id = ?", classSubjectID).
		First(&class).Error; err != nil {
		return 0, err
	}
	return class.CourseID, nil
}

func (r *classSubjectRepository) GetSubject(ctx context.Context, classSubjectID uint) (models.Subject, error) {
	var subject models.Subject
	if err := r.db.WithContext(ctx).
		Model(&models.Subject{}).
		Joins("JOIN class_subjects ON class_subjects.subject_id = subjects.id").
		Where("class_subjects.id = ?", classSubjectID).
		First(&subject).Error; err != nil {
		return models.Subject{}, err
	}
	return subject, nil
}

func (r *classSubjectRepository) CompareAndSetStatus(ctx context.Context, id uint, from, to models.ClassSubjectStatus) (bool, error) {
	return compareAndSetStatus(ctx, r.db, &models.ClassSubject{}, id, string(from), string(to), nil)
}
