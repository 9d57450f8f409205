package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// GradeRepository defines persistence operations for grades.
type GradeRepository interface {
	GetByAssignment(ctx context.Context, traineeAssignmentID uint) (models.Grade, error)
	ListByAssignments(ctx context.Context, traineeAssignmentIDs []uint) ([]models.Grade, error)
	Save(ctx context.Context, grade *models.Grade) error
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository instantiates a GORM-backed repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) GetByAssignment(ctx context.Context, traineeAssignmentID uint) (models.Grade, error) {
	var grade models.Grade
	if err := r.db.WithContext(ctx).
		Where("trainee_assignment_id = ?", traineeAssignmentID).
		First(&grade).Error; err != nil {
		return models.Grade{}, err
	}
	return grade, nil
}

func (r *gradeRepository) ListByAssignments(ctx context.Context, traineeAssignmentIDs []uint) ([]models.Grade, error) {
	if len(traineeAssignmentIDs) == 0 {
		return []models.Grade{}, nil
	}

	var grades []models.Grade
	if err := r.db.WithContext(ctx).
		Where("trainee_assignment_id IN ?", traineeAssignmentIDs).
		Find(&grades).Error; err != nil {
		return nil, err
	}
	return grades, nil
}

// Save inserts the grade when it has no ID yet and updates every column otherwise.
func (r *gradeRepository) Save(ctx context.Context, grade *models.Grade) error {
	if grade.ID == 0 {
		return r.db.WithContext(ctx).Create(grade).Error
	}
	return r.db.WithContext(ctx).Save(grade).Error
}
