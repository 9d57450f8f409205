package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// TraineeAssignmentRepository defines persistence operations for trainee enrolments.
type TraineeAssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.TraineeAssignment, error)
	Create(ctx context.Context, assignment *models.TraineeAssignment) error
	ListByClassSubjects(ctx context.Context, classSubjectIDs []uint) ([]models.TraineeAssignment, error)
	CompareAndSetStatus(ctx context.Context, id uint, from, to models.RequestStatus) (bool, error)
}

type traineeAssignmentRepository struct {
	db *gorm.DB
}

// NewTraineeAssignmentRepository instantiates a GORM-backed repository.
func NewTraineeAssignmentRepository(db *gorm.DB) TraineeAssignmentRepository {
	return &traineeAssignmentRepository{db: db}
}

func (r *traineeAssignmentRepository) GetByID(ctx context.Context, id uint) (models.TraineeAssignment, error) {
	var assignment models.TraineeAssignment
	if err := r.db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return models.TraineeAssignment{}, err
	}
	return assignment, nil
}

func (r *traineeAssignmentRepository) Create(ctx context.Context, assignment *models.TraineeAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *traineeAssignmentRepository) ListByClassSubjects(ctx context.Context, classSubjectIDs []uint) ([]models.TraineeAssignment, error) {
	if len(classSubjectIDs) == 0 {
		return []models.TraineeAssignment{}, nil
	}

	var assignments []models.TraineeAssignment
	if err := r.db.WithContext(ctx).
		Where("class_subject_id IN ?", classSubjectIDs).
		Order("id ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *traineeAssignmentRepository) CompareAndSetStatus(ctx context.Context, id uint, from, to models.RequestStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.TraineeAssignment{}).
		Where("id = ? AND request_status = ?", id, string(from)).
		Update("request_status", string(to))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// InstructorAssignmentRepository defines persistence operations for instructor links.
type InstructorAssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.InstructorAssignment, error)
	Create(ctx context.Context, assignment *models.InstructorAssignment) error
	GetApprovedByClassSubject(ctx context.Context, classSubjectID uint) (models.InstructorAssignment, error)
	CompareAndSetStatus(ctx context.Context, id uint, from, to models.RequestStatus) (bool, error)
}

type instructorAssignmentRepository struct {
	db *gorm.DB
}

// NewInstructorAssignmentRepository instantiates a GORM-backed repository.
func NewInstructorAssignmentRepository(db *gorm.DB) InstructorAssignmentRepository {
	return &instructorAssignmentRepository{db: db}
}

func (r *instructorAssignmentRepository) GetByID(ctx context.Context, id uint) (models.InstructorAssignment, error) {
	var assignment models.InstructorAssignment
	if err := r.db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return models.InstructorAssignment{}, err
	}
	return assignment, nil
}

func (r *instructorAssignmentRepository) Create(ctx context.Context, assignment *models.InstructorAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *instructorAssignmentRepository) GetApprovedByClassSubject(ctx context.Context, classSubjectID uint) (models.InstructorAssignment, error) {
	var assignment models.InstructorAssignment
	if err := r.db.WithContext(ctx).
		Where("class_subject_id = ? AND request_status = ?", classSubjectID, string(models.RequestStatusApproved)).
		First(&assignment).Error; err != nil {
		return models.InstructorAssignment{}, err
	}
	return assignment, nil
}

func (r *instructorAssignmentRepository) CompareAndSetStatus(ctx context.Context, id uint, from, to models.RequestStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.InstructorAssignment{}).
		Where("id = ? AND request_status = ?", id, string(from)).
		Update("request_status", string(to))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
