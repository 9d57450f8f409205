package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// ScheduleRepository defines persistence operations for training schedules.
type ScheduleRepository interface {
	GetByID(ctx context.Context, id uint) (models.TrainingSchedule, error)
	Create(ctx context.Context, schedule *models.TrainingSchedule) error
	ListByClassSubject(ctx context.Context, classSubjectID uint) ([]models.TrainingSchedule, error)
	ListByStatus(ctx context.Context, statuses ...models.ScheduleStatus) ([]models.TrainingSchedule, error)
	CompareAndSetStatus(ctx context.Context, id uint, from, to models.ScheduleStatus) (bool, error)
}

type scheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository instantiates a GORM-backed repository.
func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) GetByID(ctx context.Context, id uint) (models.TrainingSchedule, error) {
	var schedule models.TrainingSchedule
	if err := r.db.WithContext(ctx).First(&schedule, id).Error; err != nil {
		return models.TrainingSchedule{}, err
	}
	return schedule, nil
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *models.TrainingSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *scheduleRepository) ListByClassSubject(ctx context.Context, classSubjectID uint) ([]models.TrainingSchedule, error) {
	var schedules []models.TrainingSchedule
	if err := r.db.WithContext(ctx).
		Where("class_subject_id = ?", classSubjectID).
		Order("start_date_time ASC").
		Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *scheduleRepository) ListByStatus(ctx context.Context, statuses ...models.ScheduleStatus) ([]models.TrainingSchedule, error) {
	query := r.db.WithContext(ctx).Model(&models.TrainingSchedule{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", stringsOf(statuses))
	}

	var schedules []models.TrainingSchedule
	if err := query.Order("id ASC").Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

func (r *scheduleRepository) CompareAndSetStatus(ctx context.Context, id uint, from, to models.ScheduleStatus) (bool, error) {
	return compareAndSetStatus(ctx, r.db, &models.TrainingSchedule{}, id, string(from), string(to), nil)
}
