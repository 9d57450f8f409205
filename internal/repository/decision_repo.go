package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// DecisionRepository defines persistence operations for decisions and their templates.
type DecisionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Decision, error)
	Create(ctx context.Context, decision *models.Decision) error
	MarkIssued(ctx context.Context, id uint, code string, issuedBy uint, at time.Time) (bool, error)
	ListByCertificate(ctx context.Context, certificateID uint) ([]models.Decision, error)
	GetTemplate(ctx context.Context, id uint) (models.DecisionTemplate, error)
}

type decisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository instantiates a GORM-backed repository.
func NewDecisionRepository(db *gorm.DB) DecisionRepository {
	return &decisionRepository{db: db}
}

func (r *decisionRepository) GetByID(ctx context.Context, id uint) (models.Decision, error) {
	var decision models.Decision
	if err := r.db.WithContext(ctx).First(&decision, id).Error; err != nil {
		return models.Decision{}, err
	}
	return decision, nil
}

func (r *decisionRepository) Create(ctx context.Context, decision *models.Decision) error {
	return r.db.WithContext(ctx).Create(decision).Error
}

func (r *decisionRepository) MarkIssued(ctx context.Context, id uint, code string, issuedBy uint, at time.Time) (bool, error) {
	return compareAndSetStatus(ctx, r.db, &models.Decision{}, id,
		string(models.DecisionStatusDraft), string(models.DecisionStatusIssued),
		map[string]interface{}{"code": code, "issued_by": issuedBy, "issued_at": at})
}

func (r *decisionRepository) ListByCertificate(ctx context.Context, certificateID uint) ([]models.Decision, error) {
	var decisions []models.Decision
	if err := r.db.WithContext(ctx).
		Where("certificate_id = ?", certificateID).
		Order("created_at ASC").
		Find(&decisions).Error; err != nil {
		return nil, err
	}
	return decisions, nil
}

func (r *decisionRepository) GetTemplate(ctx context.Context, id uint) (models.DecisionTemplate, error) {
	var template models.DecisionTemplate
	if err := r.db.WithContext(ctx).First(&template, id).Error; err != nil {
		return models.DecisionTemplate{}, err
	}
	return template, nil
}
