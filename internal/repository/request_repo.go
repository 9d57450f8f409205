package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// RequestFilter narrows approval request listings.
type RequestFilter struct {
	Type        models.RequestType
	Status      models.RequestStatus
	RequestorID *uint
	Page        int
	PageSize    int
}

// RequestDecision carries the fields written when a pending request is decided.
type RequestDecision struct {
	Status       models.RequestStatus
	ApproverID   uint
	Note         string
	ApprovedDate *time.Time
	DecidedAt    time.Time
}

// RequestRepository defines persistence operations for approval requests.
type RequestRepository interface {
	GetByID(ctx context.Context, id uint) (models.Request, error)
	Create(ctx context.Context, request *models.Request) error
	FindPending(ctx context.Context, requestType models.RequestType, entityID uint) (models.Request, error)
	List(ctx context.Context, filter RequestFilter) ([]models.Request, int64, error)
	Decide(ctx context.Context, id uint, decision RequestDecision) (bool, error)
}

type requestRepository struct {
	db *gorm.DB
}

// NewRequestRepository instantiates a GORM-backed repository.
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) GetByID(ctx context.Context, id uint) (models.Request, error) {
	var request models.Request
	if err := r.db.WithContext(ctx).First(&request, id).Error; err != nil {
		return models.Request{}, err
	}
	return request, nil
}

func (r *requestRepository) Create(ctx context.Context, request *models.Request) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *requestRepository) FindPending(ctx context.Context, requestType models.RequestType, entityID uint) (models.Request, error) {
	var request models.Request
	if err := r.db.WithContext(ctx).
		Where("type = ? AND entity_id = ? AND status = ?", string(requestType), entityID, string(models.RequestStatusPending)).
		First(&request).Error; err != nil {
		return models.Request{}, err
	}
	return request, nil
}

func (r *requestRepository) List(ctx context.Context, filter RequestFilter) ([]models.Request, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Request{})

	if filter.Type != "" {
		query = query.Where("type = ?", string(filter.Type))
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.RequestorID != nil {
		query = query.Where("requestor_id = ?", *filter.RequestorID)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var requests []models.Request
	if err := query.Order("created_at DESC").Order("id DESC").Find(&requests).Error; err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// Decide closes a pending request. It reports false when the request was no longer pending.
func (r *requestRepository) Decide(ctx context.Context, id uint, decision RequestDecision) (bool, error) {
	return compareAndSetStatus(ctx, r.db, &models.Request{}, id,
		string(models.RequestStatusPending), string(decision.Status),
		map[string]interface{}{
			"approver_id":   decision.ApproverID,
			"decision_note": decision.Note,
			"approved_date": decision.ApprovedDate,
			"decided_at":    decision.DecidedAt,
		})
}
