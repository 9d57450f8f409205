package dto

import (
	"time"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// ApprovalSubmitRequest opens an approval request for a course or an assignment.
type ApprovalSubmitRequest struct {
	Type        string `json:"type" validate:"required,oneof=course_approval trainee_assignment instructor_assignment"`
	EntityID    uint   `json:"entity_id" validate:"required"`
	Description string `json:"description" validate:"max=2000"`
}

// ApprovalDecisionRequest approves or rejects a pending request.
type ApprovalDecisionRequest struct {
	Approve *bool  `json:"approve" validate:"required"`
	Note    string `json:"note" validate:"max=2000"`
}

// ApprovalListRequest defines filters for listing requests.
type ApprovalListRequest struct {
	Type        string `validate:"omitempty,oneof=course_approval trainee_assignment instructor_assignment"`
	Status      string `validate:"omitempty,oneof=pending approved rejected"`
	RequestorID uint
	Page        int
	PageSize    int `validate:"omitempty,min=1,max=100"`
}

// RequestResponse serializes approval requests.
type RequestResponse struct {
	ID           uint       `json:"id"`
	Type         string     `json:"type"`
	EntityID     uint       `json:"entity_id"`
	RequestorID  uint       `json:"requestor_id"`
	ApproverID   *uint      `json:"approver_id,omitempty"`
	Status       string     `json:"status"`
	Description  string     `json:"description"`
	DecisionNote string     `json:"decision_note,omitempty"`
	ApprovedDate *time.Time `json:"approved_date,omitempty"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// RequestListResponse wraps paginated requests.
type RequestListResponse struct {
	Items      []RequestResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewRequestResponse converts a request model into its DTO.
func NewRequestResponse(model models.Request) RequestResponse {
	return RequestResponse{
		ID:           model.ID,
		Type:         string(model.Type),
		EntityID:     model.EntityID,
		RequestorID:  model.RequestorID,
		ApproverID:   model.ApproverID,
		Status:       string(model.Status),
		Description:  model.Description,
		DecisionNote: model.DecisionNote,
		ApprovedDate: model.ApprovedDate,
		DecidedAt:    model.DecidedAt,
		CreatedAt:    model.CreatedAt,
	}
}
