package dto

import (
	"time"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// DecisionCreateRequest drafts a decision against a certificate.
type DecisionCreateRequest struct {
	CertificateID uint   `json:"certificate_id" validate:"required"`
	TemplateID    *uint  `json:"template_id"`
	Title         string `json:"title" validate:"required,min=3,max=255"`
	Content       string `json:"content" validate:"max=20000"`
}

// DecisionResponse serializes a decision.
type DecisionResponse struct {
	ID            uint       `json:"id"`
	Code          *string    `json:"code"`
	CertificateID uint       `json:"certificate_id"`
	TemplateID    *uint      `json:"template_id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Status        string     `json:"status"`
	CreatedBy     uint       `json:"created_by"`
	IssuedBy      *uint      `json:"issued_by"`
	IssuedAt      *time.Time `json:"issued_at"`
}

// NewDecisionResponse converts a decision model into its DTO.
func NewDecisionResponse(model models.Decision) DecisionResponse {
	return DecisionResponse{
		ID:            model.ID,
		Code:          model.Code,
		CertificateID: model.CertificateID,
		TemplateID:    model.TemplateID,
		Title:         model.Title,
		Content:       model.Content,
		Status:        string(model.Status),
		CreatedBy:     model.CreatedBy,
		IssuedBy:      model.IssuedBy,
		IssuedAt:      model.IssuedAt,
	}
}
