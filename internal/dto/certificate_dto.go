package dto

import (
	"time"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// CertificateRenewRequest carries the new expiration date of a renewal.
type CertificateRenewRequest struct {
	ExpirationDate time.Time `json:"expiration_date" validate:"required"`
}

// CertificateRevokeRequest carries the revocation reason.
type CertificateRevokeRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=1000"`
}

// CertificateResponse serializes a certificate.
type CertificateResponse struct {
	ID                uint       `json:"id"`
	Code              string     `json:"code"`
	TraineeID         uint       `json:"trainee_id"`
	CourseID          uint       `json:"course_id"`
	IssuedBy          uint       `json:"issued_by"`
	IssueDate         time.Time  `json:"issue_date"`
	ExpirationDate    *time.Time `json:"expiration_date"`
	Status            string     `json:"status"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
	RevocationReason  string     `json:"revocation_reason,omitempty"`
	IsRelearn         bool       `json:"is_relearn"`
	RelearnSubjectIDs []uint     `json:"relearn_subject_ids"`
}

// NewCertificateResponse converts a certificate model into its DTO.
func NewCertificateResponse(model models.Certificate) CertificateResponse {
	subjects := []uint(model.RelearnSubjectIDs)
	if subjects == nil {
		subjects = []uint{}
	}
	return CertificateResponse{
		ID:                model.ID,
		Code:              model.Code,
		TraineeID:         model.TraineeID,
		CourseID:          model.CourseID,
		IssuedBy:          model.IssuedBy,
		IssueDate:         model.IssueDate,
		ExpirationDate:    model.ExpirationDate,
		Status:            string(model.Status),
		RevokedAt:         model.RevokedAt,
		RevocationReason:  model.RevocationReason,
		IsRelearn:         model.IsRelearn,
		RelearnSubjectIDs: subjects,
	}
}

// NewCertificateResponseSlice converts certificates into DTOs.
func NewCertificateResponseSlice(items []models.Certificate) []CertificateResponse {
	out := make([]CertificateResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewCertificateResponse(item))
	}
	return out
}

// RenewalResponse serializes one renewal history record.
type RenewalResponse struct {
	Sequence               int        `json:"sequence"`
	PreviousExpirationDate *time.Time `json:"previous_expiration_date"`
	NewExpirationDate      time.Time  `json:"new_expiration_date"`
	RenewedBy              uint       `json:"renewed_by"`
	RenewalDate            time.Time  `json:"renewal_date"`
}

// NewRenewalResponseSlice converts renewal records into DTOs.
func NewRenewalResponseSlice(items []models.CertificateRenewal) []RenewalResponse {
	out := make([]RenewalResponse, 0, len(items))
	for _, item := range items {
		out = append(out, RenewalResponse{
			Sequence:               item.Sequence,
			PreviousExpirationDate: item.PreviousExpirationDate,
			NewExpirationDate:      item.NewExpirationDate,
			RenewedBy:              item.RenewedBy,
			RenewalDate:            item.RenewalDate,
		})
	}
	return out
}
