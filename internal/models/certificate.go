package models

import (
	"time"

	"gorm.io/datatypes"
)

// Certificate is issued for a (trainee, course) pair once every required grade passed.
// At most one non-revoked certificate exists per pair.
type Certificate struct {
	ID                 uint                     `gorm:"primaryKey" json:"id"`
	Code               string                   `gorm:"size:64;uniqueIndex;not null" json:"code"`
	TraineeID          uint                     `gorm:"not null;uniqueIndex:idx_certificate_open,where:status <> 'revoked'" json:"trainee_id"`
	CourseID           uint                     `gorm:"not null;uniqueIndex:idx_certificate_open,where:status <> 'revoked'" json:"course_id"`
	IssuedBy           uint                     `json:"issued_by"`
	IssueDate          time.Time                `gorm:"not null" json:"issue_date"`
	ExpirationDate     *time.Time               `gorm:"index" json:"expiration_date"`
	Status             CertificateStatus        `gorm:"size:32;not null;index" json:"status"`
	ExpiringNotifiedAt *time.Time               `json:"expiring_notified_at"`
	ExpiredNotifiedAt  *time.Time               `json:"expired_notified_at"`
	RevokedAt          *time.Time               `json:"revoked_at"`
	RevokedBy          *uint                    `json:"revoked_by"`
	RevocationReason   string                   `gorm:"type:text" json:"revocation_reason"`
	IsRelearn          bool                     `gorm:"not null;default:false" json:"is_relearn"`
	RelearnSubjectIDs  datatypes.JSONSlice[uint] `gorm:"type:json" json:"relearn_subject_ids"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

// IsRevoked reports whether the certificate reached its terminal state.
func (c Certificate) IsRevoked() bool {
	return c.Status == CertificateStatusRevoked
}

// CertificateRenewal is an append-only audit record of an expiration date change.
type CertificateRenewal struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	CertificateID          uint       `gorm:"not null;uniqueIndex:idx_renewal_sequence" json:"certificate_id"`
	Sequence               int        `gorm:"not null;uniqueIndex:idx_renewal_sequence" json:"sequence"`
	PreviousExpirationDate *time.Time `json:"previous_expiration_date"`
	NewExpirationDate      time.Time  `gorm:"not null" json:"new_expiration_date"`
	RenewedBy              uint       `gorm:"not null" json:"renewed_by"`
	RenewalDate            time.Time  `gorm:"not null" json:"renewal_date"`
	CreatedAt              time.Time  `json:"created_at"`
}
