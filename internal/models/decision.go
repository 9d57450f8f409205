package models

import "time"

// DecisionTemplate is reusable content for decisions issued against certificates.
type DecisionTemplate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Decision is a formal document issued against a certificate.
type Decision struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Code          *string        `gorm:"size:64;uniqueIndex" json:"code"`
	CertificateID uint           `gorm:"not null;index" json:"certificate_id"`
	TemplateID    *uint          `json:"template_id"`
	Title         string         `gorm:"size:255;not null" json:"title"`
	Content       string         `gorm:"type:text" json:"content"`
	Status        DecisionStatus `gorm:"size:32;not null;index" json:"status"`
	CreatedBy     uint           `json:"created_by"`
	IssuedBy      *uint          `json:"issued_by"`
	IssuedAt      *time.Time     `json:"issued_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
