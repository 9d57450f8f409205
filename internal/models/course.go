package models

import "time"

// TrainingPlan groups courses delivered under the same program.
type TrainingPlan struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Course is the top of the training hierarchy. Its status is only changed by the
// approval workflow and by progress recomputation.
type Course struct {
	ID                      uint         `gorm:"primaryKey" json:"id"`
	TrainingPlanID          *uint        `gorm:"index" json:"training_plan_id"`
	Name                    string       `gorm:"size:255;not null" json:"name"`
	Level                   string       `gorm:"size:64" json:"level"`
	StartDate               time.Time    `json:"start_date"`
	EndDate                 time.Time    `json:"end_date"`
	Status                  CourseStatus `gorm:"size:32;not null;index" json:"status"`
	CreatedBy               uint         `gorm:"not null" json:"created_by"`
	CertificateValidityDays *int         `json:"certificate_validity_days"`
	CompletedAt             *time.Time   `json:"completed_at"`
	CertificatesGeneratedAt *time.Time   `json:"certificates_generated_at"`
	CreatedAt               time.Time    `json:"created_at"`
	UpdatedAt               time.Time    `json:"updated_at"`
}

// Subject is a unit of teaching with its own passing threshold.
type Subject struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Code         string    `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	PassingScore float64   `gorm:"not null" json:"passing_score"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Class groups trainees for a course.
type Class struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"not null;index" json:"course_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClassSubject binds one subject to one class. Schedules, assignments and grades hang off it.
type ClassSubject struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	ClassID   uint               `gorm:"not null;index" json:"class_id"`
	SubjectID uint               `gorm:"not null;index" json:"subject_id"`
	Status    ClassSubjectStatus `gorm:"size:32;not null;index" json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}
