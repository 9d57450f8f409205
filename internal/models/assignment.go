package models

import "time"

// TraineeAssignment enrolls a trainee into a class subject once approved.
type TraineeAssignment struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	ClassSubjectID uint          `gorm:"not null;index" json:"class_subject_id"`
	TraineeID      uint          `gorm:"not null;index" json:"trainee_id"`
	RequestStatus  RequestStatus `gorm:"size:32;not null;index" json:"request_status"`
	AssignedBy     uint          `json:"assigned_by"`
	IsRelearn      bool          `gorm:"not null;default:false" json:"is_relearn"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsApproved reports whether the trainee is visible to scheduling and grading.
func (a TraineeAssignment) IsApproved() bool {
	return a.RequestStatus == RequestStatusApproved
}

// InstructorAssignment links the single instructor of a class subject. Only one
// approved assignment may exist per class subject.
type InstructorAssignment struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	ClassSubjectID uint          `gorm:"not null;index;uniqueIndex:idx_instructor_approved,where:request_status = 'approved'" json:"class_subject_id"`
	InstructorID   uint          `gorm:"not null;index" json:"instructor_id"`
	RequestStatus  RequestStatus `gorm:"size:32;not null;index" json:"request_status"`
	AssignedBy     uint          `json:"assigned_by"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsApproved reports whether the instructor may grade the class subject.
func (a InstructorAssignment) IsApproved() bool {
	return a.RequestStatus == RequestStatusApproved
}
