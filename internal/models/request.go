package models

import "time"

// RequestType names the entity family an approval request gates.
type RequestType string

// Supported approval request types.
const (
	RequestTypeCourseApproval       RequestType = "course_approval"
	RequestTypeTraineeAssignment    RequestType = "trainee_assignment"
	RequestTypeInstructorAssignment RequestType = "instructor_assignment"
)

// Request is the approval envelope attached to the entity it gates.
type Request struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	Type         RequestType   `gorm:"size:64;not null;index:idx_request_target" json:"type"`
	EntityID     uint          `gorm:"not null;index:idx_request_target" json:"entity_id"`
	RequestorID  uint          `gorm:"not null;index" json:"requestor_id"`
	ApproverID   *uint         `json:"approver_id"`
	Status       RequestStatus `gorm:"size:32;not null;index" json:"status"`
	Description  string        `gorm:"type:text" json:"description"`
	DecisionNote string        `gorm:"type:text" json:"decision_note"`
	ApprovedDate *time.Time    `json:"approved_date"`
	DecidedAt    *time.Time    `json:"decided_at"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsPending reports whether the request still awaits a decision.
func (r Request) IsPending() bool {
	return r.Status == RequestStatusPending
}
