package models

// CourseStatus is the lifecycle state of a course.
type CourseStatus string

// Course lifecycle states.
const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusPending   CourseStatus = "pending"
	CourseStatusActive    CourseStatus = "active"
	CourseStatusCompleted CourseStatus = "completed"
	CourseStatusRejected  CourseStatus = "rejected"
	CourseStatusCancelled CourseStatus = "cancelled"
)

// ClassSubjectStatus is derived from the statuses of the class subject's schedules.
type ClassSubjectStatus string

// Class subject states.
const (
	ClassSubjectStatusPending   ClassSubjectStatus = "pending"
	ClassSubjectStatusOngoing   ClassSubjectStatus = "ongoing"
	ClassSubjectStatusCompleted ClassSubjectStatus = "completed"
	ClassSubjectStatusCancelled ClassSubjectStatus = "cancelled"
)

// ScheduleStatus is derived from the current time and the schedule window.
type ScheduleStatus string

// Training schedule states.
const (
	ScheduleStatusPending   ScheduleStatus = "pending"
	ScheduleStatusOngoing   ScheduleStatus = "ongoing"
	ScheduleStatusCompleted ScheduleStatus = "completed"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
)

// GradeStatus reports whether a trainee passed a class subject.
type GradeStatus string

// Grade states.
const (
	GradeStatusPending GradeStatus = "pending"
	GradeStatusPassed  GradeStatus = "passed"
	GradeStatusFailed  GradeStatus = "failed"
)

// CertificateStatus is the lifecycle state of an issued certificate.
type CertificateStatus string

// Certificate states.
const (
	CertificateStatusPending CertificateStatus = "pending"
	CertificateStatusActive  CertificateStatus = "active"
	CertificateStatusExpired CertificateStatus = "expired"
	CertificateStatusRevoked CertificateStatus = "revoked"
)

// RequestStatus gates approval requests and the assignments they protect.
type RequestStatus string

// Approval states.
const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// DecisionStatus tracks formal decision documents.
type DecisionStatus string

// Decision states.
const (
	DecisionStatusDraft  DecisionStatus = "draft"
	DecisionStatusIssued DecisionStatus = "issued"
)
