package lifecycle

import (
	"fmt"

	"github.com/noah-isme/gema-training-api/internal/models"
)

// Status is implemented by every persisted status type.
type Status interface {
	~string
}

// Machine is the transition table of one entity type.
type Machine[S Status] struct {
	entity string
	edges  map[S]map[S]struct{}
}

type edge[S Status] struct {
	from S
	to   []S
}

func newMachine[S Status](entity string, edges ...edge[S]) Machine[S] {
	table := make(map[S]map[S]struct{}, len(edges))
	for _, e := range edges {
		targets, ok := table[e.from]
		if !ok {
			targets = make(map[S]struct{}, len(e.to))
			table[e.from] = targets
		}
		for _, to := range e.to {
			targets[to] = struct{}{}
		}
	}
	return Machine[S]{entity: entity, edges: table}
}

// Entity names the entity type the table governs.
func (m Machine[S]) Entity() string {
	return m.entity
}

// Can reports whether from -> to is a legal edge.
func (m Machine[S]) Can(from, to S) bool {
	_, ok := m.edges[from][to]
	return ok
}

// IsTerminal reports whether no edge leaves the status.
func (m Machine[S]) IsTerminal(status S) bool {
	return len(m.edges[status]) == 0
}

// Transition validates from -> to and returns ErrInvalidStateTransition when illegal.
func (m Machine[S]) Transition(from, to S) error {
	if m.Can(from, to) {
		return nil
	}
	return NewError(m.entity, "Transition", ErrInvalidStateTransition,
		fmt.Sprintf("cannot move %s from %q to %q", m.entity, from, to))
}

// Course lifecycle: approval gates draft -> active, progress tracking drives active -> completed.
var CourseTransitions = newMachine("course",
	edge[models.CourseStatus]{from: models.CourseStatusDraft, to: []models.CourseStatus{models.CourseStatusPending, models.CourseStatusCancelled}},
	edge[models.CourseStatus]{from: models.CourseStatusRejected, to: []models.CourseStatus{models.CourseStatusPending}},
	edge[models.CourseStatus]{from: models.CourseStatusPending, to: []models.CourseStatus{models.CourseStatusActive, models.CourseStatusRejected, models.CourseStatusCancelled}},
	edge[models.CourseStatus]{from: models.CourseStatusActive, to: []models.CourseStatus{models.CourseStatusCompleted, models.CourseStatusCancelled}},
)

// ClassSubjectTransitions follow the schedule rollup; cancelled is terminal.
var ClassSubjectTransitions = newMachine("class_subject",
	edge[models.ClassSubjectStatus]{from: models.ClassSubjectStatusPending, to: []models.ClassSubjectStatus{models.ClassSubjectStatusOngoing, models.ClassSubjectStatusCompleted, models.ClassSubjectStatusCancelled}},
	edge[models.ClassSubjectStatus]{from: models.ClassSubjectStatusOngoing, to: []models.ClassSubjectStatus{models.ClassSubjectStatusCompleted, models.ClassSubjectStatusPending, models.ClassSubjectStatusCancelled}},
	edge[models.ClassSubjectStatus]{from: models.ClassSubjectStatusCompleted, to: []models.ClassSubjectStatus{models.ClassSubjectStatusOngoing, models.ClassSubjectStatusPending, models.ClassSubjectStatusCancelled}},
)

// ScheduleTransitions follow the clock; cancelled is terminal.
var ScheduleTransitions = newMachine("training_schedule",
	edge[models.ScheduleStatus]{from: models.ScheduleStatusPending, to: []models.ScheduleStatus{models.ScheduleStatusOngoing, models.ScheduleStatusCompleted, models.ScheduleStatusCancelled}},
	edge[models.ScheduleStatus]{from: models.ScheduleStatusOngoing, to: []models.ScheduleStatus{models.ScheduleStatusCompleted, models.ScheduleStatusPending, models.ScheduleStatusCancelled}},
	edge[models.ScheduleStatus]{from: models.ScheduleStatusCompleted, to: []models.ScheduleStatus{models.ScheduleStatusOngoing, models.ScheduleStatusPending, models.ScheduleStatusCancelled}},
)

// GradeTransitions allow regrading and fail-closed resets to pending.
var GradeTransitions = newMachine("grade",
	edge[models.GradeStatus]{from: models.GradeStatusPending, to: []models.GradeStatus{models.GradeStatusPassed, models.GradeStatusFailed}},
	edge[models.GradeStatus]{from: models.GradeStatusPassed, to: []models.GradeStatus{models.GradeStatusFailed, models.GradeStatusPending}},
	edge[models.GradeStatus]{from: models.GradeStatusFailed, to: []models.GradeStatus{models.GradeStatusPassed, models.GradeStatusPending}},
)

// CertificateTransitions: revoked is terminal, expired returns to active on renewal.
var CertificateTransitions = newMachine("certificate",
	edge[models.CertificateStatus]{from: models.CertificateStatusPending, to: []models.CertificateStatus{models.CertificateStatusActive, models.CertificateStatusRevoked}},
	edge[models.CertificateStatus]{from: models.CertificateStatusActive, to: []models.CertificateStatus{models.CertificateStatusActive, models.CertificateStatusExpired, models.CertificateStatusRevoked}},
	edge[models.CertificateStatus]{from: models.CertificateStatusExpired, to: []models.CertificateStatus{models.CertificateStatusActive, models.CertificateStatusRevoked}},
)

// RequestTransitions govern approval requests: every decision is final.
var RequestTransitions = newMachine("request",
	edge[models.RequestStatus]{from: models.RequestStatusPending, to: []models.RequestStatus{models.RequestStatusApproved, models.RequestStatusRejected}},
)

// AssignmentTransitions govern trainee and instructor assignments; a rejected
// assignment may be resubmitted.
var AssignmentTransitions = newMachine("assignment",
	edge[models.RequestStatus]{from: models.RequestStatusPending, to: []models.RequestStatus{models.RequestStatusApproved, models.RequestStatusRejected}},
	edge[models.RequestStatus]{from: models.RequestStatusRejected, to: []models.RequestStatus{models.RequestStatusPending}},
)

// DecisionTransitions: an issued decision cannot be edited or reissued.
var DecisionTransitions = newMachine("decision",
	edge[models.DecisionStatus]{from: models.DecisionStatusDraft, to: []models.DecisionStatus{models.DecisionStatusIssued}},
)
