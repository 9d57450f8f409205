package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Store is the persistence gateway consumed by the lifecycle services. Every
// repository returned from a Store shares its transaction, if any.
type Store interface {
	Users() UserRepository
	Courses() CourseRepository
	ClassSubjects() ClassSubjectRepository
	Schedules() ScheduleRepository
	TraineeAssignments() TraineeAssignmentRepository
	InstructorAssignments() InstructorAssignmentRepository
	Grades() GradeRepository
	Certificates() CertificateRepository
	Requests() RequestRepository
	Decisions() DecisionRepository
	// WithinTransaction runs fn against a Store bound to one database transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore builds a GORM-backed Store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Users() UserRepository { return NewUserRepository(s.db) }

func (s *gormStore) Courses() CourseRepository { return NewCourseRepository(s.db) }

func (s *gormStore) ClassSubjects() ClassSubjectRepository { return NewClassSubjectRepository(s.db) }

func (s *gormStore) Schedules() ScheduleRepository { return NewScheduleRepository(s.db) }

func (s *gormStore) TraineeAssignments() TraineeAssignmentRepository {
	return NewTraineeAssignmentRepository(s.db)
}

func (s *gormStore) InstructorAssignments() InstructorAssignmentRepository {
	return NewInstructorAssignmentRepository(s.db)
}

func (s *gormStore) Grades() GradeRepository { return NewGradeRepository(s.db) }

func (s *gormStore) Certificates() CertificateRepository { return NewCertificateRepository(s.db) }

func (s *gormStore) Requests() RequestRepository { return NewRequestRepository(s.db) }

func (s *gormStore) Decisions() DecisionRepository { return NewDecisionRepository(s.db) }

func (s *gormStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// compareAndSetStatus moves a row from one status to another only if it still holds
// the expected status. It reports whether the row was updated.
func compareAndSetStatus(ctx context.Context, db *gorm.DB, model interface{}, id uint, from, to string, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for key, value := range extra {
		updates[key] = value
	}

	result := db.WithContext(ctx).Model(model).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// IsUniqueViolation reports whether err was raised by a unique index, with or
// without gorm error translation enabled.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "SQLSTATE 23505")
}

func stringsOf[S ~string](values []S) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}
