package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-training-api/internal/dto"
	"github.com/noah-isme/gema-training-api/internal/models"
	"github.com/noah-isme/gema-training-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupStore(t *testing.T) (*gorm.DB, repository.Store) {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))

	return db, repository.NewStore(db)
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func ptrFloat(v float64) *float64 {
	return &v
}

func ptrUint(v uint) *uint {
	return &v
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

func (r *recordingEmitter) Emit(ctx context.Context, event LifecycleEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEmitter) ofType(eventType EventType) []LifecycleEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []LifecycleEvent
	for _, event := range r.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

type recordingActivity struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (r *recordingActivity) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return dto.ActivityResponse{Action: entry.Action, EntityType: entry.EntityType}, nil
}

func (r *recordingActivity) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

var errInjected = errors.New("connection reset by peer")

// faultyStore wraps a Store to simulate storage failures and stale reads.
type faultyStore struct {
	repository.Store
	failScheduleID uint
	// staleOpenInTx hides open certificates from reads made inside a transaction.
	staleOpenInTx bool
	inTx          bool
}

func (s faultyStore) Schedules() repository.ScheduleRepository {
	return faultySchedules{ScheduleRepository: s.Store.Schedules(), failID: s.failScheduleID}
}

func (s faultyStore) Certificates() repository.CertificateRepository {
	if !s.staleOpenInTx || !s.inTx {
		return s.Store.Certificates()
	}
	return staleCertificates{CertificateRepository: s.Store.Certificates()}
}

func (s faultyStore) WithinTransaction(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithinTransaction(ctx, func(tx repository.Store) error {
		return fn(faultyStore{Store: tx, failScheduleID: s.failScheduleID, staleOpenInTx: s.staleOpenInTx, inTx: true})
	})
}

type faultySchedules struct {
	repository.ScheduleRepository
	failID uint
}

func (r faultySchedules) GetByID(ctx context.Context, id uint) (models.TrainingSchedule, error) {
	if r.failID != 0 && id == r.failID {
		return models.TrainingSchedule{}, errInjected
	}
	return r.ScheduleRepository.GetByID(ctx, id)
}

// staleCertificates never sees open certificates, like a read racing a concurrent insert.
type staleCertificates struct {
	repository.CertificateRepository
}

func (staleCertificates) FindOpen(ctx context.Context, traineeID, courseID uint) (models.Certificate, error) {
	return models.Certificate{}, gorm.ErrRecordNotFound
}

// builder creates rows of the training hierarchy for tests.
type builder struct {
	t  *testing.T
	db *gorm.DB
}

func newBuilder(t *testing.T, db *gorm.DB) builder {
	return builder{t: t, db: db}
}

func (b builder) create(value interface{}) {
	b.t.Helper()
	require.NoError(b.t, b.db.Create(value).Error)
}

func (b builder) user(role string) models.User {
	b.t.Helper()
	user := models.User{Name: role + " user", Email: uuid.NewString() + "@training.local", Role: role}
	b.create(&user)
	return user
}

func (b builder) course(status models.CourseStatus, createdBy uint) models.Course {
	b.t.Helper()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	course := models.Course{Name: "Fire Safety " + uuid.NewString()[:6], Status: status, CreatedBy: createdBy, StartDate: start, EndDate: start.AddDate(0, 1, 0)}
	b.create(&course)
	return course
}

func (b builder) classSubject(courseID uint, passingScore float64) models.ClassSubject {
	b.t.Helper()
	class := models.Class{CourseID: courseID, Name: "Batch " + uuid.NewString()[:4]}
	b.create(&class)
	subject := models.Subject{Code: uuid.NewString()[:8], Name: "Subject", PassingScore: passingScore}
	b.create(&subject)
	classSubject := models.ClassSubject{ClassID: class.ID, SubjectID: subject.ID, Status: models.ClassSubjectStatusPending}
	b.create(&classSubject)
	return classSubject
}

func (b builder) schedule(classSubjectID uint, start, end time.Time) models.TrainingSchedule {
	b.t.Helper()
	schedule := models.TrainingSchedule{
		ClassSubjectID: classSubjectID,
		InstructorID:   1,
		StartDateTime:  start,
		EndDateTime:    end,
		Status:         models.ScheduleStatusPending,
	}
	b.create(&schedule)
	return schedule
}

func (b builder) trainee(classSubjectID, traineeID uint, status models.RequestStatus) models.TraineeAssignment {
	b.t.Helper()
	assignment := models.TraineeAssignment{ClassSubjectID: classSubjectID, TraineeID: traineeID, RequestStatus: status}
	b.create(&assignment)
	return assignment
}

func (b builder) instructor(classSubjectID, instructorID uint, status models.RequestStatus) models.InstructorAssignment {
	b.t.Helper()
	assignment := models.InstructorAssignment{ClassSubjectID: classSubjectID, InstructorID: instructorID, RequestStatus: status}
	b.create(&assignment)
	return assignment
}

func (b builder) grade(assignmentID uint, status models.GradeStatus) models.Grade {
	b.t.Helper()
	grade := models.Grade{TraineeAssignmentID: assignmentID, Status: status}
	b.create(&grade)
	return grade
}

func (b builder) certificate(traineeID, courseID uint, status models.CertificateStatus, expiration *time.Time) models.Certificate {
	b.t.Helper()
	certificate := models.Certificate{
		Code:           "CERT-TEST-" + uuid.NewString()[:8],
		TraineeID:      traineeID,
		CourseID:       courseID,
		IssueDate:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate: expiration,
		Status:         status,
	}
	b.create(&certificate)
	return certificate
}

// completedCourse builds a completed course with one class subject whose trainees hold the
// given grade statuses.
func (b builder) completedCourse(grades map[uint]models.GradeStatus) (models.Course, models.ClassSubject) {
	b.t.Helper()
	course := b.course(models.CourseStatusCompleted, 1)
	classSubject := b.classSubject(course.ID, 60)
	for traineeID, status := range grades {
		assignment := b.trainee(classSubject.ID, traineeID, models.RequestStatusApproved)
		b.grade(assignment.ID, status)
	}
	return course, classSubject
}
