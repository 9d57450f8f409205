package seed

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-training-api/internal/models"
)

//go:embed schema.json
var schemaDocument []byte

const schemaURL = "seed.schema.json"

// ErrInvalidFixture indicates the fixture document failed schema or reference validation.
var ErrInvalidFixture = errors.New("invalid seed fixture")

// Fixture is the document loaded by the seeding tools.
type Fixture struct {
	Users             []UserFixture     `json:"users"`
	Subjects          []SubjectFixture  `json:"subjects"`
	DecisionTemplates []TemplateFixture `json:"decision_templates"`
	Courses           []CourseFixture   `json:"courses"`
}

// UserFixture describes a user. Passwords are plain text and hashed on load.
type UserFixture struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// SubjectFixture describes a subject and its passing threshold.
type SubjectFixture struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	PassingScore float64 `json:"passing_score"`
}

// TemplateFixture describes a decision template.
type TemplateFixture struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// CourseFixture describes a course with its classes. Users and subjects are referenced
// by email and code.
type CourseFixture struct {
	Name                    string         `json:"name"`
	Level                   string         `json:"level"`
	Plan                    string         `json:"plan"`
	StartDate               time.Time      `json:"start_date"`
	EndDate                 time.Time      `json:"end_date"`
	Status                  string         `json:"status"`
	CreatedBy               string         `json:"created_by"`
	CertificateValidityDays *int           `json:"certificate_validity_days"`
	Classes                 []ClassFixture `json:"classes"`
}

// ClassFixture describes a class and the subjects taught to it.
type ClassFixture struct {
	Name     string                `json:"name"`
	Subjects []ClassSubjectFixture `json:"subjects"`
}

// ClassSubjectFixture binds a subject to a class with pre-approved assignments.
type ClassSubjectFixture struct {
	Subject    string            `json:"subject"`
	Instructor string            `json:"instructor"`
	Trainees   []string          `json:"trainees"`
	Schedules  []ScheduleFixture `json:"schedules"`
}

// ScheduleFixture describes a training schedule window.
type ScheduleFixture struct {
	DaysOfWeek string    `json:"days_of_week"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Location   string    `json:"location"`
	Room       string    `json:"room"`
}

// Summary counts the rows created by a load.
type Summary struct {
	Users             int `json:"users"`
	Subjects          int `json:"subjects"`
	DecisionTemplates int `json:"decision_templates"`
	Courses           int `json:"courses"`
	ClassSubjects     int `json:"class_subjects"`
	Schedules         int `json:"schedules"`
	Assignments       int `json:"assignments"`
}

// Loader validates fixtures and writes them to the database.
type Loader struct {
	db         *gorm.DB
	schema     *jsonschema.Schema
	logger     zerolog.Logger
	bcryptCost int
}

// NewLoader compiles the embedded fixture schema.
func NewLoader(db *gorm.DB, logger zerolog.Logger) (*Loader, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaDocument)); err != nil {
		return nil, fmt.Errorf("add seed schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile seed schema: %w", err)
	}

	return &Loader{
		db:         db,
		schema:     schema,
		logger:     logger.With().Str("component", "seed_loader").Logger(),
		bcryptCost: bcrypt.DefaultCost,
	}, nil
}

// Parse validates the raw document against the schema and decodes it.
func (l *Loader) Parse(data []byte) (Fixture, error) {
	var document interface{}
	if err := json.Unmarshal(data, &document); err != nil {
		return Fixture{}, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	if err := l.schema.Validate(document); err != nil {
		return Fixture{}, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}

	var fixture Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return Fixture{}, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	return fixture, nil
}

// Load parses and applies a fixture document.
func (l *Loader) Load(ctx context.Context, data []byte) (Summary, error) {
	fixture, err := l.Parse(data)
	if err != nil {
		return Summary{}, err
	}
	return l.Apply(ctx, fixture)
}

// Apply writes the fixture in one transaction. Rows that already exist by natural key
// (user email, subject code, template name, course name) are left untouched.
func (l *Loader) Apply(ctx context.Context, fixture Fixture) (Summary, error) {
	var summary Summary
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make(map[string]models.User, len(fixture.Users))
		for _, item := range fixture.Users {
			user, created, err := l.upsertUser(tx, item)
			if err != nil {
				return err
			}
			users[strings.ToLower(user.Email)] = user
			if created {
				summary.Users++
			}
		}

		subjects := make(map[string]models.Subject, len(fixture.Subjects))
		for _, item := range fixture.Subjects {
			var subject models.Subject
			err := tx.Where("code = ?", item.Code).First(&subject).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				subject = models.Subject{Code: item.Code, Name: item.Name, PassingScore: item.PassingScore}
				if err := tx.Create(&subject).Error; err != nil {
					return err
				}
				summary.Subjects++
			case err != nil:
				return err
			}
			subjects[subject.Code] = subject
		}

		for _, item := range fixture.DecisionTemplates {
			var count int64
			if err := tx.Model(&models.DecisionTemplate{}).Where("name = ?", item.Name).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			template := models.DecisionTemplate{Name: item.Name, Content: item.Content}
			if err := tx.Create(&template).Error; err != nil {
				return err
			}
			summary.DecisionTemplates++
		}

		for _, course := range fixture.Courses {
			if err := l.applyCourse(tx, course, users, subjects, &summary); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	l.logger.Info().
		Int("users", summary.Users).
		Int("courses", summary.Courses).
		Int("class_subjects", summary.ClassSubjects).
		Int("schedules", summary.Schedules).
		Msg("seed fixture applied")
	return summary, nil
}

func (l *Loader) upsertUser(tx *gorm.DB, item UserFixture) (models.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(item.Email))

	var existing models.User
	err := tx.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, false, err
	}

	user := models.User{Name: item.Name, Email: email, Role: item.Role}
	if item.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(item.Password), l.bcryptCost)
		if err != nil {
			return models.User{}, false, fmt.Errorf("hash password for %s: %w", email, err)
		}
		user.PasswordHash = string(hash)
	}
	if err := tx.Create(&user).Error; err != nil {
		return models.User{}, false, err
	}
	return user, true, nil
}

func (l *Loader) applyCourse(tx *gorm.DB, item CourseFixture, users map[string]models.User, subjects map[string]models.Subject, summary *Summary) error {
	var existing models.Course
	err := tx.Where("name = ?", item.Name).First(&existing).Error
	if err == nil {
		l.logger.Debug().Str("course", item.Name).Msg("course already seeded")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	creator, err := lookupUser(tx, users, item.CreatedBy)
	if err != nil {
		return err
	}
	if !item.EndDate.After(item.StartDate) {
		return fmt.Errorf("%w: course %q ends before it starts", ErrInvalidFixture, item.Name)
	}

	status := models.CourseStatus(item.Status)
	if status == "" {
		status = models.CourseStatusDraft
	}

	course := models.Course{
		Name:                    item.Name,
		Level:                   item.Level,
		StartDate:               item.StartDate.UTC(),
		EndDate:                 item.EndDate.UTC(),
		Status:                  status,
		CreatedBy:               creator.ID,
		CertificateValidityDays: item.CertificateValidityDays,
	}
	if plan := strings.TrimSpace(item.Plan); plan != "" {
		record := models.TrainingPlan{Name: plan}
		if err := tx.Where(models.TrainingPlan{Name: plan}).FirstOrCreate(&record).Error; err != nil {
			return err
		}
		course.TrainingPlanID = &record.ID
	}
	if err := tx.Create(&course).Error; err != nil {
		return err
	}
	summary.Courses++

	for _, classItem := range item.Classes {
		class := models.Class{CourseID: course.ID, Name: classItem.Name}
		if err := tx.Create(&class).Error; err != nil {
			return err
		}
		for _, subjectItem := range classItem.Subjects {
			if err := l.applyClassSubject(tx, class, course, subjectItem, users, subjects, summary); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Loader) applyClassSubject(tx *gorm.DB, class models.Class, course models.Course, item ClassSubjectFixture, users map[string]models.User, subjects map[string]models.Subject, summary *Summary) error {
	subject, ok := subjects[item.Subject]
	if !ok {
		if err := tx.Where("code = ?", item.Subject).First(&subject).Error; err != nil {
			return fmt.Errorf("%w: unknown subject %q", ErrInvalidFixture, item.Subject)
		}
	}

	classSubject := models.ClassSubject{ClassID: class.ID, SubjectID: subject.ID, Status: models.ClassSubjectStatusPending}
	if err := tx.Create(&classSubject).Error; err != nil {
		return err
	}
	summary.ClassSubjects++

	var instructorID uint
	if item.Instructor != "" {
		instructor, err := lookupUser(tx, users, item.Instructor)
		if err != nil {
			return err
		}
		assignment := models.InstructorAssignment{
			ClassSubjectID: classSubject.ID,
			InstructorID:   instructor.ID,
			RequestStatus:  models.RequestStatusApproved,
			AssignedBy:     course.CreatedBy,
		}
		if err := tx.Create(&assignment).Error; err != nil {
			return err
		}
		instructorID = instructor.ID
		summary.Assignments++
	}

	for _, email := range item.Trainees {
		trainee, err := lookupUser(tx, users, email)
		if err != nil {
			return err
		}
		assignment := models.TraineeAssignment{
			ClassSubjectID: classSubject.ID,
			TraineeID:      trainee.ID,
			RequestStatus:  models.RequestStatusApproved,
			AssignedBy:     course.CreatedBy,
		}
		if err := tx.Create(&assignment).Error; err != nil {
			return err
		}
		summary.Assignments++
	}

	for _, scheduleItem := range item.Schedules {
		if instructorID == 0 {
			return fmt.Errorf("%w: schedules of subject %q need an instructor", ErrInvalidFixture, item.Subject)
		}
		if !scheduleItem.End.After(scheduleItem.Start) {
			return fmt.Errorf("%w: schedule of subject %q ends before it starts", ErrInvalidFixture, item.Subject)
		}
		schedule := models.TrainingSchedule{
			ClassSubjectID: classSubject.ID,
			InstructorID:   instructorID,
			DaysOfWeek:     scheduleItem.DaysOfWeek,
			StartTime:      scheduleItem.StartTime,
			EndTime:        scheduleItem.EndTime,
			StartDateTime:  scheduleItem.Start.UTC(),
			EndDateTime:    scheduleItem.End.UTC(),
			Location:       scheduleItem.Location,
			Room:           scheduleItem.Room,
			Status:         models.ScheduleStatusPending,
		}
		if err := tx.Create(&schedule).Error; err != nil {
			return err
		}
		summary.Schedules++
	}
	return nil
}

// lookupUser resolves an email from the fixture first, then from existing rows.
func lookupUser(tx *gorm.DB, users map[string]models.User, email string) (models.User, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if user, ok := users[key]; ok {
		return user, nil
	}

	var user models.User
	if err := tx.Where("email = ?", key).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, fmt.Errorf("%w: unknown user %q", ErrInvalidFixture, email)
		}
		return models.User{}, err
	}
	users[key] = user
	return user, nil
}
