package lifecycle

import (
	"math"

	"github.com/noah-isme/gema-training-api/internal/models"
)

const weightTolerance = 1e-6

// GradingPolicy weights the four grade components into a total score.
type GradingPolicy struct {
	ParticipationWeight float64
	AssignmentWeight    float64
	PracticalWeight     float64
	FinalExamWeight     float64
}

// DefaultGradingPolicy returns the weights used when configuration omits them.
func DefaultGradingPolicy() GradingPolicy {
	return GradingPolicy{
		ParticipationWeight: 0.1,
		AssignmentWeight:    0.2,
		PracticalWeight:     0.3,
		FinalExamWeight:     0.4,
	}
}

// Valid reports whether the weights are non-negative and sum to one.
func (p GradingPolicy) Valid() bool {
	weights := []float64{p.ParticipationWeight, p.AssignmentWeight, p.PracticalWeight, p.FinalExamWeight}
	sum := 0.0
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return false
		}
		sum += w
	}
	return math.Abs(sum-1) < weightTolerance
}

// GradeComponents holds the recorded component scores; nil means not yet recorded.
type GradeComponents struct {
	Participation *float64
	Assignment    *float64
	Practical     *float64
	FinalExam     *float64
}

// Complete reports whether all four components are recorded.
func (c GradeComponents) Complete() bool {
	return c.Participation != nil && c.Assignment != nil && c.Practical != nil && c.FinalExam != nil
}

// GradeOutcome is the result of evaluating a grade against a passing score.
type GradeOutcome struct {
	TotalScore *float64
	Status     models.GradeStatus
}

// EvaluateGrade computes the total score and status. Incomplete grades and
// unresolvable policies stay pending rather than passing.
func EvaluateGrade(policy GradingPolicy, passingScore float64, components GradeComponents) GradeOutcome {
	if !components.Complete() {
		return GradeOutcome{Status: models.GradeStatusPending}
	}

	if !policy.Valid() || passingScore <= 0 || passingScore > 100 || math.IsNaN(passingScore) {
		return GradeOutcome{Status: models.GradeStatusPending}
	}

	total := *components.Participation*policy.ParticipationWeight +
		*components.Assignment*policy.AssignmentWeight +
		*components.Practical*policy.PracticalWeight +
		*components.FinalExam*policy.FinalExamWeight
	total = math.Round(total*100) / 100

	status := models.GradeStatusFailed
	if total >= passingScore {
		status = models.GradeStatusPassed
	}

	return GradeOutcome{TotalScore: &total, Status: status}
}
