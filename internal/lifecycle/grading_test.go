package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-training-api/internal/models"
)

func score(v float64) *float64 { return &v }

func TestEvaluateGradePassesAboveThreshold(t *testing.T) {
	components := GradeComponents{Participation: score(75), Assignment: score(75), Practical: score(75), FinalExam: score(75)}

	outcome := EvaluateGrade(DefaultGradingPolicy(), 60, components)
	require.Equal(t, models.GradeStatusPassed, outcome.Status)
	require.NotNil(t, outcome.TotalScore)
	require.InDelta(t, 75, *outcome.TotalScore, 0.001)
}

func TestEvaluateGradeFailsBelowThreshold(t *testing.T) {
	components := GradeComponents{Participation: score(100), Assignment: score(50), Practical: score(40), FinalExam: score(50)}

	outcome := EvaluateGrade(DefaultGradingPolicy(), 60, components)
	require.Equal(t, models.GradeStatusFailed, outcome.Status)
	require.InDelta(t, 52, *outcome.TotalScore, 0.001)
}

func TestEvaluateGradeIncompleteStaysPending(t *testing.T) {
	components := GradeComponents{Participation: score(90), Assignment: score(90)}

	outcome := EvaluateGrade(DefaultGradingPolicy(), 60, components)
	require.Equal(t, models.GradeStatusPending, outcome.Status)
	require.Nil(t, outcome.TotalScore)
}

func TestEvaluateGradeMisconfiguredPolicyFailsClosed(t *testing.T) {
	components := GradeComponents{Participation: score(90), Assignment: score(90), Practical: score(90), FinalExam: score(90)}

	broken := GradingPolicy{ParticipationWeight: 0.5, AssignmentWeight: 0.5, PracticalWeight: 0.5, FinalExamWeight: 0.5}
	require.Equal(t, models.GradeStatusPending, EvaluateGrade(broken, 60, components).Status)
	require.Equal(t, models.GradeStatusPending, EvaluateGrade(DefaultGradingPolicy(), 0, components).Status)
	require.Equal(t, models.GradeStatusPending, EvaluateGrade(DefaultGradingPolicy(), 150, components).Status)
}
