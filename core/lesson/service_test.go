package lesson_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/ai"
	"github.com/trezcool/muziki/core/lesson"
	"github.com/trezcool/muziki/storage/database/gormrepos"
	"github.com/trezcool/muziki/testutil"
)

type fakeGen struct {
	plans   []ai.LessonPlanRequest
	quizzes []ai.QuizRequest
	reply   string
	err     error
}

func (g *fakeGen) GenerateLessonPlanContent(_ context.Context, req ai.LessonPlanRequest) (string, error) {
	g.plans = append(g.plans, req)
	return g.reply, g.err
}

func (g *fakeGen) GenerateQuizQuestions(_ context.Context, req ai.QuizRequest) (string, error) {
	g.quizzes = append(g.quizzes, req)
	return g.reply, g.err
}

func setup(t *testing.T) (*lesson.Service, *fakeGen, string) {
	db := testutil.PrepareDB(t)
	gen := &fakeGen{reply: "1. Play C major.\n"}
	teacher := testutil.CreateTeacher(t, db, "Clara", "clara")
	return lesson.NewService(gormrepos.NewLessonRepository(db), gen), gen, teacher.UserID
}

func TestService_CreateLessonPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("blank content is generated", func(t *testing.T) {
		svc, gen, teacherID := setup(t)

		lp, err := svc.CreateLessonPlan(ctx, lesson.NewLessonPlan{
			TeacherID:  teacherID,
			Title:      " Scales ",
			Instrument: "Piano",
			Content:    "  \n",
			Topic:      "major scales",
			Level:      "beginner",
		})
		require.NoError(t, err)
		assert.Equal(t, []ai.LessonPlanRequest{{Instrument: "piano", Topic: "major scales", Level: "beginner"}}, gen.plans)
		assert.Equal(t, "1. Play C major.\n", lp.Content)
		assert.Equal(t, "Scales", lp.Title)
	})

	t.Run("given content is kept", func(t *testing.T) {
		svc, gen, teacherID := setup(t)

		lp, err := svc.CreateLessonPlan(ctx, lesson.NewLessonPlan{
			TeacherID: teacherID, Title: "Chords", Instrument: "guitar", Content: "Open chords.",
		})
		require.NoError(t, err)
		assert.Empty(t, gen.plans)
		assert.Equal(t, "Open chords.", lp.Content)
	})

	t.Run("topic & level are required without content", func(t *testing.T) {
		svc, gen, teacherID := setup(t)

		_, err := svc.CreateLessonPlan(ctx, lesson.NewLessonPlan{TeacherID: teacherID, Title: "Chords", Instrument: "guitar"})
		var vErrs validator.ValidationErrors
		require.True(t, errors.As(err, &vErrs), "got %v", err)
		assert.Equal(t, map[string]string{
			"topic": "this field is required",
			"level": "this field is required",
		}, core.ValidationMessages(vErrs))
		assert.Empty(t, gen.plans)
	})

	t.Run("generation failure", func(t *testing.T) {
		svc, gen, teacherID := setup(t)
		gen.err = ai.ErrGeneration

		_, err := svc.CreateLessonPlan(ctx, lesson.NewLessonPlan{
			TeacherID: teacherID, Title: "Scales", Instrument: "piano", Topic: "scales", Level: "beginner",
		})
		assert.Equal(t, ai.ErrGeneration, errors.Cause(err))

		plans, err := svc.QueryLessonPlans(ctx, nil, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, plans)
	})
}

func TestService_CreateQuiz(t *testing.T) {
	ctx := context.Background()

	newPlan := func(t *testing.T, svc *lesson.Service, teacherID string) lesson.LessonPlan {
		lp, err := svc.CreateLessonPlan(ctx, lesson.NewLessonPlan{
			TeacherID: teacherID, Title: "Scales", Instrument: "piano", Content: "Scales.",
		})
		require.NoError(t, err)
		return lp
	}

	tests := []struct {
		name          string
		data          lesson.NewQuiz
		wantRequests  []ai.QuizRequest
		wantQuestions string
		wantErr       string
	}{
		{
			name:          "title is the fallback topic",
			data:          lesson.NewQuiz{Title: " Scales quiz "},
			wantRequests:  []ai.QuizRequest{{Topic: "Scales quiz"}},
			wantQuestions: `{"text": "1. Play C major.\n"}`,
		},
		{
			name:          "null questions are generated",
			data:          lesson.NewQuiz{Title: "Scales quiz", Questions: json.RawMessage("null"), Topic: "modes", NumQuestions: 3},
			wantRequests:  []ai.QuizRequest{{Topic: "modes", NumQuestions: 3}},
			wantQuestions: `{"text": "1. Play C major.\n"}`,
		},
		{
			name:          "given questions are kept",
			data:          lesson.NewQuiz{Title: "Scales quiz", Questions: json.RawMessage(`[{"q": "How many sharps in G?"}]`)},
			wantQuestions: `[{"q": "How many sharps in G?"}]`,
		},
		{
			name:    "invalid questions",
			data:    lesson.NewQuiz{Title: "Scales quiz", Questions: json.RawMessage(`{"q":`)},
			wantErr: "must be a valid JSON document",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, gen, teacherID := setup(t)
			lp := newPlan(t, svc, teacherID)

			q, err := svc.CreateQuiz(ctx, lp, tt.data)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRequests, gen.quizzes)
			assert.Equal(t, lp.ID, q.LessonPlanID)
			assert.JSONEq(t, tt.wantQuestions, string(q.Questions))
		})
	}
}
