package lesson

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/ai"
)

var (
	ErrNotFound     = core.NewNotFoundError("lesson plan")
	ErrQuizNotFound = core.NewNotFoundError("quiz")

	errInvalidQuestions = "must be a valid JSON document"
)

type (
	Repository interface {
		CreateLessonPlan(ctx context.Context, lp LessonPlan) (LessonPlan, error)
		GetLessonPlan(ctx context.Context, id string) (LessonPlan, error)
		// QueryLessonPlans applies AND operation on the available LessonPlanFilter fields.
		// teacherIDs, when not nil, restricts results to plans of these teachers.
		QueryLessonPlans(ctx context.Context, filter *LessonPlanFilter, teacherIDs []string, ordering []core.DBOrdering) ([]LessonPlan, error)
		UpdateLessonPlan(ctx context.Context, lp LessonPlan) (LessonPlan, error)
		DeleteLessonPlan(ctx context.Context, id string) error

		CreateQuiz(ctx context.Context, q Quiz) (Quiz, error)
		GetQuiz(ctx context.Context, id string) (Quiz, error)
		QueryQuizzes(ctx context.Context, lessonPlanID string) ([]Quiz, error)
		UpdateQuiz(ctx context.Context, q Quiz) (Quiz, error)
		DeleteQuiz(ctx context.Context, id string) error
	}

	// ContentGenerator generates lesson plans & quiz questions.
	ContentGenerator interface {
		GenerateLessonPlanContent(ctx context.Context, req ai.LessonPlanRequest) (string, error)
		GenerateQuizQuestions(ctx context.Context, req ai.QuizRequest) (string, error)
	}

	Service struct {
		repo Repository
		gen  ContentGenerator
	}
)

func NewService(repo Repository, gen ContentGenerator) *Service {
	return &Service{repo: repo, gen: gen}
}

func (svc *Service) CreateLessonPlan(ctx context.Context, data NewLessonPlan) (LessonPlan, error) {
	data.Clean()
	if err := core.Validate.Struct(data); err != nil {
		return LessonPlan{}, err
	}

	content := data.Content
	if core.CleanString(content) == "" {
		var err error
		content, err = svc.gen.GenerateLessonPlanContent(ctx, ai.LessonPlanRequest{
			Instrument: data.Instrument,
			Topic:      data.Topic,
			Level:      data.Level,
		})
		if err != nil {
			return LessonPlan{}, errors.Wrap(err, "generating lesson plan content")
		}
	}

	return svc.repo.CreateLessonPlan(ctx, LessonPlan{
		TeacherID:  data.TeacherID,
		Title:      data.Title,
		Instrument: data.Instrument,
		Content:    content,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	})
}

func (svc *Service) GetLessonPlan(ctx context.Context, id string) (LessonPlan, error) {
	return svc.repo.GetLessonPlan(ctx, id)
}

func (svc *Service) QueryLessonPlans(ctx context.Context, filter *LessonPlanFilter, teacherIDs []string, ordering []core.DBOrdering) ([]LessonPlan, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryLessonPlans(ctx, filter, teacherIDs, core.CleanOrderings(ordering, LessonPlanOrderings))
}

func (svc *Service) UpdateLessonPlan(ctx context.Context, lp LessonPlan, data UpdateLessonPlan) (LessonPlan, error) {
	data.Clean()
	if err := core.Validate.Struct(data); err != nil {
		return LessonPlan{}, err
	}
	if data.Title != nil {
		lp.Title = *data.Title
	}
	if data.Instrument != nil {
		lp.Instrument = *data.Instrument
	}
	if data.Content != nil {
		lp.Content = *data.Content
	}
	return svc.repo.UpdateLessonPlan(ctx, lp)
}

func (svc *Service) DeleteLessonPlan(ctx context.Context, id string) error {
	return svc.repo.DeleteLessonPlan(ctx, id)
}

func (svc *Service) CreateQuiz(ctx context.Context, lp LessonPlan, data NewQuiz) (Quiz, error) {
	data.Clean()
	if err := core.Validate.Struct(data); err != nil {
		return Quiz{}, err
	}

	questions := data.Questions
	if len(questions) == 0 || string(questions) == "null" {
		topic := data.Topic
		if topic == "" {
			topic = data.Title
		}
		text, err := svc.gen.GenerateQuizQuestions(ctx, ai.QuizRequest{Topic: topic, NumQuestions: data.NumQuestions})
		if err != nil {
			return Quiz{}, errors.Wrap(err, "generating quiz questions")
		}
		if questions, err = json.Marshal(GeneratedQuestions{Text: text}); err != nil {
			return Quiz{}, errors.Wrap(err, "encoding generated questions")
		}
	} else if !json.Valid(questions) {
		return Quiz{}, core.NewFieldError("questions", errInvalidQuestions)
	}

	return svc.repo.CreateQuiz(ctx, Quiz{
		LessonPlanID: lp.ID,
		Title:        data.Title,
		Questions:    questions,
	})
}

func (svc *Service) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, id)
}

func (svc *Service) QueryQuizzes(ctx context.Context, lessonPlanID string) ([]Quiz, error) {
	return svc.repo.QueryQuizzes(ctx, lessonPlanID)
}

func (svc *Service) UpdateQuiz(ctx context.Context, q Quiz, data UpdateQuiz) (Quiz, error) {
	if data.Title != nil {
		title := core.CleanString(*data.Title)
		data.Title = &title
	}
	if err := core.Validate.Struct(data); err != nil {
		return Quiz{}, err
	}
	if data.Title != nil {
		q.Title = *data.Title
	}
	if len(data.Questions) > 0 && string(data.Questions) != "null" {
		if !json.Valid(data.Questions) {
			return Quiz{}, core.NewFieldError("questions", errInvalidQuestions)
		}
		q.Questions = data.Questions
	}
	return svc.repo.UpdateQuiz(ctx, q)
}

func (svc *Service) DeleteQuiz(ctx context.Context, id string) error {
	return svc.repo.DeleteQuiz(ctx, id)
}
