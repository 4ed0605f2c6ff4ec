package lesson

import (
	"encoding/json"
	"time"

	"github.com/trezcool/muziki/core"
)

type LessonPlan struct {
	ID         string    `json:"id"`
	TeacherID  string    `json:"teacher_id"`
	Title      string    `json:"title"`
	Instrument string    `json:"instrument"` // e.g. "piano", "guitar"
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewLessonPlan contains information needed to create a LessonPlan.
// When Content is blank, it is generated from Topic & Level.
type NewLessonPlan struct {
	TeacherID  string `json:"teacher_id" validate:"omitempty,uuid"`
	Title      string `json:"title" validate:"required,max=200"`
	Instrument string `json:"instrument" validate:"required,max=50"`
	Content    string `json:"content"`
	Topic      string `json:"topic" validate:"required_without=Content"`
	Level      string `json:"level" validate:"required_without=Content"`
}

func (nlp *NewLessonPlan) Clean() {
	nlp.Title = core.CleanString(nlp.Title)
	nlp.Instrument = core.CleanString(nlp.Instrument, true /* lower */)
	nlp.Topic = core.CleanString(nlp.Topic)
	nlp.Level = core.CleanString(nlp.Level)
	nlp.TeacherID = core.CleanString(nlp.TeacherID)
}

type UpdateLessonPlan struct {
	Title      *string `json:"title" validate:"omitempty,min=1,max=200"`
	Instrument *string `json:"instrument" validate:"omitempty,min=1,max=50"`
	Content    *string `json:"content"`
}

func (ulp *UpdateLessonPlan) Clean() {
	if ulp.Title != nil {
		title := core.CleanString(*ulp.Title)
		ulp.Title = &title
	}
	if ulp.Instrument != nil {
		instrument := core.CleanString(*ulp.Instrument, true /* lower */)
		ulp.Instrument = &instrument
	}
}

type LessonPlanFilter struct {
	TeacherID  string `query:"teacher_id"`
	Instrument string `query:"instrument"`
	Search     string `query:"search"` // case-insensitive match on the title
}

func (f *LessonPlanFilter) Clean() {
	f.TeacherID = core.CleanString(f.TeacherID)
	f.Instrument = core.CleanString(f.Instrument, true /* lower */)
	f.Search = core.CleanString(f.Search)
}

// LessonPlanOrderings maps the fields LessonPlans can be ordered by to their columns.
var LessonPlanOrderings = map[string]string{
	"title":      "title",
	"instrument": "instrument",
	"created_at": "created_at",
}

type Quiz struct {
	ID           string          `json:"id"`
	LessonPlanID string          `json:"lesson_plan_id"`
	Title        string          `json:"title"`
	Questions    json.RawMessage `json:"questions"` // free-form JSON document
}

// NewQuiz contains information needed to create a Quiz.
// When Questions is empty, NumQuestions questions about Topic are generated.
type NewQuiz struct {
	Title        string          `json:"title" validate:"required,max=200"`
	Questions    json.RawMessage `json:"questions"`
	Topic        string          `json:"topic"`
	NumQuestions int             `json:"num_questions" validate:"omitempty,min=1,max=50"`
}

func (nq *NewQuiz) Clean() {
	nq.Title = core.CleanString(nq.Title)
	nq.Topic = core.CleanString(nq.Topic)
}

type UpdateQuiz struct {
	Title     *string         `json:"title" validate:"omitempty,min=1,max=200"`
	Questions json.RawMessage `json:"questions"`
}

// GeneratedQuestions is the JSON document generated quiz questions are stored as.
type GeneratedQuestions struct {
	Text string `json:"text"`
}
