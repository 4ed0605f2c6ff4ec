// Package assignment manages the performances students submit for lesson plans,
// and their review by teachers.
package assignment

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/audio"
)

const filesDir = "assignments"

var ErrNotFound = core.NewNotFoundError("assignment")

type Assignment struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	LessonPlanID   string    `json:"lesson_plan_id"`
	SubmissionFile string    `json:"submission_file"` // FileStore name
	Feedback       string    `json:"feedback"`
	Grade          string    `json:"grade"` // blank until reviewed
	SubmittedAt    time.Time `json:"submitted_at"`
}

func (a Assignment) Graded() bool { return a.Grade != "" }

// NewAssignment contains information needed to submit an Assignment, except for the file.
type NewAssignment struct {
	StudentID    string `form:"student_id" validate:"required,uuid"`
	LessonPlanID string `form:"lesson_plan_id" validate:"required,uuid"`
}

type Review struct {
	Feedback string `json:"feedback" validate:"max=5000"`
	Grade    string `json:"grade" validate:"required,max=10"`
}

type Filter struct {
	StudentID    string `query:"student_id"`
	LessonPlanID string `query:"lesson_plan_id"`
	Graded       *bool  `query:"graded"`
}

// Orderings maps the fields Assignments can be ordered by to their columns.
var Orderings = map[string]string{
	"submitted_at": "submitted_at",
	"grade":        "grade",
}

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		// QueryAssignments applies AND operation on the Filter fields.
		// teacherID, when not empty, restricts results to students of that teacher.
		QueryAssignments(ctx context.Context, filter Filter, teacherID string, ordering []core.DBOrdering) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error
	}

	// Analyzer analyses recorded performances.
	Analyzer interface {
		Analyze(ctx context.Context, r io.ReadSeeker) (audio.Analysis, error)
	}

	Service struct {
		repo     Repository
		files    core.FileStore
		analyzer Analyzer
		logger   core.Logger
	}
)

func NewService(repo Repository, files core.FileStore, analyzer Analyzer, logger core.Logger) *Service {
	return &Service{repo: repo, files: files, analyzer: analyzer, logger: logger}
}

// Submit stores the submitted file as assignments/<random id><ext> and records the Assignment.
func (svc *Service) Submit(ctx context.Context, data NewAssignment, filename string, file io.Reader) (Assignment, error) {
	data.StudentID = core.CleanString(data.StudentID)
	data.LessonPlanID = core.CleanString(data.LessonPlanID)
	if err := core.Validate.Struct(data); err != nil {
		return Assignment{}, err
	}
	if file == nil || core.CleanString(filename) == "" {
		return Assignment{}, core.NewFieldError("file", "this field is required")
	}

	name := path.Join(filesDir, uuid.NewString()+strings.ToLower(path.Ext(filename)))
	if err := svc.files.Save(ctx, name, file); err != nil {
		return Assignment{}, errors.Wrap(err, "saving submission file")
	}

	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		StudentID:      data.StudentID,
		LessonPlanID:   data.LessonPlanID,
		SubmissionFile: name,
		SubmittedAt:    time.Now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		if dErr := svc.files.Delete(ctx, name); dErr != nil {
			svc.logger.Warn("deleting orphan submission file", dErr, map[string]interface{}{"file": name})
		}
		return Assignment{}, err
	}
	return a, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter Filter, teacherID string, ordering []core.DBOrdering) ([]Assignment, error) {
	filter.StudentID = core.CleanString(filter.StudentID)
	filter.LessonPlanID = core.CleanString(filter.LessonPlanID)
	return svc.repo.QueryAssignments(ctx, filter, teacherID, core.CleanOrderings(ordering, Orderings))
}

// Review records the teacher's feedback & grade.
func (svc *Service) Review(ctx context.Context, a Assignment, data Review) (Assignment, error) {
	data.Feedback = core.CleanString(data.Feedback)
	data.Grade = core.CleanString(data.Grade)
	if err := core.Validate.Struct(data); err != nil {
		return Assignment{}, err
	}
	a.Feedback = data.Feedback
	a.Grade = data.Grade
	return svc.repo.UpdateAssignment(ctx, a)
}

// OpenFile opens the submitted file. The caller closes it.
func (svc *Service) OpenFile(ctx context.Context, a Assignment) (io.ReadCloser, error) {
	return svc.files.Open(ctx, a.SubmissionFile)
}

// Analyze analyses the submitted performance.
func (svc *Service) Analyze(ctx context.Context, a Assignment) (audio.Analysis, error) {
	rc, err := svc.files.Open(ctx, a.SubmissionFile)
	if err != nil {
		return audio.Analysis{}, errors.Wrap(err, "opening submission file")
	}
	defer rc.Close()

	rs, ok := rc.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(rc)
		if err != nil {
			return audio.Analysis{}, errors.Wrap(err, "reading submission file")
		}
		rs = bytes.NewReader(data)
	}
	return svc.analyzer.Analyze(ctx, rs)
}

// Delete removes the Assignment and its file.
func (svc *Service) Delete(ctx context.Context, a Assignment) error {
	if err := svc.repo.DeleteAssignment(ctx, a.ID); err != nil {
		return err
	}
	if err := svc.files.Delete(ctx, a.SubmissionFile); err != nil {
		svc.logger.Warn("deleting submission file", err, map[string]interface{}{"file": a.SubmissionFile})
	}
	return nil
}
