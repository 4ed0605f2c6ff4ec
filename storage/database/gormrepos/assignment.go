package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/assignment"
)

type assignmentRecord struct {
	ID             string            `gorm:"primaryKey;size:36"`
	StudentID      string            `gorm:"size:36;not null;index"`
	Student        *studentRecord    `gorm:"foreignKey:StudentID;references:UserID;constraint:OnDelete:CASCADE"`
	LessonPlanID   string            `gorm:"size:36;not null;index"`
	LessonPlan     *lessonPlanRecord `gorm:"foreignKey:LessonPlanID;constraint:OnDelete:CASCADE"`
	SubmissionFile string            `gorm:"size:255;not null"`
	Feedback       string            `gorm:"type:text;not null"`
	Grade          string            `gorm:"size:10;not null"`
	SubmittedAt    time.Time         `gorm:"not null"`
}

func (assignmentRecord) TableName() string { return "assignments" }

func fromAssignment(a assignment.Assignment) assignmentRecord {
	return assignmentRecord{
		ID:             a.ID,
		StudentID:      a.StudentID,
		LessonPlanID:   a.LessonPlanID,
		SubmissionFile: a.SubmissionFile,
		Feedback:       a.Feedback,
		Grade:          a.Grade,
		SubmittedAt:    a.SubmittedAt.UTC(),
	}
}

func (rec assignmentRecord) toAssignment() assignment.Assignment {
	return assignment.Assignment{
		ID:             rec.ID,
		StudentID:      rec.StudentID,
		LessonPlanID:   rec.LessonPlanID,
		SubmissionFile: rec.SubmissionFile,
		Feedback:       rec.Feedback,
		Grade:          rec.Grade,
		SubmittedAt:    rec.SubmittedAt.UTC(),
	}
}

type AssignmentRepository struct {
	repo
}

var _ assignment.Repository = (*AssignmentRepository)(nil)

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{repo{db: db}}
}

func (r *AssignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	a.ID = newID()
	rec := fromAssignment(a)
	if err := r.conn(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return rec.toAssignment(), nil
}

func (r *AssignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	if !validID(id) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	var rec assignmentRecord
	if err := r.conn(ctx).Take(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "getting assignment")
	}
	return rec.toAssignment(), nil
}

func (r *AssignmentRepository) QueryAssignments(ctx context.Context, filter assignment.Filter, teacherID string, ordering []core.DBOrdering) ([]assignment.Assignment, error) {
	q := r.conn(ctx).Model(&assignmentRecord{})
	if teacherID != "" {
		q = q.Where("student_id IN (?)", r.conn(ctx).Model(&studentRecord{}).Select("user_id").Where("teacher_id = ?", teacherID))
	}
	if filter.StudentID != "" {
		q = q.Where("student_id = ?", filter.StudentID)
	}
	if filter.LessonPlanID != "" {
		q = q.Where("lesson_plan_id = ?", filter.LessonPlanID)
	}
	if filter.Graded != nil {
		if *filter.Graded {
			q = q.Where("grade <> ''")
		} else {
			q = q.Where("grade = ''")
		}
	}

	var recs []assignmentRecord
	if err := order(q, ordering, "submitted_at DESC, id").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	items := make([]assignment.Assignment, 0, len(recs))
	for _, rec := range recs {
		items = append(items, rec.toAssignment())
	}
	return items, nil
}

func (r *AssignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	rec := fromAssignment(a)
	res := r.conn(ctx).Model(&rec).Select("feedback", "grade").Updates(&rec)
	if res.Error != nil {
		return assignment.Assignment{}, errors.Wrap(res.Error, "updating assignment")
	}
	if res.RowsAffected == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return r.GetAssignment(ctx, a.ID)
}

func (r *AssignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	res := r.conn(ctx).Where("id = ?", id).Delete(&assignmentRecord{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting assignment")
	}
	if res.RowsAffected == 0 {
		return assignment.ErrNotFound
	}
	return nil
}
