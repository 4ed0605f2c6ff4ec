package gormrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/lesson"
)

type lessonPlanRecord struct {
	ID         string         `gorm:"primaryKey;size:36"`
	TeacherID  string         `gorm:"size:36;not null;index"`
	Teacher    *teacherRecord `gorm:"foreignKey:TeacherID;references:UserID;constraint:OnDelete:CASCADE"`
	Title      string         `gorm:"size:200;not null"`
	Instrument string         `gorm:"size:50;not null"`
	Content    string         `gorm:"type:text;not null"`
	CreatedAt  time.Time      `gorm:"not null;autoCreateTime:false"`
}

func (lessonPlanRecord) TableName() string { return "lesson_plans" }

func fromLessonPlan(lp lesson.LessonPlan) lessonPlanRecord {
	return lessonPlanRecord{
		ID:         lp.ID,
		TeacherID:  lp.TeacherID,
		Title:      lp.Title,
		Instrument: lp.Instrument,
		Content:    lp.Content,
		CreatedAt:  lp.CreatedAt.UTC(),
	}
}

func (rec lessonPlanRecord) toLessonPlan() lesson.LessonPlan {
	return lesson.LessonPlan{
		ID:         rec.ID,
		TeacherID:  rec.TeacherID,
		Title:      rec.Title,
		Instrument: rec.Instrument,
		Content:    rec.Content,
		CreatedAt:  rec.CreatedAt.UTC(),
	}
}

type quizRecord struct {
	ID           string            `gorm:"primaryKey;size:36"`
	LessonPlanID string            `gorm:"size:36;not null;index"`
	LessonPlan   *lessonPlanRecord `gorm:"foreignKey:LessonPlanID;constraint:OnDelete:CASCADE"`
	Title        string            `gorm:"size:200;not null"`
	Questions    datatypes.JSON    `gorm:"not null"`
}

func (quizRecord) TableName() string { return "quizzes" }

func fromQuiz(q lesson.Quiz) quizRecord {
	return quizRecord{ID: q.ID, LessonPlanID: q.LessonPlanID, Title: q.Title, Questions: datatypes.JSON(q.Questions)}
}

func (rec quizRecord) toQuiz() lesson.Quiz {
	return lesson.Quiz{ID: rec.ID, LessonPlanID: rec.LessonPlanID, Title: rec.Title, Questions: []byte(rec.Questions)}
}

type LessonRepository struct {
	repo
}

var _ lesson.Repository = (*LessonRepository)(nil)

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{repo{db: db}}
}

func (r *LessonRepository) CreateLessonPlan(ctx context.Context, lp lesson.LessonPlan) (lesson.LessonPlan, error) {
	lp.ID = newID()
	rec := fromLessonPlan(lp)
	if err := r.conn(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		return lesson.LessonPlan{}, errors.Wrap(err, "inserting lesson plan")
	}
	return rec.toLessonPlan(), nil
}

func (r *LessonRepository) GetLessonPlan(ctx context.Context, id string) (lesson.LessonPlan, error) {
	if !validID(id) {
		return lesson.LessonPlan{}, lesson.ErrNotFound
	}
	var rec lessonPlanRecord
	if err := r.conn(ctx).Take(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lesson.LessonPlan{}, lesson.ErrNotFound
		}
		return lesson.LessonPlan{}, errors.Wrap(err, "getting lesson plan")
	}
	return rec.toLessonPlan(), nil
}

func (r *LessonRepository) QueryLessonPlans(ctx context.Context, filter *lesson.LessonPlanFilter, teacherIDs []string, ordering []core.DBOrdering) ([]lesson.LessonPlan, error) {
	q := r.conn(ctx).Model(&lessonPlanRecord{})
	if teacherIDs != nil {
		q = q.Where("teacher_id IN ?", teacherIDs)
	}
	if filter != nil {
		if filter.TeacherID != "" {
			q = q.Where("teacher_id = ?", filter.TeacherID)
		}
		if filter.Instrument != "" {
			q = q.Where("instrument = ?", filter.Instrument)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
		}
	}

	var recs []lessonPlanRecord
	if err := order(q, ordering, "created_at DESC, id").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "querying lesson plans")
	}
	plans := make([]lesson.LessonPlan, 0, len(recs))
	for _, rec := range recs {
		plans = append(plans, rec.toLessonPlan())
	}
	return plans, nil
}

func (r *LessonRepository) UpdateLessonPlan(ctx context.Context, lp lesson.LessonPlan) (lesson.LessonPlan, error) {
	rec := fromLessonPlan(lp)
	res := r.conn(ctx).Model(&rec).Select("title", "instrument", "content").Updates(&rec)
	if res.Error != nil {
		return lesson.LessonPlan{}, errors.Wrap(res.Error, "updating lesson plan")
	}
	if res.RowsAffected == 0 {
		return lesson.LessonPlan{}, lesson.ErrNotFound
	}
	return rec.toLessonPlan(), nil
}

func (r *LessonRepository) DeleteLessonPlan(ctx context.Context, id string) error {
	res := r.conn(ctx).Where("id = ?", id).Delete(&lessonPlanRecord{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting lesson plan")
	}
	if res.RowsAffected == 0 {
		return lesson.ErrNotFound
	}
	return nil
}

func (r *LessonRepository) CreateQuiz(ctx context.Context, q lesson.Quiz) (lesson.Quiz, error) {
	q.ID = newID()
	rec := fromQuiz(q)
	if err := r.conn(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		return lesson.Quiz{}, errors.Wrap(err, "inserting quiz")
	}
	return rec.toQuiz(), nil
}

func (r *LessonRepository) GetQuiz(ctx context.Context, id string) (lesson.Quiz, error) {
	if !validID(id) {
		return lesson.Quiz{}, lesson.ErrQuizNotFound
	}
	var rec quizRecord
	if err := r.conn(ctx).Take(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return lesson.Quiz{}, lesson.ErrQuizNotFound
		}
		return lesson.Quiz{}, errors.Wrap(err, "getting quiz")
	}
	return rec.toQuiz(), nil
}

func (r *LessonRepository) QueryQuizzes(ctx context.Context, lessonPlanID string) ([]lesson.Quiz, error) {
	var recs []quizRecord
	if err := r.conn(ctx).Where("lesson_plan_id = ?", lessonPlanID).Order("title, id").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "querying quizzes")
	}
	quizzes := make([]lesson.Quiz, 0, len(recs))
	for _, rec := range recs {
		quizzes = append(quizzes, rec.toQuiz())
	}
	return quizzes, nil
}

func (r *LessonRepository) UpdateQuiz(ctx context.Context, q lesson.Quiz) (lesson.Quiz, error) {
	rec := fromQuiz(q)
	res := r.conn(ctx).Model(&rec).Select("title", "questions").Updates(&rec)
	if res.Error != nil {
		return lesson.Quiz{}, errors.Wrap(res.Error, "updating quiz")
	}
	if res.RowsAffected == 0 {
		return lesson.Quiz{}, lesson.ErrQuizNotFound
	}
	return rec.toQuiz(), nil
}

func (r *LessonRepository) DeleteQuiz(ctx context.Context, id string) error {
	res := r.conn(ctx).Where("id = ?", id).Delete(&quizRecord{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting quiz")
	}
	if res.RowsAffected == 0 {
		return lesson.ErrQuizNotFound
	}
	return nil
}
