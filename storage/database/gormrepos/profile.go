package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/muziki/core/profile"
)

type teacherRecord struct {
	UserID    string     `gorm:"primaryKey;size:36"`
	User      userRecord `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime:false"`
}

func (teacherRecord) TableName() string { return "teacher_profiles" }

func (rec teacherRecord) toTeacher() profile.Teacher {
	return profile.Teacher{UserID: rec.UserID, User: rec.User.toUser(), CreatedAt: rec.CreatedAt.UTC()}
}

type studentRecord struct {
	UserID    string         `gorm:"primaryKey;size:36"`
	User      userRecord     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	TeacherID *string        `gorm:"size:36;index"`
	Teacher   *teacherRecord `gorm:"foreignKey:TeacherID;references:UserID;constraint:OnDelete:SET NULL"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime:false"`
}

func (studentRecord) TableName() string { return "student_profiles" }

func (rec studentRecord) toStudent() profile.Student {
	return profile.Student{UserID: rec.UserID, User: rec.User.toUser(), TeacherID: rec.TeacherID, CreatedAt: rec.CreatedAt.UTC()}
}

type ProfileRepository struct {
	repo
}

var _ profile.Repository = (*ProfileRepository)(nil)

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{repo{db: db}}
}

func (r *ProfileRepository) CreateTeacher(ctx context.Context, t profile.Teacher) (profile.Teacher, error) {
	rec := teacherRecord{UserID: t.UserID, CreatedAt: t.CreatedAt.UTC()}
	if err := r.conn(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		return profile.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return r.GetTeacher(ctx, t.UserID)
}

func (r *ProfileRepository) GetTeacher(ctx context.Context, userID string) (profile.Teacher, error) {
	if !validID(userID) {
		return profile.Teacher{}, profile.ErrTeacherNotFound
	}
	var rec teacherRecord
	if err := r.conn(ctx).Preload("User").Take(&rec, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return profile.Teacher{}, profile.ErrTeacherNotFound
		}
		return profile.Teacher{}, errors.Wrap(err, "getting teacher")
	}
	return rec.toTeacher(), nil
}

func (r *ProfileRepository) QueryTeachers(ctx context.Context) ([]profile.Teacher, error) {
	var recs []teacherRecord
	if err := r.conn(ctx).Preload("User").Order("created_at, user_id").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	teachers := make([]profile.Teacher, 0, len(recs))
	for _, rec := range recs {
		teachers = append(teachers, rec.toTeacher())
	}
	return teachers, nil
}

func (r *ProfileRepository) DeleteTeacher(ctx context.Context, userID string) error {
	return r.delete(ctx, &teacherRecord{}, userID, profile.ErrTeacherNotFound)
}

func (r *ProfileRepository) CreateStudent(ctx context.Context, s profile.Student) (profile.Student, error) {
	rec := studentRecord{UserID: s.UserID, TeacherID: s.TeacherID, CreatedAt: s.CreatedAt.UTC()}
	if err := r.conn(ctx).Omit(clause.Associations).Create(&rec).Error; err != nil {
		return profile.Student{}, errors.Wrap(err, "inserting student")
	}
	return r.GetStudent(ctx, s.UserID)
}

func (r *ProfileRepository) GetStudent(ctx context.Context, userID string) (profile.Student, error) {
	if !validID(userID) {
		return profile.Student{}, profile.ErrStudentNotFound
	}
	var rec studentRecord
	if err := r.conn(ctx).Preload("User").Take(&rec, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return profile.Student{}, profile.ErrStudentNotFound
		}
		return profile.Student{}, errors.Wrap(err, "getting student")
	}
	return rec.toStudent(), nil
}

func (r *ProfileRepository) QueryStudents(ctx context.Context, filter profile.StudentFilter) ([]profile.Student, error) {
	q := r.conn(ctx).Preload("User")
	if filter.TeacherID != "" {
		q = q.Where("teacher_id = ?", filter.TeacherID)
	}
	var recs []studentRecord
	if err := q.Order("created_at, user_id").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]profile.Student, 0, len(recs))
	for _, rec := range recs {
		students = append(students, rec.toStudent())
	}
	return students, nil
}

func (r *ProfileRepository) SetStudentTeacher(ctx context.Context, studentID string, teacherID *string) (profile.Student, error) {
	if !validID(studentID) {
		return profile.Student{}, profile.ErrStudentNotFound
	}
	res := r.conn(ctx).Model(&studentRecord{}).Where("user_id = ?", studentID).Update("teacher_id", teacherID)
	if res.Error != nil {
		return profile.Student{}, errors.Wrap(res.Error, "setting student teacher")
	}
	if res.RowsAffected == 0 {
		return profile.Student{}, profile.ErrStudentNotFound
	}
	return r.GetStudent(ctx, studentID)
}

func (r *ProfileRepository) DeleteStudent(ctx context.Context, userID string) error {
	return r.delete(ctx, &studentRecord{}, userID, profile.ErrStudentNotFound)
}

func (r *ProfileRepository) delete(ctx context.Context, model interface{}, userID string, notFound error) error {
	res := r.conn(ctx).Where("user_id = ?", userID).Delete(model)
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting profile")
	}
	if res.RowsAffected == 0 {
		return notFound
	}
	return nil
}
