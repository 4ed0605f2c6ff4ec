// Package profile manages the teacher & student profiles attached to users with the matching roles.
package profile

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/user"
)

var (
	ErrTeacherNotFound = core.NewNotFoundError("teacher")
	ErrStudentNotFound = core.NewNotFoundError("student")
)

type Teacher struct {
	UserID    string    `json:"id"`
	User      user.User `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

type Student struct {
	UserID    string    `json:"id"`
	User      user.User `json:"user"`
	TeacherID *string   `json:"teacher_id"` // nil when unassigned
	CreatedAt time.Time `json:"created_at"`
}

type StudentFilter struct {
	TeacherID string `query:"teacher_id"`
}

type AssignTeacher struct {
	TeacherID *string `json:"teacher_id" validate:"omitempty,uuid"`
}

type (
	Repository interface {
		CreateTeacher(ctx context.Context, t Teacher) (Teacher, error)
		GetTeacher(ctx context.Context, userID string) (Teacher, error)
		QueryTeachers(ctx context.Context) ([]Teacher, error)
		DeleteTeacher(ctx context.Context, userID string) error

		CreateStudent(ctx context.Context, s Student) (Student, error)
		GetStudent(ctx context.Context, userID string) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
		SetStudentTeacher(ctx context.Context, studentID string, teacherID *string) (Student, error)
		DeleteStudent(ctx context.Context, userID string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Sync creates the profiles usr's roles call for and removes those they no longer do.
func (svc *Service) Sync(ctx context.Context, usr user.User) error {
	if err := svc.syncTeacher(ctx, usr); err != nil {
		return errors.Wrap(err, "syncing teacher profile")
	}
	return errors.Wrap(svc.syncStudent(ctx, usr), "syncing student profile")
}

func (svc *Service) syncTeacher(ctx context.Context, usr user.User) error {
	_, err := svc.repo.GetTeacher(ctx, usr.ID)
	if err != nil && errors.Cause(err) != ErrTeacherNotFound {
		return err
	}
	exists := err == nil

	switch {
	case usr.IsTeacher() && !exists:
		_, err = svc.repo.CreateTeacher(ctx, Teacher{UserID: usr.ID, User: usr, CreatedAt: time.Now().UTC().Truncate(time.Microsecond)})
		return err
	case !usr.IsTeacher() && exists:
		return svc.repo.DeleteTeacher(ctx, usr.ID)
	}
	return nil
}

func (svc *Service) syncStudent(ctx context.Context, usr user.User) error {
	_, err := svc.repo.GetStudent(ctx, usr.ID)
	if err != nil && errors.Cause(err) != ErrStudentNotFound {
		return err
	}
	exists := err == nil

	switch {
	case usr.IsStudent() && !exists:
		_, err = svc.repo.CreateStudent(ctx, Student{UserID: usr.ID, User: usr, CreatedAt: time.Now().UTC().Truncate(time.Microsecond)})
		return err
	case !usr.IsStudent() && exists:
		return svc.repo.DeleteStudent(ctx, usr.ID)
	}
	return nil
}

func (svc *Service) GetTeacher(ctx context.Context, id string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, id)
}

func (svc *Service) QueryTeachers(ctx context.Context) ([]Teacher, error) {
	return svc.repo.QueryTeachers(ctx)
}

func (svc *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error) {
	filter.TeacherID = core.CleanString(filter.TeacherID)
	return svc.repo.QueryStudents(ctx, filter)
}

// AssignTeacher sets (or unsets, when data.TeacherID is nil) the Student's teacher.
func (svc *Service) AssignTeacher(ctx context.Context, studentID string, data AssignTeacher) (Student, error) {
	if err := core.Validate.Struct(data); err != nil {
		return Student{}, err
	}
	if data.TeacherID != nil {
		if _, err := svc.repo.GetTeacher(ctx, *data.TeacherID); err != nil {
			if errors.Cause(err) == ErrTeacherNotFound {
				return Student{}, core.NewFieldError("teacher_id", "teacher not found")
			}
			return Student{}, errors.Wrap(err, "finding teacher")
		}
	}
	return svc.repo.SetStudentTeacher(ctx, studentID, data.TeacherID)
}

// IsStudentOf tells whether the Student is assigned to the Teacher.
func (s Student) IsStudentOf(teacherID string) bool {
	return s.TeacherID != nil && *s.TeacherID == teacherID
}
