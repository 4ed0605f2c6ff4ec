package echoapi

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/lesson"
	"github.com/trezcool/muziki/core/profile"
	"github.com/trezcool/muziki/core/user"
)

// visibleTeacherIDs returns the teachers whose lesson plans usr may read: their own as a teacher,
// their teacher's as a student. nil means all of them (admins).
func visibleTeacherIDs(ctx context.Context, usr user.User, profiles *profile.Service) ([]string, error) {
	if usr.IsAdmin() {
		return nil, nil
	}
	ids := make([]string, 0, 2)
	if usr.IsTeacher() {
		ids = append(ids, usr.ID)
	}
	if usr.IsStudent() {
		student, err := profiles.GetStudent(ctx, usr.ID)
		switch {
		case err == nil:
			if student.TeacherID != nil {
				ids = append(ids, *student.TeacherID)
			}
		case !core.IsNotFound(err):
			return nil, errors.Wrap(err, "finding student")
		}
	}
	return ids, nil
}

func canReadPlan(teacherIDs []string, lp lesson.LessonPlan) bool {
	if teacherIDs == nil {
		return true
	}
	for _, id := range teacherIDs {
		if id == lp.TeacherID {
			return true
		}
	}
	return false
}

func canWritePlan(usr user.User, lp lesson.LessonPlan) bool {
	return usr.IsAdmin() || lp.TeacherID == usr.ID
}
