// Package testutil sets up databases & fixtures for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/trezcool/muziki/core/fee"
	"github.com/trezcool/muziki/core/lesson"
	"github.com/trezcool/muziki/core/profile"
	"github.com/trezcool/muziki/core/user"
	"github.com/trezcool/muziki/storage/database/gormrepos"
)

// PrepareDB returns a migrated SQLite database, private to the test.
func PrepareDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "muziki.db") + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	})
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = gormrepos.AutoMigrate(db); err != nil {
		t.Fatalf("PrepareDB() failed to migrate: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Microsecond)
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateTeacher creates a User with the teacher role, and their profile.
func CreateTeacher(t *testing.T, db *gorm.DB, name, uname string) profile.Teacher {
	t.Helper()

	usr := CreateUser(t, gormrepos.NewUserRepository(db), name, uname, uname+"@muziki.test", "", []string{user.RoleTeacher}, true)
	teacher, err := gormrepos.NewProfileRepository(db).CreateTeacher(context.Background(), profile.Teacher{UserID: usr.ID, CreatedAt: usr.CreatedAt})
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return teacher
}

// CreateStudent creates a User with the student role, and their profile assigned to teacherID (if not empty).
func CreateStudent(t *testing.T, db *gorm.DB, name, uname, teacherID string) profile.Student {
	t.Helper()

	usr := CreateUser(t, gormrepos.NewUserRepository(db), name, uname, uname+"@muziki.test", "", []string{user.RoleStudent}, true)
	s := profile.Student{UserID: usr.ID, CreatedAt: usr.CreatedAt}
	if teacherID != "" {
		s.TeacherID = &teacherID
	}
	student, err := gormrepos.NewProfileRepository(db).CreateStudent(context.Background(), s)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return student
}

func CreateLessonPlan(t *testing.T, db *gorm.DB, teacherID, title, instrument string) lesson.LessonPlan {
	t.Helper()

	lp, err := gormrepos.NewLessonRepository(db).CreateLessonPlan(context.Background(), lesson.LessonPlan{
		TeacherID:  teacherID,
		Title:      title,
		Instrument: instrument,
		Content:    "Scales, then arpeggios.",
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		t.Fatalf("CreateLessonPlan() failed: %v", err)
	}
	return lp
}

func CreateFee(t *testing.T, db *gorm.DB, studentID, amount, dueDate string, paid bool) fee.Fee {
	t.Helper()

	due, err := fee.ParseDate(dueDate)
	if err != nil {
		t.Fatalf("CreateFee() failed: %v", err)
	}
	f, err := gormrepos.NewFeeRepository(db).CreateFee(context.Background(), fee.Fee{
		StudentID: studentID,
		Amount:    decimal.RequireFromString(amount),
		DueDate:   due,
		Paid:      paid,
	})
	if err != nil {
		t.Fatalf("CreateFee() failed: %v", err)
	}
	return f
}
