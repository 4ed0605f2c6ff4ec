package gormrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/muziki/core/assignment"
	"github.com/trezcool/muziki/storage/database/gormrepos"
	"github.com/trezcool/muziki/testutil"
)

func TestAssignmentRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	repo := gormrepos.NewAssignmentRepository(db)

	clara := testutil.CreateTeacher(t, db, "Clara", "clara")
	nadia := testutil.CreateTeacher(t, db, "Nadia", "nadia")
	johannes := testutil.CreateStudent(t, db, "Johannes", "johannes", clara.UserID)
	aaron := testutil.CreateStudent(t, db, "Aaron", "aaron", nadia.UserID)
	lp := testutil.CreateLessonPlan(t, db, clara.UserID, "Intervals", "piano")

	now := time.Now().UTC().Truncate(time.Microsecond)
	submit := func(studentID string, at time.Time) assignment.Assignment {
		a, err := repo.CreateAssignment(ctx, assignment.Assignment{
			StudentID:      studentID,
			LessonPlanID:   lp.ID,
			SubmissionFile: "assignments/take.wav",
			SubmittedAt:    at,
		})
		require.NoError(t, err)
		return a
	}
	first := submit(johannes.UserID, now.Add(-time.Hour))
	second := submit(johannes.UserID, now)
	other := submit(aaron.UserID, now.Add(-2*time.Hour))

	got, err := repo.GetAssignment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	assert.False(t, got.Graded())

	got.Feedback = "Nice phrasing, watch the tempo."
	got.Grade = "A-"
	reviewed, err := repo.UpdateAssignment(ctx, got)
	require.NoError(t, err)
	assert.True(t, reviewed.Graded())
	assert.Equal(t, "A-", reviewed.Grade)

	graded, ungraded := true, false
	tests := []struct {
		name      string
		filter    assignment.Filter
		teacherID string
		want      []string
	}{
		{name: "all", want: []string{second.ID, first.ID, other.ID}},
		{name: "student", filter: assignment.Filter{StudentID: aaron.UserID}, want: []string{other.ID}},
		{name: "lesson plan", filter: assignment.Filter{LessonPlanID: lp.ID, Graded: &graded}, want: []string{first.ID}},
		{name: "ungraded", filter: assignment.Filter{Graded: &ungraded}, want: []string{second.ID, other.ID}},
		{name: "teacher's students", teacherID: clara.UserID, want: []string{second.ID, first.ID}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			items, err := repo.QueryAssignments(ctx, tc.filter, tc.teacherID, nil)
			require.NoError(t, err)
			ids := make([]string, 0, len(items))
			for _, a := range items {
				ids = append(ids, a.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}

	require.NoError(t, repo.DeleteAssignment(ctx, second.ID))
	assert.Equal(t, assignment.ErrNotFound, repo.DeleteAssignment(ctx, second.ID))
	_, err = repo.GetAssignment(ctx, second.ID)
	assert.Equal(t, assignment.ErrNotFound, err)
}
