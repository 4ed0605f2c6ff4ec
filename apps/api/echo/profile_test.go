package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/muziki/core/profile"
	"github.com/trezcool/muziki/testutil"
)

func TestProfileAPI_teachers(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t, app)
	other := testutil.CreateTeacher(t, app.db, "Theo Teacher", "theo")

	t.Run("query", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/teachers", fx.adminToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var teachers []profile.Teacher
		decode(t, rec, &teachers)
		ids := make([]string, 0, len(teachers))
		for _, tc := range teachers {
			ids = append(ids, tc.UserID)
			assert.Equal(t, tc.UserID, tc.User.ID, "embeds the user")
		}
		assert.ElementsMatch(t, []string{fx.teacher.ID, other.UserID}, ids)
	})

	runHTTPTests(t, app, []httpTest{
		{
			name:     "query as a teacher",
			path:     "/v1/teachers",
			token:    fx.teacherToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "self",
			path:     "/v1/teachers/" + fx.teacher.ID,
			token:    fx.teacherToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "another teacher",
			path:     "/v1/teachers/" + other.UserID,
			token:    fx.teacherToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "not a teacher",
			path:     "/v1/teachers/" + fx.student.ID,
			token:    fx.adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "teacher not found"}),
		},
	})

	t.Run("students of a teacher", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/teachers/"+fx.teacher.ID+"/students", fx.teacherToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var students []profile.Student
		decode(t, rec, &students)
		require.Len(t, students, 1)
		assert.Equal(t, fx.student.ID, students[0].UserID)

		req, rec = newAuthRequest(http.MethodGet, "/v1/teachers/"+other.UserID+"/students", fx.adminToken)
		app.do(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)
	})
}

func TestProfileAPI_students(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t, app)
	other := testutil.CreateTeacher(t, app.db, "Theo Teacher", "theo")
	unassigned := testutil.CreateStudent(t, app.db, "Una", "una", "")

	query := func(t *testing.T, path string) []string {
		req, rec := newAuthRequest(http.MethodGet, path, fx.adminToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var students []profile.Student
		decode(t, rec, &students)
		ids := make([]string, 0, len(students))
		for _, s := range students {
			ids = append(ids, s.UserID)
		}
		return ids
	}
	assert.ElementsMatch(t, []string{fx.student.ID, unassigned.UserID}, query(t, "/v1/students"))
	assert.Equal(t, []string{fx.student.ID}, query(t, "/v1/students?teacher_id="+fx.teacher.ID))

	runHTTPTests(t, app, []httpTest{
		{
			name:     "query as a teacher",
			path:     "/v1/students",
			token:    fx.teacherToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "self",
			path:     "/v1/students/" + fx.student.ID,
			token:    fx.studentToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "their teacher",
			path:     "/v1/students/" + fx.student.ID,
			token:    fx.teacherToken,
			wantCode: http.StatusOK,
		},
		{
			name:     "another teacher",
			path:     "/v1/students/" + fx.student.ID,
			token:    getToken(t, app.getUser(t, other.UserID)),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "unknown",
			path:     "/v1/students/" + fx.teacher.ID,
			token:    fx.adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "student not found"}),
		},
		{
			name:     "assign as a teacher",
			method:   http.MethodPut,
			path:     "/v1/students/" + unassigned.UserID + "/teacher",
			body:     []byte(`{"teacher_id":"` + fx.teacher.ID + `"}`),
			token:    fx.teacherToken,
			wantCode: http.StatusNotFound, // cannot even see them
		},
		{
			name:     "assign a non teacher",
			method:   http.MethodPut,
			path:     "/v1/students/" + unassigned.UserID + "/teacher",
			body:     []byte(`{"teacher_id":"` + fx.admin.ID + `"}`),
			token:    fx.adminToken,
			wantCode: http.StatusBadRequest,
		},
	})

	t.Run("assign & unassign", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/students/"+unassigned.UserID+"/teacher", fx.adminToken, []byte(`{"teacher_id":"`+other.UserID+`"}`))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var student profile.Student
		decode(t, rec, &student)
		require.NotNil(t, student.TeacherID)
		assert.Equal(t, other.UserID, *student.TeacherID)

		req, rec = newAuthRequest(http.MethodPut, "/v1/students/"+unassigned.UserID+"/teacher", fx.adminToken, []byte(`{"teacher_id":null}`))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		student = profile.Student{}
		decode(t, rec, &student)
		assert.Nil(t, student.TeacherID)
	})
}
