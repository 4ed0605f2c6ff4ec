package echoapi_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/muziki/core/lesson"
	"github.com/trezcool/muziki/storage/database/gormrepos"
	"github.com/trezcool/muziki/testutil"
)

func planIDs(plans []lesson.LessonPlan) []string {
	ids := make([]string, 0, len(plans))
	for _, lp := range plans {
		ids = append(ids, lp.ID)
	}
	return ids
}

func TestLessonAPI_query(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t, app)
	other := testutil.CreateTeacher(t, app.db, "Theo Teacher", "theo")

	scales := testutil.CreateLessonPlan(t, app.db, fx.teacher.ID, "Scales", "piano")
	chords := testutil.CreateLessonPlan(t, app.db, fx.teacher.ID, "Chords", "guitar")
	rhythm := testutil.CreateLessonPlan(t, app.db, other.UserID, "Rhythm", "drums")
	orphan := testutil.CreateUser(t, app.usrRepo, "Olga", "olga", "", "", []string{"student:"}, true)

	tests := []struct {
		name    string
		token   string
		query   string
		wantIDs []string
	}{
		{name: "admin sees all", token: fx.adminToken, query: "?ordering=title", wantIDs: []string{chords.ID, rhythm.ID, scales.ID}},
		{name: "admin filters by teacher", token: fx.adminToken, query: "?teacher_id=" + other.UserID, wantIDs: []string{rhythm.ID}},
		{name: "instrument", token: fx.adminToken, query: "?instrument=PIANO", wantIDs: []string{scales.ID}},
		{name: "search", token: fx.adminToken, query: "?search=hyth", wantIDs: []string{rhythm.ID}},
		{name: "teacher sees their own", token: fx.teacherToken, query: "?ordering=-title", wantIDs: []string{scales.ID, chords.ID}},
		{name: "teacher cannot widen", token: fx.teacherToken, query: "?teacher_id=" + other.UserID, wantIDs: []string{}},
		{name: "student sees their teacher's", token: fx.studentToken, query: "?ordering=title", wantIDs: []string{chords.ID, scales.ID}},
		{name: "student without profile", token: getToken(t, orphan), wantIDs: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/lesson-plans"+tc.query, tc.token)
			app.do(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var plans []lesson.LessonPlan
			decode(t, rec, &plans)
			assert.Equal(t, tc.wantIDs, planIDs(plans))
		})
	}
}

func TestLessonAPI_create(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t, app)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "student",
			method:   http.MethodPost,
			path:     "/v1/lesson-plans",
			body:     []byte(`{"title":"Scales","instrument":"piano","content":"C major"}`),
			token:    fx.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/v1/lesson-plans",
			body:     []byte(`{}`),
			token:    fx.teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"title":"this field is required","instrument":"this field is required","topic":"this field is required","level":"this field is required"}`),
		},
		{
			name:     "for another teacher",
			method:   http.MethodPost,
			path:     "/v1/lesson-plans",
			body:     []byte(`{"teacher_id":"` + fx.admin.ID + `","title":"Scales","instrument":"piano","content":"C major"}`),
			token:    fx.teacherToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "admin without teacher",
			method:   http.MethodPost,
			path:     "/v1/lesson-plans",
			body:     []byte(`{"title":"Scales","instrument":"piano","content":"C major"}`),
			token:    fx.adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"teacher_id":"this field is required"}`),
		},
		{
			name:     "admin for a non teacher",
			method:   http.MethodPost,
			path:     "/v1/lesson-plans",
			body:     []byte(`{"teacher_id":"` + fx.student.ID + `","title":"Scales","instrument":"piano","content":"C major"}`),
			token:    fx.adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"teacher_id":"teacher not found"}`),
		},
	})

	t.Run("with content", func(t *testing.T) {
		body := []byte(`{"title":" Scales ","instrument":"Piano","content":"C major, two octaves"}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/lesson-plans", fx.teacherToken, body)
		app.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var lp lesson.LessonPlan
		decode(t, rec, &lp)
		assert.Equal(t, fx.teacher.ID, lp.TeacherID)
		assert.Equal(t, "Scales", lp.Title)
		assert.Equal(t, "piano", lp.Instrument)
		assert.Equal(t, "C major, two octaves", lp.Content)
		assert.Empty(t, app.gen.prompts, "nothing generated")
	})

	t.Run("generated content", func(t *testing.T) {
		app.gen.reply = "Warm up, then play the C major scale hands together."
		body := []byte(`{"teacher_id":"` + fx.teacher.ID + `","title":"Scales","instrument":"piano","topic":"major scales","level":"beginner"}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/lesson-plans", fx.adminToken, body)
		app.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var lp lesson.LessonPlan
		decode(t, rec, &lp)
		assert.Equal(t, app.gen.reply, lp.Content)
		assert.Equal(t, "Create a beginner level lesson plan for piano focusing on major scales.", app.gen.lastPrompt())
	})

	t.Run("generation failure", func(t *testing.T) {
		app.gen.err = errors.New("model overloaded")
		defer func() { app.gen.err = nil }()

		body := []byte(`{"title":"Scales","instrument":"piano","topic":"major scales","level":"beginner"}`)
		req, rec := newAuthRequest(http.MethodPost, "/v1/lesson-plans", fx.teacherToken, body)
		app.do(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadGateway, wantData: marchallObj(t, httpErr{Error: "text generation failed"})}, rec)
	})
}

func TestLessonAPI_detail(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t, app)
	other := testutil.CreateTeacher(t, app.db, "Theo Teacher", "theo")
	otherToken := getToken(t, app.getUser(t, other.UserID))

	lp := testutil.CreateLessonPlan(t, app.db, fx.teacher.ID, "Scales", "piano")
	lp, err := gormrepos.NewLessonRepository(app.db).GetLessonPlan(context.Background(), lp.ID)
	require.NoError(t, err)
	path := "/v1/lesson-plans/" + lp.ID

	runHTTPTests(t, app, []httpTest{
		{name: "owner", path: path, token: fx.teacherToken, wantCode: http.StatusOK, wantData: marchallObj(t, lp)},
		{name: "their student", path: path, token: fx.studentToken, wantCode: http.StatusOK, wantData: marchallObj(t, lp)},
		{name: "admin", path: path, token: fx.adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, lp)},
		{name: "another teacher", path: path, token: otherToken, wantCode: http.StatusNotFound},
		{
			name:     "unknown",
			path:     "/v1/lesson-plans/c0ffee",
			token:    fx.adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "lesson plan not found"}),
		},
		{
			name:     "student updates",
			method:   http.MethodPut,
			path:     path,
			body:     []byte(`{"title":"Mine now"}`),
			token:    fx.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "blank title",
			method:   http.MethodPut,
			path:     path,
			body:     []byte(`{"title":"  "}`),
			token:    fx.teacherToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "student deletes",
			method:   http.MethodDelete,
			path:     path,
			token:    fx.studentToken,
			wantCode: http.StatusForbidden,
		},
	})

	t.Run("update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, path, fx.teacherToken, []byte(`{"title":"Scales & modes","content":"Dorian"}`))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got lesson.LessonPlan
		decode(t, rec, &got)
		assert.Equal(t, "Scales & modes", got.Title)
		assert.Equal(t, "piano", got.Instrument, "unchanged")
		assert.Equal(t, "Dorian", got.Content)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, path, fx.adminToken)
		app.do(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, path, fx.adminToken)
		app.do(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestLessonAPI_quizzes(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t, app)
	other := testutil.CreateTeacher(t, app.db, "Theo Teacher", "theo")
	otherToken := getToken(t, app.getUser(t, other.UserID))

	lp := testutil.CreateLessonPlan(t, app.db, fx.teacher.ID, "Scales", "piano")
	quizzesPath := "/v1/lesson-plans/" + lp.ID + "/quizzes"

	createQuiz := func(t *testing.T, body string) lesson.Quiz {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, quizzesPath, fx.teacherToken, []byte(body))
		app.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var quiz lesson.Quiz
		decode(t, rec, &quiz)
		return quiz
	}

	manual := createQuiz(t, `{"title":"Keys","questions":[{"q":"How many sharps in G major?","a":"1"}]}`)
	assert.Equal(t, lp.ID, manual.LessonPlanID)
	assert.JSONEq(t, `[{"q":"How many sharps in G major?","a":"1"}]`, string(manual.Questions))
	assert.Empty(t, app.gen.prompts)

	app.gen.reply = "1. What is a scale?"
	generated := createQuiz(t, `{"title":"Scales quiz"}`)
	assert.JSONEq(t, `{"text":"1. What is a scale?"}`, string(generated.Questions))
	assert.Equal(t, "Generate 5 multiple-choice questions about Scales quiz in music theory.", app.gen.lastPrompt())

	createQuiz(t, `{"title":"Modes quiz","topic":"modes","num_questions":3}`)
	assert.Equal(t, "Generate 3 multiple-choice questions about modes in music theory.", app.gen.lastPrompt())

	runHTTPTests(t, app, []httpTest{
		{
			name:     "student creates",
			method:   http.MethodPost,
			path:     quizzesPath,
			body:     []byte(`{"title":"Cheat sheet"}`),
			token:    fx.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "too many questions",
			method:   http.MethodPost,
			path:     quizzesPath,
			body:     []byte(`{"title":"Marathon","num_questions":500}`),
			token:    fx.teacherToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "student reads",
			path:     "/v1/quizzes/" + manual.ID,
			token:    fx.studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, manual),
		},
		{
			name:     "another teacher reads",
			path:     "/v1/quizzes/" + manual.ID,
			token:    otherToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "unknown quiz",
			path:     "/v1/quizzes/c0ffee",
			token:    fx.adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "quiz not found"}),
		},
		{
			name:     "student updates",
			method:   http.MethodPut,
			path:     "/v1/quizzes/" + manual.ID,
			body:     []byte(`{"title":"Easy"}`),
			token:    fx.studentToken,
			wantCode: http.StatusForbidden,
		},
	})

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, quizzesPath, fx.studentToken)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var quizzes []lesson.Quiz
		decode(t, rec, &quizzes)
		assert.Len(t, quizzes, 3)
	})

	t.Run("update & delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/quizzes/"+manual.ID, fx.teacherToken, []byte(`{"title":"Key signatures"}`))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var quiz lesson.Quiz
		decode(t, rec, &quiz)
		assert.Equal(t, "Key signatures", quiz.Title)
		assert.JSONEq(t, string(manual.Questions), string(quiz.Questions), "questions kept")

		req, rec = newAuthRequest(http.MethodDelete, "/v1/quizzes/"+manual.ID, fx.adminToken)
		app.do(req, rec)
		require.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/v1/quizzes/"+manual.ID, fx.adminToken)
		app.do(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
