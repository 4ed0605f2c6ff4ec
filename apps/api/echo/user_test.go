package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/muziki/apps/api/echo"
	"github.com/trezcool/muziki/core/user"
	"github.com/trezcool/muziki/testutil"
)

func TestUserAPI_login(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t, app)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "missing credentials",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username":"this field is required","password":"this field is required"}`),
		},
		{
			name:     "unknown user",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{"username":"nobody","password":"` + testPwd + `"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{"username":"adam","password":"wrong"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "inactive user",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     []byte(`{"username":"ian","password":"` + testPwd + `"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	for _, uname := range []string{"adam", "ADAM@muziki.test"} {
		t.Run("login as "+uname, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", []byte(`{"username":"`+uname+`","password":"`+testPwd+`"}`))
			app.do(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp echoapi.LoginResponse
			decode(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)

			// the token authenticates later requests
			req, rec = newAuthRequest(http.MethodGet, "/v1/users/"+fx.admin.ID, resp.Token)
			app.do(req, rec)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
	assert.False(t, app.getUser(t, fx.admin.ID).LastLogin.IsZero(), "last login is recorded")
}

func TestUserAPI_tokenRefresh(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t, app)

	req, rec := newRequest(http.MethodPost, "/v1/users/token-refresh")
	app.do(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)

	req, rec = newAuthRequest(http.MethodPost, "/v1/users/token-refresh", fx.studentToken)
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp echoapi.LoginResponse
	decode(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)

	// deactivated since the token was issued
	inactiveToken := getToken(t, fx.inactive)
	req, rec = newAuthRequest(http.MethodPost, "/v1/users/token-refresh", inactiveToken)
	app.do(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})}, rec)
}

func TestUserAPI_create(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t, app)

	newUser := func(uname string, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            "Nina " + uname,
			Username:        uname,
			Email:           uname + "@muziki.test",
			Password:        testPwd,
			PasswordConfirm: testPwd,
			Roles:           roles,
		})
	}

	runHTTPTests(t, app, []httpTest{
		{
			name:     "anonymous",
			method:   http.MethodPost,
			path:     "/v1/users/register",
			body:     newUser("nina", user.RoleStudent),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "not an admin",
			method:   http.MethodPost,
			path:     "/v1/users/register",
			body:     newUser("nina", user.RoleStudent),
			token:    fx.teacherToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "role above own",
			method:   http.MethodPost,
			path:     "/v1/users/register",
			body:     newUser("nina", user.RoleAdminOwner),
			token:    fx.adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"roles":"not enough rights to set these roles"}`),
		},
		{
			name:     "invalid role",
			method:   http.MethodPost,
			path:     "/v1/users/register",
			body:     newUser("nina", "conductor:"),
			token:    fx.adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"roles":"invalid roles"}`),
		},
		{
			name:     "username taken",
			method:   http.MethodPost,
			path:     "/v1/users/register",
			body:     newUser("tina", user.RoleTeacher),
			token:    fx.adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username":"a user with this username already exists"}`),
		},
	})

	t.Run("creates the teacher profile", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", fx.adminToken, newUser("nina", user.RoleTeacher))
		app.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "nina", usr.Username)
		assert.True(t, usr.IsActive)

		req, rec = newAuthRequest(http.MethodGet, "/v1/teachers/"+usr.ID, fx.adminToken)
		app.do(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code)
		req, rec = newAuthRequest(http.MethodGet, "/v1/students/"+usr.ID, fx.adminToken)
		app.do(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student not found"})}, rec)
	})
}

func TestUserAPI_query(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t, app)

	ids := func(users ...user.User) []string {
		out := make([]string, 0, len(users))
		for _, u := range users {
			out = append(out, u.ID)
		}
		return out
	}

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{name: "all by username", query: "?ordering=username", wantIDs: ids(fx.admin, fx.inactive, fx.owner, fx.student, fx.teacher)},
		{name: "search", query: "?search=TINA", wantIDs: ids(fx.teacher)},
		{name: "admins", query: "?role=admin:&ordering=-username", wantIDs: ids(fx.owner, fx.admin)},
		{name: "students", query: "?role=student:&ordering=username", wantIDs: ids(fx.inactive, fx.student)},
		{name: "inactive", query: "?is_active=false", wantIDs: ids(fx.inactive)},
		{name: "no match", query: "?search=mozart", wantIDs: []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users"+tc.query, fx.adminToken)
			app.do(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var users []user.User
			decode(t, rec, &users)
			assert.Equal(t, tc.wantIDs, ids(users...))
		})
	}

	t.Run("admins only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users", fx.teacherToken)
		app.do(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("roles", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/roles", fx.adminToken)
		app.do(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)}, rec)
	})
}

func TestUserAPI_retrieve(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t, app)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "self",
			path:     "/v1/users/" + fx.teacher.ID,
			token:    fx.teacherToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, fx.teacher),
		},
		{
			name:     "admin reads anyone",
			path:     "/v1/users/" + fx.student.ID,
			token:    fx.adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, fx.student),
		},
		{
			name:     "someone else",
			path:     "/v1/users/" + fx.admin.ID,
			token:    fx.teacherToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "unknown",
			path:     "/v1/users/c0ffee",
			token:    fx.adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	})
}

func TestUserAPI_update(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t, app)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "student sets their roles",
			method:   http.MethodPut,
			path:     "/v1/users/" + fx.student.ID,
			body:     []byte(`{"roles":["admin:"]}`),
			token:    fx.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "student changes their email",
			method:   http.MethodPut,
			path:     "/v1/users/" + fx.student.ID,
			body:     []byte(`{"email":"new@muziki.test"}`),
			token:    fx.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "email taken",
			method:   http.MethodPut,
			path:     "/v1/users/" + fx.student.ID,
			body:     []byte(`{"email":"TINA@muziki.test"}`),
			token:    fx.adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email":"a user with this email already exists"}`),
		},
	})

	t.Run("student renames themselves", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+fx.student.ID, fx.studentToken, []byte(`{"name":"  Samuel Student "}`))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Samuel Student", app.getUser(t, fx.student.ID).Name)
	})

	t.Run("promotion syncs the profiles", func(t *testing.T) {
		body := []byte(`{"roles":["teacher:"]}`)
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+fx.student.ID, fx.adminToken, body)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, []string{user.RoleTeacher}, usr.Roles)

		req, rec = newAuthRequest(http.MethodGet, "/v1/teachers/"+fx.student.ID, fx.adminToken)
		app.do(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code)
		req, rec = newAuthRequest(http.MethodGet, "/v1/students/"+fx.student.ID, fx.adminToken)
		app.do(req, rec)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("deactivation", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+fx.teacher.ID, fx.adminToken, []byte(`{"is_active":false}`))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		req, rec = newAuthRequest(http.MethodGet, "/v1/lesson-plans", fx.teacherToken)
		app.do(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})}, rec)
	})
}

func TestUserAPI_destroy(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t, app)
	other := testutil.CreateUser(t, app.usrRepo, "Otto", "otto", "otto@muziki.test", "", []string{user.RoleStudent}, true)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "not an admin",
			method:   http.MethodDelete,
			path:     "/v1/users/" + fx.student.ID,
			token:    fx.studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "self",
			method:   http.MethodDelete,
			path:     "/v1/users/" + fx.admin.ID,
			token:    fx.adminToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "higher role",
			method:   http.MethodDelete,
			path:     "/v1/users/" + fx.owner.ID,
			token:    fx.adminToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "self in bulk",
			method:   http.MethodDelete,
			path:     fmt.Sprintf("/v1/users?id=%s&id=%s", other.ID, fx.admin.ID),
			token:    fx.adminToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "teacher",
			method:   http.MethodDelete,
			path:     "/v1/users/" + fx.teacher.ID,
			token:    fx.adminToken,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "bulk",
			method:   http.MethodDelete,
			path:     fmt.Sprintf("/v1/users?id=%s&id=%s", other.ID, fx.inactive.ID),
			token:    fx.adminToken,
			wantCode: http.StatusNoContent,
		},
	})

	// tokens of deleted users are rejected
	req, rec := newAuthRequest(http.MethodGet, "/v1/lesson-plans", fx.teacherToken)
	app.do(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"})}, rec)

	// the student lost their teacher
	req, rec = newAuthRequest(http.MethodGet, "/v1/students/"+fx.student.ID, fx.studentToken)
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"teacher_id":null`)
}

func TestUserAPI_passwordReset(t *testing.T) {
	app := setup(t)
	fx := createFixtures(t, app)
	const newPwd = "Fr3sh-Cello?"

	// unknown emails get the same answer
	for _, email := range []string{"nobody@muziki.test", "ian@muziki.test"} {
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", []byte(`{"email":"`+email+`"}`))
		app.do(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Empty(t, app.mailSvc.SentMessages())

	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", []byte(`{"email":"not-an-email"}`))
	app.do(req, rec)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset", []byte(`{"email":"Adam@Muziki.test"}`))
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)

	sent := app.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, fx.admin.Email, sent[0].To[0].Address)
	data := sent[0].TemplateData.(map[string]string)

	confirm := func(uid, token, pwd string) int {
		body := marchallObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: pwd, PasswordConfirm: pwd})
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset-confirm", body)
		app.do(req, rec)
		return rec.Code
	}
	assert.Equal(t, http.StatusBadRequest, confirm(data["UID"], "bogus-token", newPwd))
	assert.Equal(t, http.StatusBadRequest, confirm(user.EncodeUID(fx.teacher), data["Token"], newPwd), "token of another user")
	assert.Equal(t, http.StatusOK, confirm(data["UID"], data["Token"], newPwd))
	assert.Equal(t, http.StatusBadRequest, confirm(data["UID"], data["Token"], newPwd), "tokens are single use")

	req, rec = newRequest(http.MethodPost, "/v1/users/login", []byte(`{"username":"adam","password":"`+newPwd+`"}`))
	app.do(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code)
}
