package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core/profile"
	"github.com/trezcool/muziki/core/user"
)

type profileApi struct {
	usrSvc user.Service
	svc    *profile.Service
}

func registerProfileAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc user.Service, svc *profile.Service) {
	api := profileApi{usrSvc: usrSvc, svc: svc}

	tg := g.Group("/teachers", jwt)
	tg.GET("", api.queryTeachers, adminMiddleware())
	tdg := tg.Group("/:id", api.teacherMiddleware)
	tdg.GET("", api.retrieveTeacher)
	tdg.GET("/students", api.queryTeacherStudents)

	sg := g.Group("/students", jwt)
	sg.GET("", api.queryStudents, adminMiddleware())
	sdg := sg.Group("/:id", api.studentMiddleware)
	sdg.GET("", api.retrieveStudent)
	sdg.PUT("/teacher", api.assignTeacher, adminMiddleware())
}

// Handlers

func (api *profileApi) queryTeachers(ctx echo.Context) error {
	teachers, err := api.svc.QueryTeachers(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	return ctx.JSON(http.StatusOK, nonNil(teachers))
}

func (api *profileApi) retrieveTeacher(ctx echo.Context) error {
	teacher, err := contextObject[profile.Teacher](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, teacher)
}

func (api *profileApi) queryTeacherStudents(ctx echo.Context) error {
	teacher, err := contextObject[profile.Teacher](ctx)
	if err != nil {
		return err
	}
	students, err := api.svc.QueryStudents(ctx.Request().Context(), profile.StudentFilter{TeacherID: teacher.UserID})
	if err != nil {
		return errors.Wrap(err, "querying teacher's students")
	}
	return ctx.JSON(http.StatusOK, nonNil(students))
}

func (api *profileApi) queryStudents(ctx echo.Context) error {
	var filter profile.StudentFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []profile.Student{})
	}
	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, nonNil(students))
}

func (api *profileApi) retrieveStudent(ctx echo.Context) error {
	student, err := contextObject[profile.Student](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *profileApi) assignTeacher(ctx echo.Context) error {
	student, err := contextObject[profile.Student](ctx)
	if err != nil {
		return err
	}
	var data profile.AssignTeacher
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignTeacher")
	}
	student, err = api.svc.AssignTeacher(ctx.Request().Context(), student.UserID, data)
	if err != nil {
		return errors.Wrap(err, "assigning teacher")
	}
	return ctx.JSON(http.StatusOK, student)
}

// Middlewares

// teacherMiddleware loads the Teacher for the teacher themselves or an admin.
func (api *profileApi) teacherMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxUsr, err := getContextUser(ctx, api.usrSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		if ctx.Param("id") != ctxUsr.ID && !ctxUsr.IsAdmin() {
			return errHttpNotFound
		}
		teacher, err := api.svc.GetTeacher(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding teacher")
		}
		ctx.Set(objectKey, teacher)
		return next(ctx)
	}
}

// studentMiddleware loads the Student for the student themselves, their teacher or an admin.
func (api *profileApi) studentMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxUsr, err := getContextUser(ctx, api.usrSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		student, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding student")
		}
		if student.UserID != ctxUsr.ID && !student.IsStudentOf(ctxUsr.ID) && !ctxUsr.IsAdmin() {
			return errHttpNotFound
		}
		ctx.Set(objectKey, student)
		return next(ctx)
	}
}
