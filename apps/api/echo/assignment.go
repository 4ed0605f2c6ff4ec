package echoapi

import (
	"mime"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gbytes "github.com/labstack/gommon/bytes"
	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/assignment"
	"github.com/trezcool/muziki/core/lesson"
	"github.com/trezcool/muziki/core/profile"
	"github.com/trezcool/muziki/core/user"
)

type assignmentApi struct {
	usrSvc     user.Service
	profileSvc *profile.Service
	lessonSvc  *lesson.Service
	svc        *assignment.Service
}

func registerAssignmentAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	maxUploadSize int64,
	usrSvc user.Service,
	profileSvc *profile.Service,
	lessonSvc *lesson.Service,
	svc *assignment.Service,
) {
	api := assignmentApi{usrSvc: usrSvc, profileSvc: profileSvc, lessonSvc: lessonSvc, svc: svc}

	ag := g.Group("/assignments", jwt)
	ag.GET("", api.query)
	ag.POST("", api.submit, studentMiddleware(), uploadLimit(maxUploadSize))

	dg := ag.Group("/:id", api.assignmentMiddleware)
	dg.GET("", api.retrieve)
	dg.GET("/file", api.file)
	dg.POST("/analysis", api.analyze)
	dg.PUT("/review", api.review, api.reviewerMiddleware)
	dg.DELETE("", api.destroy, adminMiddleware())
}

func uploadLimit(maxSize int64) echo.MiddlewareFunc {
	if maxSize <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return middleware.BodyLimit(gbytes.Format(maxSize))
}

// Handlers

func (api *assignmentApi) submit(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data assignment.NewAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	data.StudentID = ctxUsr.ID // students submit their own work

	// the lesson plan must be one of their teacher's
	if lpID := core.CleanString(data.LessonPlanID); lpID != "" {
		lp, err := api.lessonSvc.GetLessonPlan(rctx, lpID)
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrap(err, "finding lesson plan")
		}
		teacherIDs, tErr := visibleTeacherIDs(rctx, ctxUsr, api.profileSvc)
		if tErr != nil {
			return tErr
		}
		if err != nil || !canReadPlan(teacherIDs, lp) {
			return core.NewFieldError("lesson_plan_id", "lesson plan not found")
		}
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		if errors.Cause(err) == http.ErrMissingFile {
			return core.NewFieldError("file", "this field is required")
		}
		return errors.Wrap(err, "reading uploaded file")
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	a, err := api.svc.Submit(rctx, data, fh.Filename, file)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var filter assignment.Filter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []assignment.Assignment{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	// admins see all, teachers their students' & students their own
	var teacherID string
	switch {
	case ctxUsr.IsAdmin():
	case ctxUsr.IsTeacher():
		teacherID = ctxUsr.ID
	case ctxUsr.IsStudent():
		filter.StudentID = ctxUsr.ID
	default:
		return errHttpForbidden
	}

	items, err := api.svc.Query(ctx.Request().Context(), filter, teacherID, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, nonNil(items))
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	a, err := contextObject[assignment.Assignment](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) file(ctx echo.Context) error {
	a, err := contextObject[assignment.Assignment](ctx)
	if err != nil {
		return err
	}
	rc, err := api.svc.OpenFile(ctx.Request().Context(), a)
	if err != nil {
		return errors.Wrap(err, "opening submission file")
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(a.SubmissionFile))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return ctx.Stream(http.StatusOK, contentType, rc)
}

func (api *assignmentApi) analyze(ctx echo.Context) error {
	a, err := contextObject[assignment.Assignment](ctx)
	if err != nil {
		return err
	}
	res, err := api.svc.Analyze(ctx.Request().Context(), a)
	if err != nil {
		return errors.Wrap(err, "analyzing submission")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *assignmentApi) review(ctx echo.Context) error {
	a, err := contextObject[assignment.Assignment](ctx)
	if err != nil {
		return err
	}
	var data assignment.Review
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}
	a, err = api.svc.Review(ctx.Request().Context(), a, data)
	if err != nil {
		return errors.Wrap(err, "reviewing assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	a, err := contextObject[assignment.Assignment](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), a); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Middlewares

// assignmentMiddleware loads the Assignment :id for its student, their teacher or an admin.
func (api *assignmentApi) assignmentMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		rctx := ctx.Request().Context()
		ctxUsr, err := getContextUser(ctx, api.usrSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		a, err := api.svc.Get(rctx, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding assignment")
		}

		if !ctxUsr.IsAdmin() && a.StudentID != ctxUsr.ID {
			isTeacher, err := api.isStudentsTeacher(ctx, a.StudentID, ctxUsr)
			if err != nil {
				return err
			}
			if !isTeacher {
				return errHttpNotFound
			}
		}
		ctx.Set(objectKey, a)
		return next(ctx)
	}
}

// reviewerMiddleware only lets the student's teacher or an admin through.
func (api *assignmentApi) reviewerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		a, err := contextObject[assignment.Assignment](ctx)
		if err != nil {
			return err
		}
		ctxUsr, err := getContextUser(ctx, api.usrSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		if ctxUsr.IsAdmin() {
			return next(ctx)
		}
		isTeacher, err := api.isStudentsTeacher(ctx, a.StudentID, ctxUsr)
		if err != nil {
			return err
		}
		if !isTeacher {
			return errHttpForbidden
		}
		return next(ctx)
	}
}

func (api *assignmentApi) isStudentsTeacher(ctx echo.Context, studentID string, usr user.User) (bool, error) {
	if !usr.IsTeacher() {
		return false, nil
	}
	student, err := api.profileSvc.GetStudent(ctx.Request().Context(), studentID)
	if err != nil {
		if core.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "finding student")
	}
	return student.IsStudentOf(usr.ID), nil
}
