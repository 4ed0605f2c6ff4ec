package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/lesson"
	"github.com/trezcool/muziki/core/profile"
	"github.com/trezcool/muziki/core/user"
)

const planKey = "lessonPlan"

type lessonApi struct {
	usrSvc     user.Service
	profileSvc *profile.Service
	svc        *lesson.Service
}

func registerLessonAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc user.Service, profileSvc *profile.Service, svc *lesson.Service) {
	api := lessonApi{usrSvc: usrSvc, profileSvc: profileSvc, svc: svc}

	lg := g.Group("/lesson-plans", jwt)
	lg.GET("", api.query)
	lg.POST("", api.create, teacherOrAdminMiddleware())

	dg := lg.Group("/:id", api.planMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, api.planWriterMiddleware)
	dg.DELETE("", api.destroy, api.planWriterMiddleware)
	dg.GET("/quizzes", api.queryQuizzes)
	dg.POST("/quizzes", api.createQuiz, api.planWriterMiddleware)

	qg := g.Group("/quizzes/:id", jwt, api.quizMiddleware)
	qg.GET("", api.retrieveQuiz)
	qg.PUT("", api.updateQuiz, api.planWriterMiddleware)
	qg.DELETE("", api.destroyQuiz, api.planWriterMiddleware)
}

// Handlers

func (api *lessonApi) query(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	teacherIDs, err := visibleTeacherIDs(rctx, ctxUsr, api.profileSvc)
	if err != nil {
		return err
	}

	filter := new(lesson.LessonPlanFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []lesson.LessonPlan{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	plans, err := api.svc.QueryLessonPlans(rctx, filter, teacherIDs, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying lesson plans")
	}
	return ctx.JSON(http.StatusOK, nonNil(plans))
}

func (api *lessonApi) create(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data lesson.NewLessonPlan
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLessonPlan")
	}
	data.TeacherID = core.CleanString(data.TeacherID)

	// only admins may create plans for other teachers
	switch {
	case data.TeacherID == "":
		if !ctxUsr.IsTeacher() {
			return core.NewFieldError("teacher_id", "this field is required")
		}
		data.TeacherID = ctxUsr.ID
	case data.TeacherID != ctxUsr.ID && !ctxUsr.IsAdmin():
		return errHttpForbidden
	}
	if _, err = api.profileSvc.GetTeacher(rctx, data.TeacherID); err != nil {
		if errors.Cause(err) == profile.ErrTeacherNotFound {
			return core.NewFieldError("teacher_id", "teacher not found")
		}
		return errors.Wrap(err, "finding teacher")
	}

	lp, err := api.svc.CreateLessonPlan(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating lesson plan")
	}
	return ctx.JSON(http.StatusCreated, lp)
}

func (api *lessonApi) retrieve(ctx echo.Context) error {
	lp, err := contextObject[lesson.LessonPlan](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lp)
}

func (api *lessonApi) update(ctx echo.Context) error {
	lp, err := contextObject[lesson.LessonPlan](ctx)
	if err != nil {
		return err
	}
	var data lesson.UpdateLessonPlan
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLessonPlan")
	}
	lp, err = api.svc.UpdateLessonPlan(ctx.Request().Context(), lp, data)
	if err != nil {
		return errors.Wrap(err, "updating lesson plan")
	}
	return ctx.JSON(http.StatusOK, lp)
}

func (api *lessonApi) destroy(ctx echo.Context) error {
	lp, err := contextObject[lesson.LessonPlan](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteLessonPlan(ctx.Request().Context(), lp.ID); err != nil {
		return errors.Wrap(err, "deleting lesson plan")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *lessonApi) queryQuizzes(ctx echo.Context) error {
	lp, err := contextObject[lesson.LessonPlan](ctx)
	if err != nil {
		return err
	}
	quizzes, err := api.svc.QueryQuizzes(ctx.Request().Context(), lp.ID)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}
	return ctx.JSON(http.StatusOK, nonNil(quizzes))
}

func (api *lessonApi) createQuiz(ctx echo.Context) error {
	lp, err := contextObject[lesson.LessonPlan](ctx)
	if err != nil {
		return err
	}
	var data lesson.NewQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	quiz, err := api.svc.CreateQuiz(ctx.Request().Context(), lp, data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, quiz)
}

func (api *lessonApi) retrieveQuiz(ctx echo.Context) error {
	quiz, err := contextObject[lesson.Quiz](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, quiz)
}

func (api *lessonApi) updateQuiz(ctx echo.Context) error {
	quiz, err := contextObject[lesson.Quiz](ctx)
	if err != nil {
		return err
	}
	var data lesson.UpdateQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	quiz, err = api.svc.UpdateQuiz(ctx.Request().Context(), quiz, data)
	if err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, quiz)
}

func (api *lessonApi) destroyQuiz(ctx echo.Context) error {
	quiz, err := contextObject[lesson.Quiz](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteQuiz(ctx.Request().Context(), quiz.ID); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Middlewares

// planMiddleware loads the LessonPlan :id if the context User may read it.
func (api *lessonApi) planMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		lp, err := api.svc.GetLessonPlan(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding lesson plan")
		}
		if err = api.checkReadable(ctx, lp); err != nil {
			return err
		}
		ctx.Set(objectKey, lp)
		return next(ctx)
	}
}

// quizMiddleware loads the Quiz :id if the context User may read its LessonPlan.
func (api *lessonApi) quizMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		rctx := ctx.Request().Context()
		quiz, err := api.svc.GetQuiz(rctx, ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding quiz")
		}
		lp, err := api.svc.GetLessonPlan(rctx, quiz.LessonPlanID)
		if err != nil {
			return errors.Wrap(err, "finding lesson plan")
		}
		if err = api.checkReadable(ctx, lp); err != nil {
			return err
		}
		ctx.Set(objectKey, quiz)
		return next(ctx)
	}
}

func (api *lessonApi) checkReadable(ctx echo.Context, lp lesson.LessonPlan) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	teacherIDs, err := visibleTeacherIDs(ctx.Request().Context(), ctxUsr, api.profileSvc)
	if err != nil {
		return err
	}
	if !canReadPlan(teacherIDs, lp) {
		return errHttpNotFound
	}
	ctx.Set(planKey, lp)
	return nil
}

// planWriterMiddleware only lets the owning teacher or an admin through.
func (api *lessonApi) planWriterMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		lp, ok := ctx.Get(planKey).(lesson.LessonPlan)
		if !ok {
			return errors.Wrap(errObjNotFoundInCtx, "retrieving lesson plan from context")
		}
		ctxUsr, err := getContextUser(ctx, api.usrSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		if !canWritePlan(ctxUsr, lp) {
			return errHttpForbidden
		}
		return next(ctx)
	}
}
