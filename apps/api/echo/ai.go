package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/ai"
	"github.com/trezcool/muziki/core/assignment"
	"github.com/trezcool/muziki/core/user"
)

type aiApi struct {
	usrSvc   user.Service
	svc      *ai.Service
	analyzer assignment.Analyzer
}

func registerAIAPI(
	g *echo.Group,
	jwt, rateLimit echo.MiddlewareFunc,
	maxUploadSize int64,
	usrSvc user.Service,
	svc *ai.Service,
	analyzer assignment.Analyzer,
) {
	api := aiApi{usrSvc: usrSvc, svc: svc, analyzer: analyzer}

	ag := g.Group("/ai", jwt, rateLimit)
	ag.POST("/lesson-plans", api.generateLessonPlan, teacherOrAdminMiddleware())
	ag.POST("/quizzes", api.generateQuiz, teacherOrAdminMiddleware())
	ag.POST("/performances", api.analyzePerformance, uploadLimit(maxUploadSize))
}

type (
	LessonPlanResponse struct {
		Content string `json:"content"`
	}

	QuizResponse struct {
		Questions string `json:"questions"`
	}
)

// Handlers

func (api *aiApi) generateLessonPlan(ctx echo.Context) error {
	var data ai.LessonPlanRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonPlanRequest")
	}
	content, err := api.svc.GenerateLessonPlanContent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "generating lesson plan")
	}
	return ctx.JSON(http.StatusOK, LessonPlanResponse{Content: content})
}

func (api *aiApi) generateQuiz(ctx echo.Context) error {
	var data ai.QuizRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuizRequest")
	}
	questions, err := api.svc.GenerateQuizQuestions(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "generating quiz")
	}
	return ctx.JSON(http.StatusOK, QuizResponse{Questions: questions})
}

func (api *aiApi) analyzePerformance(ctx echo.Context) error {
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

	res, err := api.analyzer.Analyze(ctx.Request().Context(), file)
	if err != nil {
		return errors.Wrap(err, "analyzing performance")
	}
	return ctx.JSON(http.StatusOK, res)
}
