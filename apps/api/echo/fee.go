package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core/fee"
	"github.com/trezcool/muziki/core/user"
)

type feeApi struct {
	usrSvc user.Service
	svc    *fee.Service
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc user.Service, svc *fee.Service) {
	api := feeApi{usrSvc: usrSvc, svc: svc}

	fg := g.Group("/fees", jwt)
	fg.GET("", api.query)
	fg.POST("", api.create, adminMiddleware())

	dg := fg.Group("/:id", api.feeMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.POST("/pay", api.pay, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
}

// Handlers

func (api *feeApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var filter fee.Filter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []fee.Fee{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	switch {
	case ctxUsr.IsAdmin():
	case ctxUsr.IsStudent():
		filter.StudentID = ctxUsr.ID
	default:
		return errHttpForbidden
	}

	fees, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	return ctx.JSON(http.StatusOK, nonNil(fees))
}

func (api *feeApi) create(ctx echo.Context) error {
	var data fee.NewFee
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFee")
	}
	f, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *feeApi) retrieve(ctx echo.Context) error {
	f, err := contextObject[fee.Fee](ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *feeApi) update(ctx echo.Context) error {
	f, err := contextObject[fee.Fee](ctx)
	if err != nil {
		return err
	}
	var data fee.UpdateFee
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFee")
	}
	f, err = api.svc.Update(ctx.Request().Context(), f, data)
	if err != nil {
		return errors.Wrap(err, "updating fee")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *feeApi) pay(ctx echo.Context) error {
	f, err := contextObject[fee.Fee](ctx)
	if err != nil {
		return err
	}
	f, err = api.svc.Pay(ctx.Request().Context(), f)
	if err != nil {
		return errors.Wrap(err, "paying fee")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *feeApi) destroy(ctx echo.Context) error {
	f, err := contextObject[fee.Fee](ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), f.ID); err != nil {
		return errors.Wrap(err, "deleting fee")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// feeMiddleware loads the Fee :id for its student or an admin.
func (api *feeApi) feeMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxUsr, err := getContextUser(ctx, api.usrSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		f, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "finding fee")
		}
		if f.StudentID != ctxUsr.ID && !ctxUsr.IsAdmin() {
			return errHttpNotFound
		}
		ctx.Set(objectKey, f)
		return next(ctx)
	}
}
