package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"nifty-walkforward/internal/dataset"
	"nifty-walkforward/internal/dto"
	"nifty-walkforward/internal/fold"
)

func (h *HttpAPIHandler) SetupBacktest(base *echo.Group) {
	backtestGroup := base.Group("/backtest")
	backtestGroup.POST("", h.runBacktest)
}

func (h *HttpAPIHandler) runBacktest(c echo.Context) error {
	ctx := c.Request().Context()

	req := new(dto.RunRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	result, err := h.service.WalkForwardService.Run(ctx, *req)
	if err != nil {
		if errors.Is(err, fold.ErrConfiguration) || errors.Is(err, dataset.ErrSchema) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to run backtest"})
	}

	return c.JSON(http.StatusOK, result)
}
