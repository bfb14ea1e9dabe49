package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"nifty-walkforward/internal/model"
	"nifty-walkforward/pkg/utils"
)

func (h *HttpAPIHandler) SetupRuns(base *echo.Group) {
	runsGroup := base.Group("/runs")
	runsGroup.GET("", h.listRuns)
	runsGroup.GET("/:id", h.getRun)
}

func (h *HttpAPIHandler) listRuns(c echo.Context) error {
	if h.service.RunRepo == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "artifact store not configured"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 20
	}

	var opts []utils.DBOption
	if dataset := c.QueryParam("dataset"); dataset != "" {
		opts = append(opts, utils.WithWhere("dataset_source = ?", dataset))
	}

	runs, err := h.service.RunRepo.Get(c.Request().Context(), model.GetRunParam{Limit: limit}, opts...)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list runs"})
	}
	return c.JSON(http.StatusOK, runs)
}

func (h *HttpAPIHandler) getRun(c echo.Context) error {
	if h.service.RunRepo == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "artifact store not configured"})
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid run id"})
	}

	run, err := h.service.RunRepo.GetDetail(c.Request().Context(), uint(id))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get run"})
	}
	return c.JSON(http.StatusOK, run)
}
