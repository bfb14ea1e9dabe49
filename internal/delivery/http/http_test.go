package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nifty-walkforward/internal/dto"
	"nifty-walkforward/internal/fold"
	"nifty-walkforward/internal/service"
)

type stubWalkForward struct {
	report  *dto.RunReport
	err     error
	lastReq dto.RunRequest
}

func (s *stubWalkForward) Run(ctx context.Context, req dto.RunRequest) (*dto.RunReport, error) {
	s.lastReq = req
	return s.report, s.err
}

func newTestHandler(stub *stubWalkForward) *HttpAPIHandler {
	e := echo.New()
	h := NewHttpAPIHandler(context.Background(), e, goValidator.New(), &service.Service{
		WalkForwardService: stub,
	})
	h.SetupRoutes()
	return h
}

func doRequest(h *HttpAPIHandler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	h.echo.ServeHTTP(rec, req)
	return rec
}

func TestRunBacktest_OK(t *testing.T) {
	stub := &stubWalkForward{report: &dto.RunReport{DatasetSource: "data.csv", FoldsTotal: 3}}
	h := newTestHandler(stub)

	rec := doRequest(h, http.MethodPost, "/api/backtest",
		`{"dataset_source":"data.csv","train_months":6,"pricer_mode":"path"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"folds_total":3`)
	assert.Equal(t, "data.csv", stub.lastReq.DatasetSource)
	require.NotNil(t, stub.lastReq.TrainMonths)
	assert.Equal(t, 6, *stub.lastReq.TrainMonths)
	assert.Equal(t, "path", stub.lastReq.PricerMode)
}

func TestRunBacktest_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "negative train months", body: `{"train_months":-1}`},
		{name: "zero test months", body: `{"test_months":0}`},
		{name: "unknown pricer mode", body: `{"pricer_mode":"intrabar"}`},
		{name: "malformed json", body: `{"train_months":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&stubWalkForward{report: &dto.RunReport{}})
			rec := doRequest(h, http.MethodPost, "/api/backtest", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRunBacktest_ConfigurationErrorIsBadRequest(t *testing.T) {
	stub := &stubWalkForward{err: fmt.Errorf("%w: train_months must be positive", fold.ErrConfiguration)}
	h := newTestHandler(stub)

	rec := doRequest(h, http.MethodPost, "/api/backtest", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "train_months")
}

func TestRunBacktest_InternalError(t *testing.T) {
	stub := &stubWalkForward{err: fmt.Errorf("disk full")}
	h := newTestHandler(stub)

	rec := doRequest(h, http.MethodPost, "/api/backtest", `{}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRuns_UnavailableWithoutStore(t *testing.T) {
	h := newTestHandler(&stubWalkForward{})

	rec := doRequest(h, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(h, http.MethodGet, "/api/runs/1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
