package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/transitwatch/verifier/internal/types"
)

func (s *Server) SubmitReport(c echo.Context) error {
	var req types.SubmitReportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage(err.Error()))
	}

	result, err := s.reportService.SubmitReport(c.Request().Context(), userIDFromContext(c), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, NewSuccessResponse(http.StatusCreated, result))
}

func (s *Server) CanSubmit(c echo.Context) error {
	result, err := s.reportService.CanSubmit(c.Request().Context(), userIDFromContext(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, result))
}

func (s *Server) ListPending(c echo.Context) error {
	pending, err := s.reportService.ListPendingForUser(c.Request().Context(), userIDFromContext(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, pending))
}
