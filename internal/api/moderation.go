package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type approveRequest struct {
	Notes string `json:"notes" validate:"omitempty,max=500"`
}

type flagRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type resolveRequest struct {
	IsFake bool `json:"is_fake"`
}

func (s *Server) ListModerationQueue(c echo.Context) error {
	entries, err := s.moderationService.ListQueue(c.Request().Context(), userIDFromContext(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, entries))
}

func (s *Server) ApproveReport(c echo.Context) error {
	pendingID, err := uuid.Parse(c.Param("pendingId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage("invalid candidate id"))
	}
	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage("invalid request body"))
	}

	result, err := s.moderationService.Approve(c.Request().Context(), userIDFromContext(c), pendingID, req.Notes)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, result))
}

func (s *Server) RejectReport(c echo.Context) error {
	pendingID, err := uuid.Parse(c.Param("pendingId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage("invalid candidate id"))
	}
	var req rejectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage(err.Error()))
	}

	if err := s.moderationService.Reject(c.Request().Context(), userIDFromContext(c), pendingID, req.Reason); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, map[string]bool{"success": true}))
}

func (s *Server) FlagUser(c echo.Context) error {
	userID := c.Param("userId")
	var req flagRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage(err.Error()))
	}

	result, err := s.moderationService.FlagUserForSpam(c.Request().Context(), userIDFromContext(c), userID, req.Reason)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, result))
}

func (s *Server) ResolveIncident(c echo.Context) error {
	incidentID, err := uuid.Parse(c.Param("incidentId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage("invalid incident id"))
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponseWithMessage("invalid request body"))
	}

	if err := s.moderationService.ResolveIncident(c.Request().Context(), userIDFromContext(c), incidentID, req.IsFake); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(http.StatusOK, NewSuccessResponse(http.StatusOK, map[string]bool{"success": true}))
}
