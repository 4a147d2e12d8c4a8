package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/transitwatch/verifier/internal/types"
)

// respondError maps the engine error taxonomy onto HTTP statuses. Rate
// and cooldown rejections carry their retry metadata.
func (s *Server) respondError(c echo.Context, err error) error {
	var rateErr *types.RateLimitError
	if errors.As(err, &rateErr) {
		return c.JSON(http.StatusTooManyRequests,
			NewRetryableErrorResponse(rateErr.Error(), rateErr.RetryAfter))
	}
	var cooldownErr *types.CooldownError
	if errors.As(err, &cooldownErr) {
		return c.JSON(http.StatusTooManyRequests,
			NewRetryableErrorResponse(cooldownErr.Error(), cooldownErr.Remaining))
	}

	switch {
	case errors.Is(err, types.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, NewErrorResponseWithMessage(MsgUnauthorized))
	case errors.Is(err, types.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponseWithMessage(MsgForbidden))
	case errors.Is(err, types.ErrRateLimited), errors.Is(err, types.ErrOnCooldown):
		return c.JSON(http.StatusTooManyRequests, NewErrorResponseWithMessage(err.Error()))
	case errors.Is(err, types.ErrAlreadyReported):
		return c.JSON(http.StatusConflict, NewErrorResponseWithMessage(err.Error()))
	case errors.Is(err, types.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponseWithMessage(MsgNotFound))
	case errors.Is(err, types.ErrInvalidState), errors.Is(err, types.ErrStoreConflict):
		return c.JSON(http.StatusConflict, NewErrorResponseWithMessage(err.Error()))
	}

	s.logger.WithError(err).Error("unhandled request error")
	return c.JSON(http.StatusInternalServerError, NewErrorResponseWithMessage(MsgInternalError))
}
