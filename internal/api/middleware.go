package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// AuthMiddleware validates the bearer token and stores the identity and
// role on the request context. Role gating itself happens in the
// services, which return Forbidden.
func (s *Server) AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return c.JSON(http.StatusUnauthorized, NewErrorResponseWithMessage(MsgMissingAuthHeader))
		}
		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			return c.JSON(http.StatusUnauthorized, NewErrorResponseWithMessage(MsgInvalidAuthHeader))
		}

		claims, err := s.authService.ValidateToken(tokenStr)
		if err != nil {
			s.logger.Warnf("fail to validate token, err: %v", err)
			return c.JSON(http.StatusUnauthorized, NewErrorResponseWithMessage(MsgUnauthorized))
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		return next(c)
	}
}

func userIDFromContext(c echo.Context) string {
	id, _ := c.Get(ctxUserID).(string)
	return id
}
