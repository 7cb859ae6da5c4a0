package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/loganlanou/authgate/internal/auth"
	"github.com/loganlanou/authgate/internal/userid"
)

type UserIDHandler struct {
	users *auth.Service
}

func NewUserIDHandler(users *auth.Service) *UserIDHandler {
	return &UserIDHandler{users: users}
}

// HandleUserID maps the bearer's principal to its internal id, creating the
// user on first sight.
func (h *UserIDHandler) HandleUserID(c echo.Context) error {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing bearer token")
	}

	user, err := h.users.GetOrCreateUser(c.Request().Context(), claims)
	if err != nil {
		slog.Error("failed to resolve user id", "error", err, "principal", claims.Subject)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to resolve user")
	}

	return c.JSON(http.StatusOK, userid.Identity{
		ID:        user.ID,
		Principal: user.PrincipalID,
	})
}
