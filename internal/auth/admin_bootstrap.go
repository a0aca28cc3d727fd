package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

type BootstrapAdminRequest struct {
	Operator string `json:"operator"`
	Secret   string `json:"secret"`
}

// BootstrapAdmin exchanges the bootstrap secret for an admin token.
// An empty bootstrapSecret disables the route.
func BootstrapAdmin(jwtSecret, bootstrapSecret string) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := new(BootstrapAdminRequest)
		if err := c.Bind(req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
		}
		if bootstrapSecret == "" {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "bootstrap disabled"})
		}
		if req.Secret == "" || subtle.ConstantTimeCompare([]byte(req.Secret), []byte(bootstrapSecret)) != 1 {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid secret"})
		}
		if req.Operator == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "operator required"})
		}

		signed, err := IssueToken(jwtSecret, req.Operator, "admin", DefaultTTL)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
		}
		return c.JSON(http.StatusOK, echo.Map{"token": signed, "operator": req.Operator})
	}
}
