package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ContextKeyExternalID is where the Auth middleware stores the caller's
// external identity.
const ContextKeyExternalID = "external_id"

// externalID returns the identity injected by the Auth middleware. A missing
// value means the route was mounted without authentication, which is
// rejected with 401 rather than served anonymously.
func externalID(c echo.Context) (string, error) {
	id, _ := c.Get(ContextKeyExternalID).(string)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return id, nil
}
