package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/core/ports"
)

// PreferencesHandler serves the caller's default focus settings.
type PreferencesHandler struct {
	service ports.PreferencesService
}

func NewPreferencesHandler(service ports.PreferencesService) *PreferencesHandler {
	return &PreferencesHandler{service: service}
}

// Get handles GET /api/preferences.
//
// @Summary      Get focus preferences
// @Tags         preferences
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  successResponse{data=preferencesResponse}
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/preferences [get]
func (h *PreferencesHandler) Get(c echo.Context) error {
	id, err := externalID(c)
	if err != nil {
		return err
	}

	prefs, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, toPreferencesResponse(prefs))
}

// Update handles PATCH /api/preferences. At least one field is required.
//
// @Summary      Update focus preferences
// @Tags         preferences
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updatePreferencesRequest  true  "Fields to change"
// @Success      200   {object}  successResponse{data=preferencesResponse}
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/preferences [patch]
func (h *PreferencesHandler) Update(c echo.Context) error {
	id, err := externalID(c)
	if err != nil {
		return err
	}

	var req updatePreferencesRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var patch domain.PreferencesPatch
	if req.FocusDurationMinutes != nil {
		patch.FocusDurationMinutes = domain.Some(*req.FocusDurationMinutes)
	}
	if req.FocusMode != nil {
		patch.FocusMode = domain.Some(domain.FocusMode(*req.FocusMode))
	}

	prefs, err := h.service.Update(c.Request().Context(), id, patch)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, toPreferencesResponse(prefs))
}
