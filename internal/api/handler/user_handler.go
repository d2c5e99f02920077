package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/core/ports"
)

// UserHandler serves the caller's own identity record.
type UserHandler struct {
	service ports.ProfileService
}

func NewUserHandler(service ports.ProfileService) *UserHandler {
	return &UserHandler{service: service}
}

// Me handles GET /api/users/me.
//
// @Summary      Get own profile with balance summary
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  successResponse{data=profileResponse}
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	id, err := externalID(c)
	if err != nil {
		return err
	}

	profile, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, toProfileResponse(profile))
}

// Update handles PATCH /api/users/me.
//
// @Summary      Update own display name
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateProfileRequest  true  "Fields to change"
// @Success      200   {object}  successResponse{data=userResponse}
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/users/me [patch]
func (h *UserHandler) Update(c echo.Context) error {
	id, err := externalID(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}

	var displayName *string
	if len(req.DisplayName) > 0 {
		var name string
		if err := json.Unmarshal(req.DisplayName, &name); err != nil || string(req.DisplayName) == "null" {
			return domain.NewValidationError("displayName must be a string")
		}
		displayName = &name
	}

	user, err := h.service.UpdateDisplayName(c.Request().Context(), id, displayName)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, toUserResponse(user))
}

// Delete handles DELETE /api/users/me.
//
// @Summary      Delete own account
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  successResponse{data=deletedResponse}
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/users/me [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := externalID(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, deletedResponse{Deleted: true})
}
