package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/buytime/backend/internal/core/domain"
	"github.com/buytime/backend/internal/core/ports"
)

// BalanceHandler serves the caller's spendable minutes.
type BalanceHandler struct {
	ledger ports.LedgerService
}

func NewBalanceHandler(ledger ports.LedgerService) *BalanceHandler {
	return &BalanceHandler{ledger: ledger}
}

// Get handles GET /api/balance.
//
// @Summary      Get balance with today's totals
// @Tags         balance
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  successResponse{data=balanceResponse}
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/balance [get]
func (h *BalanceHandler) Get(c echo.Context) error {
	id, err := externalID(c)
	if err != nil {
		return err
	}

	snap, err := h.ledger.GetBalance(c.Request().Context(), id)
	if err != nil {
		return balanceError(err)
	}
	return respond(c, http.StatusOK, toSnapshotResponse(snap))
}

// Set handles PATCH /api/balance.
//
// @Summary      Overwrite available minutes
// @Tags         balance
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      setBalanceRequest  true  "New balance"
// @Success      200   {object}  successResponse{data=balanceResponse}
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/balance [patch]
func (h *BalanceHandler) Set(c echo.Context) error {
	id, err := externalID(c)
	if err != nil {
		return err
	}

	var req setBalanceRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	bal, err := h.ledger.SetAvailable(c.Request().Context(), id, *req.AvailableMinutes)
	if err != nil {
		return balanceError(err)
	}
	return respond(c, http.StatusOK, toBalanceResponse(*bal))
}

// RecordSession handles POST /api/balance/sessions.
//
// @Summary      Record a finished focus session
// @Description  Prices the session with the reward table and credits completed sessions.
// @Tags         balance
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      recordSessionRequest  true  "Session outcome"
// @Success      201   {object}  successResponse{data=sessionResponse}
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/balance/sessions [post]
func (h *BalanceHandler) RecordSession(c echo.Context) error {
	id, err := externalID(c)
	if err != nil {
		return err
	}

	var req recordSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	in := ports.RecordSessionInput{
		ExternalID:             id,
		DurationMinutes:        *req.DurationMinutes,
		PlannedDurationMinutes: req.PlannedDurationMinutes,
		Mode:                   req.Mode,
		Status:                 req.Status,
	}
	if req.StartedAt != nil {
		in.StartedAt = *req.StartedAt
	}
	if req.EndedAt != nil {
		in.EndedAt = *req.EndedAt
	}

	res, err := h.ledger.RecordSession(c.Request().Context(), in)
	if err != nil {
		return balanceError(err)
	}
	return respond(c, http.StatusCreated, sessionResponse{
		RewardMinutes:  res.RewardMinutes,
		MultiplierUsed: res.MultiplierUsed,
		Balance:        toBalanceResponse(res.Balance),
	})
}

// balanceError reports a missing user as a missing balance on these routes.
func balanceError(err error) error {
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.ErrBalanceNotFound
	}
	return err
}
