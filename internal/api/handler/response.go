package handler

import "github.com/labstack/echo/v4"

// successResponse is the envelope of every successful API response.
type successResponse struct {
	Success bool `json:"success" example:"true"`
	Data    any  `json:"data"`
}

// errorResponse documents the failure envelope rendered by the HTTP error
// handler.
type errorResponse struct {
	Success bool   `json:"success" example:"false"`
	Error   string `json:"error"   example:"user not found"`
}

func respond(c echo.Context, code int, data any) error {
	return c.JSON(code, successResponse{Success: true, Data: data})
}
