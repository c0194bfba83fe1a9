package handler

import (
	stdErrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chronicae/chronicler/errors"
	"github.com/chronicae/chronicler/internal/adapter/dto/common"
)

// respondError maps an error to its JSON shape. AppErrors carry their own
// status code; anything else is a 500.
func respondError(c echo.Context, err error) error {
	var appErr errors.AppError
	if stdErrors.As(err, &appErr) {
		return c.JSON(appErr.HTTPCode, common.ErrorResponse{
			Error:   appErr.Code.String(),
			Message: appErr.Message,
			Details: appErr.Details,
			Code:    appErr.Code.String(),
		})
	}
	return c.JSON(http.StatusInternalServerError, common.ErrorResponse{
		Error:   errors.ErrorCode_INTERNAL.String(),
		Message: "Internal server error",
	})
}

// bindAndValidate decodes the request body and runs struct validation
func bindAndValidate(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return errors.ErrInvalidArgument("invalid request body")
	}
	if err := c.Validate(v); err != nil {
		return errors.ErrInvalidArgument(err.Error())
	}
	return nil
}
