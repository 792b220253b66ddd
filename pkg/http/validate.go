package http

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ReadAndValidateRequest binds the request body into req and validates it.
// Returns a non-nil response payload describing the failure, or nil on success.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if err := c.Bind(req); err != nil {
		return []*AppError{BadRequestError("malformed request body").WithError(err)}
	}
	if err := validate.Struct(req); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			out := make([]*AppError, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				out = append(out, BadRequestErrorf("field %s failed on %s", fe.Field(), fe.Tag()))
			}
			return out
		}
		return []*AppError{BadRequestError("invalid request").WithError(err)}
	}
	return nil
}
