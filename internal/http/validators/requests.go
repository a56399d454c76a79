package validators

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// Check runs struct-tag validation on a bound request and converts the first
// failure into a 400 the chat layer can show as-is.
func Check(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		f := fields[0]
		switch f.Tag() {
		case "required":
			return echo.NewHTTPError(http.StatusBadRequest, f.Field()+" is required")
		case "oneof":
			return echo.NewHTTPError(http.StatusBadRequest, f.Field()+" must be one of: "+f.Param())
		default:
			return echo.NewHTTPError(http.StatusBadRequest, f.Field()+" is invalid")
		}
	}
	return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
}
