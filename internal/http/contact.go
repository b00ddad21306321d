package http

import (
	"github.com/jmehdipour/lead-intake/internal/intake"
	echo "github.com/labstack/echo/v4"
)

// contactHandler hands every method to the intake service, which answers
// preflight and 405 itself.
func contactHandler(svc *intake.Service, bodyLimit int64) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := intake.FromHTTP(c.Request(), bodyLimit)
		if err != nil {
			c.Logger().Warnf("read contact body: %v", err)
		}
		resp := svc.Handle(c.Request().Context(), req)
		return intake.WriteHTTP(c.Response(), resp)
	}
}
