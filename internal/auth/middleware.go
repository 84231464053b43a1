package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/events2go/notify-hub/internal/domain/notification"
)

const contextKeyRecipientID = "recipient_id"

// Middleware validates the Bearer token and injects the verified recipient
// id into the echo context.
func Middleware(v Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return notification.ErrUnauthenticated
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				return notification.ErrUnauthenticated
			}

			recipientID, err := v.Verify(parts[1])
			if err != nil {
				return notification.ErrUnauthenticated
			}

			c.Set(contextKeyRecipientID, recipientID)
			return next(c)
		}
	}
}

// RecipientID extracts the authenticated recipient id from echo context.
func RecipientID(c echo.Context) (string, bool) {
	id, ok := c.Get(contextKeyRecipientID).(string)
	return id, ok && id != ""
}
