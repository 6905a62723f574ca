package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestContextMiddleware sets a per-request UserContext derived from parent. It ends
// when the timeout passes or parent is cancelled on shutdown; a zero timeout means
// no deadline.
func RequestContextMiddleware(parent context.Context, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			ctx    context.Context
			cancel context.CancelFunc
		)
		if timeout > 0 {
			ctx, cancel = context.WithTimeout(parent, timeout)
		} else {
			ctx, cancel = context.WithCancel(parent)
		}
		defer cancel()

		c.SetUserContext(ctx)
		return c.Next()
	}
}
