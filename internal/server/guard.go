package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wanderrhodes/wander/config"
)

// usageGuard limits unauthenticated visitors to a fixed number of chats per
// window, tracked by client IP in redis. When redis is unreachable the
// request is allowed through; availability beats strict enforcement here.
func usageGuard(rdb *redis.Client, cfg appconfig.GuardConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := fmt.Sprintf("guard:chats:%s", c.RealIP())
			ctx := c.Request().Context()

			used, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				return next(c)
			}
			if used == 1 {
				rdb.Expire(ctx, key, cfg.Window)
			}
			if used > int64(cfg.FreeChats) {
				return echo.NewHTTPError(http.StatusPaymentRequired,
					"free usage exhausted, please complete payment")
			}
			return next(c)
		}
	}
}
