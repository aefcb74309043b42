package echoapi

import (
	"net"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
)

const (
	tenantHeader       = "X-Tenant"
	contextTenantKey   = "tenant"
	contextObjectKey   = "object"
	defaultObjectParam = "id"
)

// tenantMiddleware resolves the Tenant of the request from the X-Tenant header,
// or else from the subdomain of the Host under the configured base domain.
func tenantMiddleware(conf *core.Config, svc tenant.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			subdomain := requestSubdomain(ctx, conf.Server.BaseDomain)
			if subdomain == "" {
				return errTenantNotFound
			}

			tnt, err := svc.Resolve(ctx.Request().Context(), subdomain)
			switch {
			case err == nil:
			case errors.Is(err, tenant.ErrUnavailable):
				return errTenantUnavailable
			case core.IsNotFound(err):
				return errTenantNotFound
			default:
				return errors.Wrap(err, "resolving tenant")
			}

			ctx.Set(contextTenantKey, tnt)
			return next(ctx)
		}
	}
}

func requestSubdomain(ctx echo.Context, baseDomain string) string {
	if sub := strings.TrimSpace(ctx.Request().Header.Get(tenantHeader)); sub != "" {
		return sub
	}

	host := ctx.Request().Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	suffix := "." + strings.ToLower(baseDomain)
	host = strings.ToLower(host)
	if baseDomain == "" || !strings.HasSuffix(host, suffix) {
		return ""
	}
	return strings.TrimSuffix(host, suffix)
}

func contextTenant(ctx echo.Context) tenant.Tenant {
	tnt, _ := ctx.Get(contextTenantKey).(tenant.Tenant)
	return tnt
}

func tenantID(ctx echo.Context) int64 {
	return contextTenant(ctx).ID
}

// roleMiddleware guards the route with access.Guard: anonymous users are unauthorized,
// users of other roles are forbidden.
func roleMiddleware(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			var usr *user.User
			if u, ok := contextUser(ctx); ok {
				usr = &u
			}

			decision := access.Guard(usr, roles, ctx.Request().URL.Path)
			if decision.Outcome == access.Render {
				return next(ctx)
			}
			if usr == nil || !usr.IsActive {
				return errUnauthorized
			}
			return errHttpForbidden
		}
	}
}

var adminOnly = roleMiddleware(user.AdminRoles...)

// loadObject fetches the object identified by the route's param (`id` by default)
// and stores it in the context for handlers to retrieve with contextObject.
func loadObject[T any](get func(ctx echo.Context, tenantID, id int64) (T, error), param ...string) echo.MiddlewareFunc {
	name := defaultObjectParam
	if len(param) > 0 {
		name = param[0]
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
			if err != nil {
				return errHttpNotFound
			}
			obj, err := get(ctx, tenantID(ctx), id)
			if err != nil {
				return err
			}
			ctx.Set(contextObjectKey, obj)
			return next(ctx)
		}
	}
}

func contextObject[T any](ctx echo.Context) T {
	obj, _ := ctx.Get(contextObjectKey).(T)
	return obj
}
