package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/access"
	"github.com/trezcool/darasa/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
	jwtAudience     = "Darasa"
)

var nowFunc = time.Now // mockable

// Claims represents the authorization claims transmitted via the session cookie.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"`
	TenantID     int64     `json:"tid"`
	Username     string    `json:"username,omitempty"`
	Role         user.Role `json:"role,omitempty"`
}

func (c Claims) userID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// sessionResponse is what the client needs to route a logged in user.
type sessionResponse struct {
	User       user.User        `json:"user"`
	Portal     user.Portal      `json:"portal"`
	Home       string           `json:"home"`
	Navigation []access.NavItem `json:"navigation"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

type sessionManager struct {
	conf      *core.Config
	users     user.Service
	jwtConfig middleware.JWTConfig
}

func newSessionManager(conf *core.Config, users user.Service) *sessionManager {
	return &sessionManager{
		conf:  conf,
		users: users,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
			TokenLookup:   "cookie:" + conf.Server.SessionCookieName,
		},
	}
}

func (sm *sessionManager) newClaims(usr user.User, origIat ...int64) *Claims {
	now := nowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    sm.conf.AppName,
			Subject:   strconv.FormatInt(usr.ID, 10),
			Audience:  jwtAudience,
			ExpiresAt: now.Add(sm.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		TenantID:     usr.TenantID,
		Username:     usr.Username,
		Role:         usr.Role,
	}
}

// generateToken generates a signed JWT token string representing the user Claims.
func (sm *sessionManager) generateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(sm.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(sm.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// start sets the session cookie of usr and returns the session's description.
func (sm *sessionManager) start(ctx echo.Context, usr user.User, origIat ...int64) (sessionResponse, error) {
	claims := sm.newClaims(usr, origIat...)
	token, err := sm.generateToken(claims)
	if err != nil {
		return sessionResponse{}, err
	}

	expiresAt := timeFromUnix(claims.ExpiresAt)
	ctx.SetCookie(&http.Cookie{
		Name:     sm.conf.Server.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   sm.conf.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return newSessionResponse(usr, expiresAt), nil
}

func (sm *sessionManager) clear(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     sm.conf.Server.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.conf.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func newSessionResponse(usr user.User, expiresAt time.Time) sessionResponse {
	portal := usr.Portal()
	return sessionResponse{
		User:       usr,
		Portal:     portal,
		Home:       access.Home(portal),
		Navigation: access.Navigation(portal),
		ExpiresAt:  expiresAt,
	}
}

// required rejects requests without a valid session of an active user of the current tenant.
func (sm *sessionManager) required() echo.MiddlewareFunc {
	jwtMiddleware := middleware.JWTWithConfig(sm.jwtConfig)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMiddleware(sm.loadUser(next))
	}
}

func (sm *sessionManager) loadUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		usr, err := sm.userFromClaims(ctx, claims)
		if err != nil {
			return err
		}
		ctx.Set(contextUserKey, usr)
		return next(ctx)
	}
}

func (sm *sessionManager) userFromClaims(ctx echo.Context, claims Claims) (user.User, error) {
	tnt := contextTenant(ctx)
	if claims.TenantID != tnt.ID {
		return user.User{}, errUnauthorized
	}
	uid, err := claims.userID()
	if err != nil {
		return user.User{}, errUnauthorized
	}

	usr, err := sm.users.Get(ctx.Request().Context(), tnt.ID, uid)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding session user")
	}
	if !usr.IsActive {
		return user.User{}, errUnauthorized
	}
	return usr, nil
}

// optionalUser returns the session user, or nil for anonymous requests & invalid sessions.
func (sm *sessionManager) optionalUser(ctx echo.Context) (*user.User, error) {
	cookie, err := ctx.Cookie(sm.conf.Server.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != sm.jwtConfig.SigningMethod {
			return nil, errors.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
		}
		return sm.jwtConfig.SigningKey, nil
	})
	if err != nil || !token.Valid {
		return nil, nil
	}

	usr, err := sm.userFromClaims(ctx, *claims)
	if err != nil {
		if err == errUnauthorized {
			return nil, nil
		}
		return nil, err
	}
	return &usr, nil
}

func (sm *sessionManager) authenticate(ctx echo.Context, uname, pwd string) (user.User, error) {
	tnt := contextTenant(ctx)
	usr, err := sm.users.GetByUsernameOrEmail(ctx.Request().Context(), tnt.ID, uname)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	usr, err = sm.users.SetLastLogin(ctx.Request().Context(), usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

func (sm *sessionManager) refresh(ctx echo.Context) (sessionResponse, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return sessionResponse{}, errors.Wrap(err, "getting context claims")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(sm.conf.Server.JWTRefreshExpirationDelta)
	if nowFunc().After(expTime) {
		return sessionResponse{}, errRefreshExpired
	}
	return sm.start(ctx, mustContextUser(ctx), claims.OrigIssuedAt)
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func contextUser(ctx echo.Context) (user.User, bool) {
	usr, ok := ctx.Get(contextUserKey).(user.User)
	return usr, ok
}

// mustContextUser is only safe behind sessionManager.required.
func mustContextUser(ctx echo.Context) user.User {
	usr, _ := contextUser(ctx)
	return usr
}

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
