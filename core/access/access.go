// Package access decides what a session may see: the client route table, role guards and the
// navigation of each portal. Everything here is a pure function of its arguments.
package access

import (
	"net/url"
	"strings"

	"github.com/trezcool/darasa/core/user"
)

const (
	AuthPath        = "/auth"
	AdminHomePath   = "/admin"
	StudentHomePath = "/student"
	nextParam       = "next"
	adminPrefix     = "/admin"
	studentPrefix   = "/student"
)

type Outcome int

const (
	Render Outcome = iota
	Redirect
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Decision is the outcome of guarding a path. Location is set for redirects.
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	Location string  `json:"location,omitempty"`
}

func render() Decision                  { return Decision{Outcome: Render} }
func redirect(location string) Decision { return Decision{Outcome: Redirect, Location: location} }
func notFound() Decision                { return Decision{Outcome: NotFound} }

// Home returns the landing path of a portal.
func Home(p user.Portal) string {
	switch p {
	case user.PortalAdmin:
		return AdminHomePath
	case user.PortalStudent:
		return StudentHomePath
	default:
		return StudentHomePath
	}
}

// LoginPath returns the auth page, coming back to next once logged in.
func LoginPath(next string) string {
	if next == "" || next == AuthPath {
		return AuthPath
	}
	return AuthPath + "?" + url.Values{nextParam: {next}}.Encode()
}

// Guard lets usr see path when they hold one of roles (any role when roles is empty).
// Anonymous users are sent to the auth page, others to their own portal.
func Guard(usr *user.User, roles []user.Role, path string) Decision {
	if usr == nil || !usr.IsActive {
		return redirect(LoginPath(path))
	}
	if len(roles) == 0 {
		return render()
	}
	for _, role := range roles {
		if usr.Role == role {
			return render()
		}
	}
	return redirect(Home(usr.Portal()))
}

// Resolve applies the client route table to path.
func Resolve(usr *user.User, path string) Decision {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = "/" + strings.Trim(path, "/")

	switch {
	case path == "/":
		if usr == nil || !usr.IsActive {
			return redirect(AuthPath)
		}
		return redirect(Home(usr.Portal()))
	case path == AuthPath:
		if usr != nil && usr.IsActive {
			return redirect(Home(usr.Portal()))
		}
		return render()
	case hasSegmentPrefix(path, adminPrefix):
		return Guard(usr, user.AdminRoles, path)
	case hasSegmentPrefix(path, studentPrefix):
		return Guard(usr, []user.Role{user.RoleStudent}, path)
	default:
		return notFound()
	}
}

func hasSegmentPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
