package exam

import (
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

// NewServiceMock returns a Service sending its emails synchronously.
func NewServiceMock(repo Repository, courses course.Service, users user.Service, mailSvc core.EmailService, logger core.Logger) Service {
	svc := newService(repo, courses, users, mailSvc, logger)
	svc.async = func(f func()) { f() }
	return svc
}
