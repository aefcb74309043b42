package user

import (
	"github.com/trezcool/darasa/core"
)

// NewServiceMock returns a Service that sends its emails synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, logger core.Logger, conf *core.Config) Service {
	svc := newService(repo, mailSvc, logger, conf)
	svc.async = func(f func()) { f() }
	return svc
}
