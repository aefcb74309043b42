package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("tenant")
	ErrSubdomainExists = errors.New("a tenant with this subdomain already exists")
	ErrUnavailable     = errors.New("tenant unavailable")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateTenant(ctx context.Context, tnt Tenant) (Tenant, error)
		GetTenant(ctx context.Context, id int64) (Tenant, error)
		GetTenantBySubdomain(ctx context.Context, subdomain string) (Tenant, error)
		// QueryTenants applies AND operation on available QueryFilter fields.
		QueryTenants(ctx context.Context, filter *QueryFilter, opts core.ListOptions) ([]Tenant, error)
		UpdateTenant(ctx context.Context, tnt Tenant) (Tenant, error)
		SubdomainExists(ctx context.Context, subdomain string) (bool, error)
	}

	Service interface {
		Create(ctx context.Context, nt NewTenant) (Tenant, error)
		Get(ctx context.Context, id int64) (Tenant, error)
		GetBySubdomain(ctx context.Context, subdomain string) (Tenant, error)
		// Resolve returns the active Tenant served at subdomain.
		Resolve(ctx context.Context, subdomain string) (Tenant, error)
		Query(ctx context.Context, filter *QueryFilter, opts core.ListOptions) ([]Tenant, error)
		Update(ctx context.Context, tnt Tenant, ut UpdateTenant) (Tenant, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nt NewTenant) (Tenant, error) {
	exists, err := svc.repo.SubdomainExists(ctx, nt.Subdomain)
	if err != nil {
		return Tenant{}, err
	}
	if exists {
		return Tenant{}, core.NewValidationError(ErrSubdomainExists, core.FieldError{Field: "subdomain", Error: ErrSubdomainExists.Error()})
	}

	now := nowFunc().UTC()
	return svc.repo.CreateTenant(ctx, Tenant{
		Name:      nt.Name,
		Subdomain: nt.Subdomain,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Get(ctx context.Context, id int64) (Tenant, error) {
	return svc.repo.GetTenant(ctx, id)
}

func (svc *service) GetBySubdomain(ctx context.Context, subdomain string) (Tenant, error) {
	return svc.repo.GetTenantBySubdomain(ctx, core.CleanString(subdomain, true /* lower */))
}

func (svc *service) Resolve(ctx context.Context, subdomain string) (Tenant, error) {
	tnt, err := svc.GetBySubdomain(ctx, subdomain)
	if err != nil {
		return Tenant{}, err
	}
	if !tnt.IsActive {
		return Tenant{}, ErrUnavailable
	}
	return tnt, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, opts core.ListOptions) ([]Tenant, error) {
	return svc.repo.QueryTenants(ctx, filter, opts)
}

func (svc *service) Update(ctx context.Context, tnt Tenant, ut UpdateTenant) (Tenant, error) {
	tnt.Name = ut.Name
	if ut.IsActive != nil {
		tnt.IsActive = *ut.IsActive
	}
	tnt.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateTenant(ctx, tnt)
}
