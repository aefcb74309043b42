package boiledrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/tenant"
)

var tenantSortable = []string{"id", "name", "subdomain", "is_active", "created_at"}

type tenantRow struct {
	ID        int64     `boil:"id"`
	Name      string    `boil:"name"`
	Subdomain string    `boil:"subdomain"`
	IsActive  bool      `boil:"is_active"`
	CreatedAt time.Time `boil:"created_at"`
	UpdatedAt time.Time `boil:"updated_at"`
}

func (r tenantRow) unboil() tenant.Tenant {
	return tenant.Tenant{
		ID:        r.ID,
		Name:      r.Name,
		Subdomain: r.Subdomain,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type tenantRepository struct {
	exec core.DBExecutor
}

var _ tenant.Repository = (*tenantRepository)(nil) // interface compliance check

func NewTenantRepository(exec core.DBExecutor) tenant.Repository {
	return &tenantRepository{exec: exec}
}

func (repo *tenantRepository) CreateTenant(ctx context.Context, tnt tenant.Tenant) (tenant.Tenant, error) {
	err := queries.Raw(
		`INSERT INTO tenants (name, subdomain, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		tnt.Name, tnt.Subdomain, tnt.IsActive, tnt.CreatedAt.UTC(), tnt.UpdatedAt.UTC(),
	).QueryRowContext(ctx, repo.exec).Scan(&tnt.ID)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return tenant.Tenant{}, tenant.ErrSubdomainExists
		}
		return tenant.Tenant{}, errors.Wrap(err, "inserting tenant")
	}
	return tnt, nil
}

func (repo *tenantRepository) getTenant(ctx context.Context, mod qm.QueryMod) (tenant.Tenant, error) {
	var row tenantRow
	if err := newQuery("tenants", mod).Bind(ctx, repo.exec, &row); err != nil {
		return tenant.Tenant{}, trapNoRowsErr(err, tenant.ErrNotFound, "finding tenant")
	}
	return row.unboil(), nil
}

func (repo *tenantRepository) GetTenant(ctx context.Context, id int64) (tenant.Tenant, error) {
	return repo.getTenant(ctx, qm.Where("id = ?", id))
}

func (repo *tenantRepository) GetTenantBySubdomain(ctx context.Context, subdomain string) (tenant.Tenant, error) {
	return repo.getTenant(ctx, qm.Where("subdomain = lower(?)", subdomain))
}

func tenantQueryMods(filter *tenant.QueryFilter, opts core.ListOptions) []qm.QueryMod {
	var mods []qm.QueryMod
	if filter != nil {
		if filter.Search != "" {
			val := likeArg(filter.Search)
			mods = append(mods, qm.Where("(name ILIKE ? OR subdomain ILIKE ?)", val, val))
		}
		if filter.IsActive != nil {
			mods = append(mods, qm.Where("is_active = ?", *filter.IsActive))
		}
	}
	return append(mods, listMods(opts, tenantSortable, core.DBOrdering{Field: "name", Ascending: true})...)
}

func (repo *tenantRepository) QueryTenants(ctx context.Context, filter *tenant.QueryFilter, opts core.ListOptions) ([]tenant.Tenant, error) {
	var rows []tenantRow
	if err := newQuery("tenants", tenantQueryMods(filter, opts)...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying tenants")
	}
	tenants := make([]tenant.Tenant, 0, len(rows))
	for _, r := range rows {
		tenants = append(tenants, r.unboil())
	}
	return tenants, nil
}

func (repo *tenantRepository) UpdateTenant(ctx context.Context, tnt tenant.Tenant) (tenant.Tenant, error) {
	res, err := queries.Raw(
		`UPDATE tenants SET name = $2, is_active = $3, updated_at = $4 WHERE id = $1`,
		tnt.ID, tnt.Name, tnt.IsActive, tnt.UpdatedAt.UTC(),
	).ExecContext(ctx, repo.exec)
	if err = checkAffected(res, err, tenant.ErrNotFound, "updating tenant"); err != nil {
		return tenant.Tenant{}, err
	}
	return tnt, nil
}

func (repo *tenantRepository) SubdomainExists(ctx context.Context, subdomain string) (bool, error) {
	var found bool
	err := queries.Raw(`SELECT EXISTS (SELECT 1 FROM tenants WHERE subdomain = lower($1))`, subdomain).
		QueryRowContext(ctx, repo.exec).Scan(&found)
	return found, errors.Wrap(err, "checking subdomain")
}
