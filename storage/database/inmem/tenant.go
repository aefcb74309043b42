package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/tenant"
)

var tenantFields = fieldGetters[tenant.Tenant]{
	"id":         func(t tenant.Tenant) interface{} { return t.ID },
	"name":       func(t tenant.Tenant) interface{} { return t.Name },
	"subdomain":  func(t tenant.Tenant) interface{} { return t.Subdomain },
	"is_active":  func(t tenant.Tenant) interface{} { return t.IsActive },
	"created_at": func(t tenant.Tenant) interface{} { return t.CreatedAt },
}

type tenantRepository struct {
	db *DB
}

func NewTenantRepository(db *DB) tenant.Repository {
	return &tenantRepository{db: db}
}

func (repo *tenantRepository) CreateTenant(_ context.Context, tnt tenant.Tenant) (tenant.Tenant, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, t := range repo.db.tenants.rows {
		if t.Subdomain == tnt.Subdomain {
			return tenant.Tenant{}, tenant.ErrSubdomainExists
		}
	}
	tnt.ID = repo.db.tenants.nextID()
	repo.db.tenants.rows[tnt.ID] = tnt
	return tnt, nil
}

func (repo *tenantRepository) GetTenant(_ context.Context, id int64) (tenant.Tenant, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if tnt, ok := repo.db.tenants.rows[id]; ok {
		return tnt, nil
	}
	return tenant.Tenant{}, tenant.ErrNotFound
}

func (repo *tenantRepository) GetTenantBySubdomain(_ context.Context, subdomain string) (tenant.Tenant, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subdomain = strings.ToLower(subdomain)
	for _, tnt := range repo.db.tenants.rows {
		if tnt.Subdomain == subdomain {
			return tnt, nil
		}
	}
	return tenant.Tenant{}, tenant.ErrNotFound
}

func (repo *tenantRepository) QueryTenants(_ context.Context, filter *tenant.QueryFilter, opts core.ListOptions) ([]tenant.Tenant, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter == nil {
		filter = new(tenant.QueryFilter)
	}
	rows := repo.db.tenants.list(func(t tenant.Tenant) bool {
		if filter.Search != "" && !(containsFold(t.Name, filter.Search) || containsFold(t.Subdomain, filter.Search)) {
			return false
		}
		return filter.IsActive == nil || t.IsActive == *filter.IsActive
	})
	return orderAndPage(rows, opts, tenantFields, asc("name")), nil
}

func (repo *tenantRepository) UpdateTenant(_ context.Context, tnt tenant.Tenant) (tenant.Tenant, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.tenants.rows[tnt.ID]; !ok {
		return tenant.Tenant{}, tenant.ErrNotFound
	}
	repo.db.tenants.rows[tnt.ID] = tnt
	return tnt, nil
}

func (repo *tenantRepository) SubdomainExists(_ context.Context, subdomain string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subdomain = strings.ToLower(subdomain)
	for _, tnt := range repo.db.tenants.rows {
		if tnt.Subdomain == subdomain {
			return true, nil
		}
	}
	return false, nil
}
