package tenant

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Subdomain string    `json:"subdomain"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewTenant contains information needed to create a new Tenant.
type NewTenant struct {
	Name      string `json:"name" validate:"required,max=120"`
	Subdomain string `json:"subdomain" validate:"required,subdomain"`
}

func (nt *NewTenant) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Subdomain = core.CleanString(nt.Subdomain, true /* lower */)
	return validate.Struct(nt)
}

// UpdateTenant defines what information may be provided to modify an existing Tenant.
type UpdateTenant struct {
	Name     string `json:"name" validate:"max=120"`
	IsActive *bool  `json:"is_active"`
}

func (ut *UpdateTenant) Validate(orig Tenant, validate *validator.Validate) error {
	if name := core.CleanString(ut.Name); name != "" {
		ut.Name = name
	} else {
		ut.Name = orig.Name
	}
	return validate.Struct(ut)
}

type QueryFilter struct {
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
