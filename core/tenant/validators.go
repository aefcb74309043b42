package tenant

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

var (
	subdomainTag   = "subdomain"
	subdomainText  = "must be 3 to 63 lowercase letters, digits or hyphens, not starting or ending with a hyphen"
	subdomainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{1,61})[a-z0-9]$`)

	// subdomains that can never be claimed by a tenant
	reservedSubdomains = map[string]struct{}{"www": {}, "api": {}, "admin": {}, "app": {}, "static": {}}
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(subdomainTag, subdomainValidation)
	core.RegisterCustomTranslation(validate, translator, subdomainTag, subdomainText)
}

func subdomainValidation(fl validator.FieldLevel) bool {
	sub := fl.Field().String()
	if _, reserved := reservedSubdomains[sub]; reserved {
		return false
	}
	return subdomainRegex.MatchString(sub)
}
