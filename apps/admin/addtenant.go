package main

import (
	"context"
	"fmt"

	"github.com/trezcool/darasa/core/tenant"
)

func (cli *commandLine) addTenant(name, subdomain string) error {
	nt := tenant.NewTenant{Name: name, Subdomain: subdomain}
	if err := nt.Validate(cli.validate); err != nil {
		return err
	}
	tnt, err := cli.tenants.Create(context.Background(), nt)
	if err != nil {
		return err
	}
	fmt.Printf("tenant %q created (id %d)\n", tnt.Subdomain, tnt.ID)
	return nil
}
