package main

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

func (cli *commandLine) resetPassword(subdomain, uname, pwd string) error {
	ctx := context.Background()
	tnt, err := cli.tenants.GetBySubdomain(ctx, core.CleanString(subdomain, true /* lower */))
	if err != nil {
		return err
	}
	usr, err := cli.usrRepo.GetUser(ctx, tnt.ID, user.GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}
