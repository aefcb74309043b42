package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// addUser updates or creates an active user.User of the tenant served at subdomain.
// The password policy does not apply: operators may set any password.
func (cli *commandLine) addUser(subdomain, name, uname, email, pwd string, role user.Role) error {
	ctx := context.Background()
	tnt, err := cli.tenants.GetBySubdomain(ctx, core.CleanString(subdomain, true /* lower */))
	if err != nil {
		return err
	}
	if !role.IsValid() {
		return fmt.Errorf("%q is not a valid role", role)
	}

	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if name = core.CleanString(name); name == "" {
		name = uname
	}

	usr, err := cli.usrRepo.GetUser(ctx, tnt.ID, user.GetFilter{Username: uname})
	isNew := err != nil
	if isNew {
		if !core.IsNotFound(err) {
			return err
		}
		if err = cli.usrRepo.CheckUniqueness(ctx, tnt.ID, uname, email, 0); err != nil {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{TenantID: tnt.ID, Username: uname, CreatedAt: now}
	}

	usr.Name = name
	if email != "" {
		usr.Email = email
	}
	usr.Role = role
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if isNew {
		usr, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		usr, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	if err != nil {
		return err
	}
	fmt.Printf("user %q saved (id %d, role %s)\n", usr.Username, usr.ID, usr.Role)
	return nil
}
