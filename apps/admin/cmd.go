package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sql.DB
	tenants  tenant.Service
	usrRepo  user.Repository
	validate *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS]                                  - run a migration command (up, down, status, ...)")
	fmt.Println("  addtenant -name NAME -subdomain SUBDOMAIN               - create a tenant")
	fmt.Println("  adduser -tenant SUBDOMAIN -username USERNAME [-email EMAIL] [-name NAME] [-role ROLE]")
	fmt.Println("                                                          - create or update a user; the password is prompted next")
	fmt.Println("  resetpassword -tenant SUBDOMAIN -username USERNAME|EMAIL - reset a user's password")
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addTenantCmd := flag.NewFlagSet("addtenant", flag.ContinueOnError)
	addTenantName := addTenantCmd.String("name", "", "The tenant's display name.")
	addTenantSubdomain := addTenantCmd.String("subdomain", "", "The subdomain serving the tenant.")

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserTenant := addUserCmd.String("tenant", "", "The subdomain of the user's tenant.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's name. Defaults to the username.")
	addUserRole := addUserCmd.String("role", string(user.RoleSuperAdmin), "The user's role: student, admin or superadmin.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordTenant := resetPasswordCmd.String("tenant", "", "The subdomain of the user's tenant.")
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	for _, fs := range []*flag.FlagSet{addTenantCmd, addUserCmd, resetPasswordCmd} {
		fs.SetOutput(os.Stdout)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addtenant":
		if err := addTenantCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addTenantName == "" || *addTenantSubdomain == "" {
			addTenantCmd.Usage()
			return errHelp
		}
		return cli.addTenant(*addTenantName, *addTenantSubdomain)

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserTenant == "" || *addUserUname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserTenant, *addUserName, *addUserUname, *addUserEmail, pwd, user.Role(*addUserRole))

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordTenant == "" || *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordTenant, *resetPasswordUname, pwd)

	default:
		cli.printUsage()
		return errHelp
	}
}
