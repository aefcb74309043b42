package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

func newTestCLI(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv()
	return &commandLine{
		tenants:  env.Tenants,
		usrRepo:  env.UserRepo,
		validate: env.Validate,
	}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest, check func(t *testing.T, tt cliTest)) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if pwd, ok := tt.extra.(string); ok {
				return []byte(pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				require.NoError(t, err)
				if check != nil {
					check(t, tt)
				}
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := newTestCLI(t)

	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
	}, nil)
}

func Test_commandLine_addTenant(t *testing.T) {
	cli, env := newTestCLI(t)
	env.CreateTenant(t, "Acme", "acme")

	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"addtenant"}, wantErr: errHelp},
		{name: "no subdomain", args: []string{"addtenant", "-name", "Globex"}, wantErr: errHelp},
		{name: "subdomain taken", args: []string{"addtenant", "-name", "Acme 2", "-subdomain", "acme"}, wantErrStr: tenant.ErrSubdomainExists.Error()},
		{name: "ok", args: []string{"addtenant", "-name", "Globex", "-subdomain", "Globex"}},
	}, func(t *testing.T, tt cliTest) {
		tnt, err := env.Tenants.GetBySubdomain(context.Background(), "globex")
		require.NoError(t, err)
		assert.Equal(t, "Globex", tnt.Name)
		assert.True(t, tnt.IsActive)
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := newTestCLI(t)
	acme := env.CreateTenant(t, "Acme", "acme")
	env.CreateUser(t, acme.ID, "Jane", "jane", "jane@acme.test", "old", user.RoleStudent, false)

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-tenant", "acme", "-username", "root"}, wantErr: errHelp},
		{name: "unknown tenant", args: []string{"adduser", "-tenant", "lol", "-username", "root"}, extra: "s3cret", wantErr: tenant.ErrNotFound},
		{name: "bad role", args: []string{"adduser", "-tenant", "acme", "-username", "root", "-role", "god"}, extra: "s3cret", wantErrStr: `"god" is not a valid role`},
		{
			name: "email taken", args: []string{"adduser", "-tenant", "acme", "-username", "root", "-email", "JANE@acme.test"},
			extra: "s3cret", wantErr: user.ErrEmailExists,
		},
		{name: "create", args: []string{"adduser", "-tenant", "acme", "-username", "Root", "-email", "root@acme.test"}, extra: "s3cret"},
		{name: "update", args: []string{"adduser", "-tenant", "ACME", "-username", "jane", "-role", "admin"}, extra: "n3w"},
	}, nil)

	ctx := context.Background()
	root, err := env.UserRepo.GetUser(ctx, acme.ID, user.GetFilter{Username: "root"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleSuperAdmin, root.Role)
	assert.Equal(t, "root", root.Name)
	assert.True(t, root.IsActive)
	assert.NoError(t, root.CheckPassword("s3cret"))

	jane, err := env.UserRepo.GetUser(ctx, acme.ID, user.GetFilter{Username: "jane"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, jane.Role)
	assert.True(t, jane.IsActive, "adduser reactivates")
	assert.Equal(t, "jane@acme.test", jane.Email)
	assert.NoError(t, jane.CheckPassword("n3w"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := newTestCLI(t)
	acme := env.CreateTenant(t, "Acme", "acme")
	globex := env.CreateTenant(t, "Globex", "globex")
	usr := env.CreateUser(t, acme.ID, "User", "awe", "awe@test.cd", "mdr", user.RoleStudent, true)

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "no tenant", args: []string{"resetpassword", "-username", "awe"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-tenant", "acme", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-tenant", "acme", "-username", "lol"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "other tenant", args: []string{"resetpassword", "-tenant", globex.Subdomain, "-username", "awe"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-tenant", "acme", "-username", usr.Username}, extra: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-tenant", "acme", "-username", "AWE@test.cd"}, extra: "lmao"},
	}, func(t *testing.T, tt cliTest) {
		refreshedUsr, err := env.UserRepo.GetUser(context.Background(), acme.ID, user.GetFilter{ID: usr.ID})
		require.NoError(t, err)
		if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
			t.Error("failed to update new password")
		}
		assert.NoError(t, refreshedUsr.CheckPassword(tt.extra.(string)))
	})
}
