package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

func TestService_Register(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	acme := env.CreateTenant(t, "Acme", "acme")
	globex := env.CreateTenant(t, "Globex", "globex")
	env.CreateUser(t, acme.ID, "Taken", "taken", "taken@acme.test", testutil.Password, user.RoleStudent, true)

	newUser := func(uname, email string) user.NewUser {
		return user.NewUser{
			Name:            "Jane",
			Username:        uname,
			Email:           email,
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
			Role:            user.RoleSuperAdmin,
		}
	}

	tests := []struct {
		name      string
		tenantID  int64
		nu        user.NewUser
		wantField string
	}{
		{name: "username taken", nu: newUser("TAKEN", "jane@acme.test"), wantField: "username"},
		{name: "email taken", nu: newUser("jane", "Taken@Acme.test"), wantField: "email"},
		{name: "ok", nu: newUser("jane", "jane@acme.test")},
		{name: "same username in another tenant", tenantID: globex.ID, nu: newUser("taken", "taken@acme.test")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.Mail.Reset()
			tnt := acme
			if tt.tenantID == globex.ID {
				tnt = globex
			}
			usr, err := env.Users.Register(ctx, tnt, tt.nu)
			if tt.wantField != "" {
				assert.Equal(t, []string{tt.wantField}, testutil.FieldNames(err))
				assert.Empty(t, env.Mail.SentMessages())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tnt.ID, usr.TenantID)
			assert.Equal(t, user.RoleStudent, usr.Role, "self registration always creates students")
			assert.True(t, usr.IsActive)
			assert.NoError(t, usr.CheckPassword(testutil.Password))

			sent := env.Mail.SentMessages()
			require.Len(t, sent, 1)
			assert.Equal(t, "welcome", sent[0].TemplateName)
			assert.Equal(t, tt.nu.Email, sent[0].To[0].Address)
		})
	}
}

func TestService_tenantIsolation(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	acme := env.CreateTenant(t, "Acme", "acme")
	globex := env.CreateTenant(t, "Globex", "globex")
	usr := env.CreateUser(t, acme.ID, "Jane", "jane", "jane@acme.test", "", user.RoleStudent, true)

	_, err := env.Users.Get(ctx, globex.ID, usr.ID)
	assert.Equal(t, user.ErrNotFound, err)
	_, err = env.Users.GetByUsernameOrEmail(ctx, globex.ID, "jane")
	assert.Equal(t, user.ErrNotFound, err)

	found, err := env.Users.GetByUsernameOrEmail(ctx, acme.ID, " JANE@acme.test ")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, found.ID)

	others, err := env.Users.Query(ctx, globex.ID, nil, core.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestService_Update(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	acme := env.CreateTenant(t, "Acme", "acme")
	jane := env.CreateUser(t, acme.ID, "Jane", "jane", "jane@acme.test", "", user.RoleStudent, true)
	env.CreateUser(t, acme.ID, "John", "john", "john@acme.test", "", user.RoleStudent, true)

	bio := "  Likes Go  "
	uu := user.UpdateUser{Username: "john", Bio: &bio}
	require.NoError(t, uu.Validate(jane, env.Validate))
	_, err := env.Users.Update(ctx, jane, uu)
	assert.Equal(t, []string{"username"}, testutil.FieldNames(err))

	uu = user.UpdateUser{Name: "Jane Doe", Bio: &bio, Role: user.RoleAdmin}
	require.NoError(t, uu.Validate(jane, env.Validate))
	updated, err := env.Users.Update(ctx, jane, uu)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", updated.Name)
	assert.Equal(t, "jane", updated.Username)
	assert.Equal(t, "Likes Go", updated.Bio)
	assert.Equal(t, user.RoleAdmin, updated.Role)

	deactivated, err := env.Users.Deactivate(ctx, updated)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)
}

func TestService_passwordReset(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	acme := env.CreateTenant(t, "Acme", "acme")
	jane := env.CreateUser(t, acme.ID, "Jane", "jane", "jane@acme.test", testutil.Password, user.RoleStudent, true)
	env.CreateUser(t, acme.ID, "Gone", "gone", "gone@acme.test", testutil.Password, user.RoleStudent, false)

	assert.Equal(t, user.ErrNotFound, env.Users.RequestPasswordReset(ctx, acme.ID, "nobody@acme.test"))
	assert.Equal(t, user.ErrNotFound, env.Users.RequestPasswordReset(ctx, acme.ID, "gone@acme.test"))
	assert.Empty(t, env.Mail.SentMessages())

	require.NoError(t, env.Users.RequestPasswordReset(ctx, acme.ID, "JANE@acme.test"))
	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "password_reset", sent[0].TemplateName)
	data := sent[0].TemplateData.(map[string]interface{})
	uid, token := data["UID"].(string), data["Token"].(string)

	newPwd := "N3w#Passphrase"
	tests := []struct {
		name    string
		data    user.ResetUserPassword
		wantErr bool
	}{
		{name: "bad token", data: user.ResetUserPassword{UID: uid, Token: "nope", Password: newPwd}, wantErr: true},
		{name: "bad uid", data: user.ResetUserPassword{UID: "zz", Token: token, Password: newPwd}, wantErr: true},
		{name: "ok", data: user.ResetUserPassword{UID: uid, Token: token, Password: newPwd}},
		{name: "token is single use", data: user.ResetUserPassword{UID: uid, Token: token, Password: newPwd}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.Users.ResetPassword(ctx, acme.ID, tt.data)
			if tt.wantErr {
				assert.Equal(t, []string{"token"}, testutil.FieldNames(err))
				return
			}
			require.NoError(t, err)
		})
	}

	usr, err := env.Users.Get(ctx, acme.ID, jane.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword(newPwd))
}

func TestCanAssign(t *testing.T) {
	admin := user.User{Role: user.RoleAdmin}
	assert.True(t, user.CanAssign(admin, user.RoleStudent))
	assert.True(t, user.CanAssign(admin, user.RoleAdmin))
	assert.False(t, user.CanAssign(admin, user.RoleSuperAdmin))
}
