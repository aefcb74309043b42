package setup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/tenant"
	logsvc "github.com/trezcool/darasa/services/logger"
)

func TestNewRepositories(t *testing.T) {
	tests := []struct {
		name    string
		engine  string
		wantErr string
	}{
		{name: "inmem", engine: EngineInMem},
		{name: "postgres without connection", engine: EnginePostgres, wantErr: "the postgres engine needs a database connection"},
		{name: "unknown engine", engine: "mongo", wantErr: `unknown database engine "mongo"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos, err := NewRepositories(tt.engine, nil)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, repos.Users)
			assert.NotNil(t, repos.Dashboards)
		})
	}
}

func TestNew_inMemory(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Database.Engine = EngineInMem
	conf.Storage.Endpoint = ""
	conf.Broker.URL = ""

	app, err := New(conf, logsvc.NewNopLogger())
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.DB)
	require.NotNil(t, app.Services.Progress)

	tnt, err := app.Services.Tenants.Create(context.Background(), tenant.NewTenant{Name: "Acme", Subdomain: "acme"})
	require.NoError(t, err)
	got, err := app.Services.Tenants.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, tnt.ID, got.ID)
}
