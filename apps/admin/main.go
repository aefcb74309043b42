package main

import (
	"fmt"
	"os"

	"github.com/trezcool/darasa/apps/setup"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/tenant"
	"github.com/trezcool/darasa/core/validation"
	"github.com/trezcool/darasa/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := setup.NewLogger(conf, "admin")

	if conf.Database.Engine != setup.EnginePostgres {
		logger.Fatal(fmt.Sprintf("admin: the %q engine keeps no data between runs, use %q", conf.Database.Engine, setup.EnginePostgres))
	}

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("admin: provisioning database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("admin: opening database", err)
	}
	repos, err := setup.NewRepositories(setup.EnginePostgres, db)
	if err != nil {
		_ = db.Close()
		logger.Fatal("admin: setting up repositories", err)
	}
	validate, _ := validation.New()

	// start CLI
	cli := commandLine{
		db:       db,
		tenants:  tenant.NewService(repos.Tenants),
		usrRepo:  repos.Users,
		validate: validate,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
