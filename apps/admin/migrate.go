package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

var errNoDatabase = errors.New("migrations need a SQL database engine")

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	db, _, err := cli.store(ctx)
	if err != nil {
		return err
	}
	if db == nil {
		return errNoDatabase
	}
	return gooseRunFunc(ctx, db, args[0], args[1:]...)
}
