package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/services/backend"
	emailsvc "github.com/trezcool/masomo/portal/services/email"
	logsvc "github.com/trezcool/masomo/portal/services/logger"
	"github.com/trezcool/masomo/portal/storage/database"
	inmemdb "github.com/trezcool/masomo/portal/storage/database/inmem"
	sqlxrepos "github.com/trezcool/masomo/portal/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	var db *sqlx.DB
	cli := commandLine{
		conf:   conf,
		logger: logger,
		client: backend.NewClient(conf, nil),
		mailer: emailsvc.NewService(conf),
		stdout: os.Stdout,
		store: func(ctx context.Context) (*sql.DB, enrollment.Journal, error) {
			if conf.Database.Engine == "inmem" {
				return nil, inmemdb.NewJournal(inmemdb.Open()), nil
			}
			var err error
			if db, err = database.Open(ctx, conf); err != nil {
				return nil, nil, err
			}
			return db.DB, sqlxrepos.NewJournal(db), nil
		},
	}

	err := cli.run(context.Background(), os.Args)
	if db != nil {
		_ = db.Close()
	}
	logger.Flush()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}
