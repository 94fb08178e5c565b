package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	echoweb "github.com/trezcool/masomo/portal/apps/web/echo"
	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/enrollment"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/user"
	"github.com/trezcool/masomo/portal/services/backend"
	logsvc "github.com/trezcool/masomo/portal/services/logger"
	"github.com/trezcool/masomo/portal/services/payment"
	"github.com/trezcool/masomo/portal/storage/database"
	inmemdb "github.com/trezcool/masomo/portal/storage/database/inmem"
	sqlxrepos "github.com/trezcool/masomo/portal/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "WEB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	defer logger.Flush()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug && conf.RollbarToken != "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// set up the provisional enrollments journal
	journal, closeJournal, err := setUpJournal(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = closeJournal(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client := backend.NewClient(conf, backend.NewMetrics(registry))
	sessions := session.NewManager(client, conf.Server.SessionCacheTTL)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("payment").Set(conf.Payment.Provider)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Checkout Sweeper

	if conf.Backend.ServiceToken == "" {
		logger.Warn("backend service token not set: abandoned checkouts will not be swept")
	} else {
		svc := client.WithToken(conf.Backend.ServiceToken)
		gateway, err := payment.NewGateway(conf, svc)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up payment gateway: %v", err), err)
		}
		sweeper := &enrollment.Sweeper{
			Journal:      journal,
			Backend:      svc,
			Gateway:      gateway,
			Logger:       logger,
			AbandonAfter: conf.Checkout.AbandonAfter,
		}
		go sweeper.Run(ctx, conf.Checkout.SweepInterval)
	}

	// =========================================================================
	// Start Web Service

	server := echoweb.NewServer(
		echoweb.ServerDeps{
			Conf:     conf,
			Logger:   logger,
			Backend:  client,
			Sessions: sessions,
			Journal:  journal,
			Gateway: func(c *backend.Client) (enrollment.Gateway, error) {
				return payment.NewGateway(conf, c)
			},
			Validate:   validate,
			Translator: translator,
			Registry:   registry,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		cancel() // stop the sweeper

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpJournal opens the journal of the configured engine. The in-memory
// engine loses pending checkouts on restart and is meant for development.
func setUpJournal(ctx context.Context, conf *core.Config) (enrollment.Journal, func() error, error) {
	if conf.Database.Engine == "inmem" {
		return inmemdb.NewJournal(inmemdb.Open()), func() error { return nil }, nil
	}

	db, err := setUpDB(ctx, conf)
	if err != nil {
		return nil, nil, err
	}
	return sqlxrepos.NewJournal(db), db.Close, nil
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
