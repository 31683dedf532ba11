// Package handlers manages the different versions of the API.
package handlers

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"os"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/plastix-network/plastix/app/services/plastix/handlers/debug/checkgrp"
	v1 "github.com/plastix-network/plastix/app/services/plastix/handlers/v1"
	"github.com/plastix-network/plastix/business/core/fraud"
	"github.com/plastix-network/plastix/business/core/mint"
	"github.com/plastix-network/plastix/business/core/verify"
	"github.com/plastix-network/plastix/business/data/store/batch"
	"github.com/plastix-network/plastix/business/data/store/tran"
	"github.com/plastix-network/plastix/business/web/v1/mid"
	"github.com/plastix-network/plastix/foundation/events"
	"github.com/plastix-network/plastix/foundation/web"
)

// MuxConfig contains all the mandatory systems required by handlers.
type MuxConfig struct {
	Build      string
	Shutdown   chan os.Signal
	Log        *zap.SugaredLogger
	DB         *sqlx.DB
	BatchStore batch.Store
	TranStore  tran.Store
	Verifier   verify.Core
	Fraud      fraud.Core
	Mint       *mint.Core
	Runner     *mint.Runner
	Evts       *events.Events
}

// PublicMux constructs a http.Handler with all application routes defined.
func PublicMux(cfg MuxConfig) http.Handler {

	// Construct the web.App which holds all routes as well as common Middleware.
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Cors("*"),
		mid.Panics(),
	)

	// Accept CORS 'OPTIONS' preflight requests if config has been provided.
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return nil
	}
	app.Handle(http.MethodOptions, "", "/*", h, mid.Cors("*"))

	// Load the v1 routes.
	v1.PublicRoutes(app, v1.Config{
		Build:      cfg.Build,
		Log:        cfg.Log,
		BatchStore: cfg.BatchStore,
		TranStore:  cfg.TranStore,
		Verifier:   cfg.Verifier,
		Fraud:      cfg.Fraud,
		Mint:       cfg.Mint,
		Runner:     cfg.Runner,
		Evts:       cfg.Evts,
	})

	return app
}

// PrivateMux constructs a http.Handler with all operational routes defined.
func PrivateMux(cfg MuxConfig) http.Handler {

	// Construct the web.App which holds all routes as well as common Middleware.
	app := web.NewApp(
		cfg.Shutdown,
		mid.Logger(cfg.Log),
		mid.Errors(cfg.Log),
		mid.Metrics(),
		mid.Panics(),
	)

	// Load the v1 routes.
	v1.PrivateRoutes(app, v1.Config{
		Build: cfg.Build,
		Log:   cfg.Log,
		Mint:  cfg.Mint,
	})

	return app
}

// DebugStandardLibraryMux registers all the debug routes from the standard
// library into a new mux bypassing the use of the DefaultServerMux. Using the
// DefaultServerMux would be a security risk since a dependency could inject a
// handler into our service without us knowing it.
func DebugStandardLibraryMux() *http.ServeMux {
	mux := http.NewServeMux()

	// Register all the standard library debug endpoints.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/debug/vars", expvar.Handler())

	return mux
}

// DebugMux registers all the debug standard library routes and then custom
// debug application routes for the service. This bypasses the use of the
// DefaultServerMux. Using the DefaultServerMux would be a security risk since
// a dependency could inject a handler into our service without us knowing it.
func DebugMux(build string, log *zap.SugaredLogger, db *sqlx.DB) http.Handler {
	mux := DebugStandardLibraryMux()

	// Register debug check endpoints.
	cgh := checkgrp.Handlers{
		Build: build,
		Log:   log,
		DB:    db,
	}
	mux.HandleFunc("/debug/readiness", cgh.Readiness)
	mux.HandleFunc("/debug/liveness", cgh.Liveness)

	return mux
}
