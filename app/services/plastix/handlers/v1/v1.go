// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/plastix-network/plastix/app/services/plastix/handlers/v1/batchgrp"
	"github.com/plastix-network/plastix/app/services/plastix/handlers/v1/opsgrp"
	"github.com/plastix-network/plastix/app/services/plastix/handlers/v1/trangrp"
	"github.com/plastix-network/plastix/business/core/fraud"
	"github.com/plastix-network/plastix/business/core/mint"
	"github.com/plastix-network/plastix/business/core/verify"
	"github.com/plastix-network/plastix/business/data/store/batch"
	"github.com/plastix-network/plastix/business/data/store/tran"
	"github.com/plastix-network/plastix/foundation/events"
	"github.com/plastix-network/plastix/foundation/web"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Build      string
	Log        *zap.SugaredLogger
	BatchStore batch.Store
	TranStore  tran.Store
	Verifier   verify.Core
	Fraud      fraud.Core
	Mint       *mint.Core
	Runner     *mint.Runner
	Evts       *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	tgh := trangrp.Handlers{
		Log:       cfg.Log,
		TranStore: cfg.TranStore,
	}

	app.Handle(http.MethodPost, version, "/tx/add", tgh.Create)
	app.Handle(http.MethodGet, version, "/tx/:id", tgh.QueryByID)

	bgh := batchgrp.Handlers{
		Log:        cfg.Log,
		BatchStore: cfg.BatchStore,
		Verifier:   cfg.Verifier,
		Fraud:      cfg.Fraud,
		Mint:       cfg.Mint,
		Runner:     cfg.Runner,
		Evts:       cfg.Evts,
	}

	app.Handle(http.MethodPost, version, "/batch/create", bgh.Create)
	app.Handle(http.MethodPost, version, "/batch/verify", bgh.Verify)
	app.Handle(http.MethodGet, version, "/batch/contract-info", bgh.ContractInfo)
	app.Handle(http.MethodGet, version, "/batch/:id", bgh.QueryByID)
	app.Handle(http.MethodGet, version, "/batch/:id/mint-status", bgh.MintStatus)
	app.Handle(http.MethodPost, version, "/batch/:id/retry-mint", bgh.RetryMint)
	app.Handle(http.MethodGet, version, "/batch/:id/fraud-report", bgh.FraudReport)
	app.Handle(http.MethodGet, version, "/batch/:id/audit", bgh.Audit)
	app.Handle(http.MethodGet, version, "/events", bgh.Events)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	ogh := opsgrp.Handlers{
		Build: cfg.Build,
		Log:   cfg.Log,
		Mint:  cfg.Mint,
	}

	app.Handle(http.MethodPost, version, "/ops/retry-sweep", ogh.RetrySweep)
	app.Handle(http.MethodGet, version, "/ops/status", ogh.Status)
}
