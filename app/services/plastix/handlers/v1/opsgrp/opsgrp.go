// Package opsgrp maintains the group of private operational handlers.
package opsgrp

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/plastix-network/plastix/business/core/mint"
	"github.com/plastix-network/plastix/business/web/errs"
	"github.com/plastix-network/plastix/foundation/web"
)

// Handlers manages the set of operational endpoints.
type Handlers struct {
	Build string
	Log   *zap.SugaredLogger
	Mint  *mint.Core
}

// RetrySweep runs one failed-batch sweep synchronously and reports the
// counts. The scheduled sweep runs the same code path.
func (h Handlers) RetrySweep(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	sweep, err := h.Mint.RetryFailedBatches(ctx)
	if err != nil {
		if errors.Is(err, mint.ErrNotConfigured) {
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		}
		return err
	}

	return web.Respond(ctx, w, sweep, http.StatusOK)
}

// Status reports the service build and whether the chain client is wired.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	_, err := h.Mint.ContractInfo()

	resp := struct {
		Build           string `json:"build"`
		ChainConfigured bool   `json:"chain_configured"`
	}{
		Build:           h.Build,
		ChainConfigured: err == nil,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
