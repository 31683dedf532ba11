// Package trangrp maintains the group of handlers for recording collection
// transactions.
package trangrp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/plastix-network/plastix/business/data/store/tran"
	"github.com/plastix-network/plastix/business/sys/database"
	"github.com/plastix-network/plastix/business/sys/validate"
	"github.com/plastix-network/plastix/business/web/errs"
	"github.com/plastix-network/plastix/foundation/web"
)

// Handlers manages the set of collection transaction endpoints.
type Handlers struct {
	Log       *zap.SugaredLogger
	TranStore tran.Store
}

// Create records a new collection event.
func (h Handlers) Create(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var nt tran.NewTran
	if err := web.Decode(r, &nt); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	trn, err := h.TranStore.Create(ctx, nt, v.Now)
	if err != nil {
		if validate.IsFieldErrors(err) {
			return err
		}
		return fmt.Errorf("creating transaction: %w", err)
	}

	h.Log.Infow("collection recorded", "traceid", v.TraceID, "transaction", trn.ID, "weight_grams", trn.WeightGrams)

	return web.Respond(ctx, w, trn, http.StatusCreated)
}

// QueryByID returns the specified transaction.
func (h Handlers) QueryByID(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tranID, err := validate.CheckID(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	trn, err := h.TranStore.QueryByID(ctx, tranID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return fmt.Errorf("querying transaction %q: %w", tranID, err)
	}

	return web.Respond(ctx, w, trn, http.StatusOK)
}
