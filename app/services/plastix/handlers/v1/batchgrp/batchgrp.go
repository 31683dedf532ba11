// Package batchgrp maintains the group of handlers for batch access,
// verification and minting.
package batchgrp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/plastix-network/plastix/business/core/fraud"
	"github.com/plastix-network/plastix/business/core/mint"
	"github.com/plastix-network/plastix/business/core/verify"
	"github.com/plastix-network/plastix/business/data/store/batch"
	"github.com/plastix-network/plastix/business/sys/database"
	"github.com/plastix-network/plastix/business/sys/validate"
	"github.com/plastix-network/plastix/business/web/errs"
	"github.com/plastix-network/plastix/foundation/events"
	"github.com/plastix-network/plastix/foundation/web"
)

// Handlers manages the set of batch endpoints.
type Handlers struct {
	Log        *zap.SugaredLogger
	BatchStore batch.Store
	Verifier   verify.Core
	Fraud      fraud.Core
	Mint       *mint.Core
	Runner     *mint.Runner
	Evts       *events.Events
	WS         websocket.Upgrader
}

// Create bundles a set of existing collection transactions into a new batch.
func (h Handlers) Create(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var nb batch.NewBatch
	if err := web.Decode(r, &nb); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	bat, err := h.BatchStore.Create(ctx, nb, v.Now)
	if err != nil {
		if validate.IsFieldErrors(err) {
			return err
		}
		return fmt.Errorf("creating batch: %w", err)
	}

	return web.Respond(ctx, w, bat, http.StatusCreated)
}

// QueryByID returns the specified batch.
func (h Handlers) QueryByID(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	batchID, err := validate.CheckID(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	bat, err := h.BatchStore.QueryByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return fmt.Errorf("querying batch %q: %w", batchID, err)
	}

	return web.Respond(ctx, w, bat, http.StatusOK)
}

// Verify classifies a batch against the recycler's measured weight and, on
// approval, hands the batch to the mint runner. The response never waits on
// chain confirmation; mint progress is observable via the mint-status
// endpoint.
func (h Handlers) Verify(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req verifyRequest
	if err := web.Decode(r, &req); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	batchID, err := validate.CheckID(req.BatchID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	recyclerID, err := validate.CheckID(req.RecyclerID)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	result := h.Verifier.Verify(ctx, verify.Request{
		BatchID:             batchID,
		RecyclerID:          recyclerID,
		VerifiedWeightGrams: req.VerifiedWeightTotal,
		ProofHash:           req.IPFSProofHash,
		Notes:               req.VerificationNotes,
	}, v.Now)

	report := h.Fraud.Evaluate(ctx, batchID)

	resp := verifyResponse{
		BatchID:             result.BatchID,
		Classification:      string(result.Classification),
		OriginalWeightGrams: result.OriginalWeightGrams,
		VerifiedWeightGrams: result.VerifiedWeightGrams,
		WeightDiffPct:       result.WeightDiffPct,
		Message:             result.Message,
		Allocation:          result.Allocation,
		FraudReport:         report,
	}

	// The handler's responsibility ends at the enqueue; the runner owns the
	// mint from here.
	if result.Classification == verify.Approved {
		resp.MintQueued = h.Runner.Enqueue(batchID)
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// MintStatus returns the persisted mint state of a batch plus, when a
// transaction was broadcast and the chain client is configured, the live
// receipt view.
func (h Handlers) MintStatus(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	batchID, err := validate.CheckID(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	bat, err := h.BatchStore.QueryByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return fmt.Errorf("querying batch %q: %w", batchID, err)
	}

	resp := mintStatusResponse{
		BatchID:     bat.ID,
		MintStatus:  bat.MintStatus,
		TxHash:      bat.TxHash,
		BlockNumber: bat.BlockNumber,
		RetryCount:  bat.RetryCount,
		LastAttempt: bat.LastAttempt,
		LastError:   bat.LastError,
	}

	if bat.TxHash != nil {
		if status, err := h.Mint.Status(ctx, *bat.TxHash); err == nil {
			resp.OnChain = &onChain{
				Confirmed:   status.Confirmed,
				BlockNumber: status.BlockNumber,
				GasUsed:     status.GasUsed,
			}
		}
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// RetryMint re-triggers minting for a failed batch. Eligibility is enforced
// by the orchestrator's conditional claim when the trigger runs.
func (h Handlers) RetryMint(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	batchID, err := validate.CheckID(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if _, err := h.BatchStore.QueryByID(ctx, batchID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return fmt.Errorf("querying batch %q: %w", batchID, err)
	}

	queued := h.Runner.Enqueue(batchID)

	resp := struct {
		BatchID string `json:"batch_id"`
		Queued  bool   `json:"queued"`
	}{
		BatchID: batchID.String(),
		Queued:  queued,
	}

	return web.Respond(ctx, w, resp, http.StatusAccepted)
}

// ContractInfo describes the rewards contract the service mints against.
func (h Handlers) ContractInfo(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	info, err := h.Mint.ContractInfo()
	if err != nil {
		return errs.NewTrusted(err, http.StatusServiceUnavailable)
	}

	return web.Respond(ctx, w, info, http.StatusOK)
}

// FraudReport returns the advisory risk assessment for a batch.
func (h Handlers) FraudReport(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	batchID, err := validate.CheckID(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	report := h.Fraud.Evaluate(ctx, batchID)

	return web.Respond(ctx, w, report, http.StatusOK)
}

// Audit returns the verification audit trail for a batch, oldest first.
func (h Handlers) Audit(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	batchID, err := validate.CheckID(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	auds, err := h.BatchStore.QueryAudit(ctx, batchID)
	if err != nil {
		return fmt.Errorf("querying audit for batch %q: %w", batchID, err)
	}

	if len(auds) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	return web.Respond(ctx, w, auds, http.StatusOK)
}

// Events handles a web socket to provide mint lifecycle events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(ev.String())); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
