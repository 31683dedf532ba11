package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/plastix-network/plastix/app/services/plastix/handlers"
	"github.com/plastix-network/plastix/business/core/fraud"
	"github.com/plastix-network/plastix/business/core/mint"
	"github.com/plastix-network/plastix/business/core/reward"
	"github.com/plastix-network/plastix/business/core/verify"
	"github.com/plastix-network/plastix/business/data/store/batch"
	"github.com/plastix-network/plastix/business/data/store/tran"
	"github.com/plastix-network/plastix/business/data/store/user"
	"github.com/plastix-network/plastix/business/sys/database"
	"github.com/plastix-network/plastix/foundation/chain"
	"github.com/plastix-network/plastix/foundation/events"
	"github.com/plastix-network/plastix/foundation/logger"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("PLASTIX")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		}
		DB struct {
			User         string `conf:"default:postgres"`
			Password     string `conf:"default:postgres,mask"`
			Host         string `conf:"default:localhost"`
			Name         string `conf:"default:plastix"`
			MaxIdleConns int    `conf:"default:2"`
			MaxOpenConns int    `conf:"default:0"`
			DisableTLS   bool   `conf:"default:true"`
		}
		Chain struct {
			RPCURL          string `conf:""`
			PrivateKeyHex   string `conf:",mask"`
			ContractAddress string `conf:""`
			Confirmations   int    `conf:"default:2"`
			GasBufferPct    int    `conf:"default:20"`
		}
		Verify struct {
			TolerancePct float64 `conf:"default:5"`
			RejectPct    float64 `conf:"default:20"`
		}
		Mint struct {
			MaxRetries    int           `conf:"default:3"`
			RetryDelay    time.Duration `conf:"default:5s"`
			SweepLimit    int           `conf:"default:10"`
			SweepCooldown time.Duration `conf:"default:1h"`
			SweepSchedule string        `conf:"default:@hourly"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "PLASTIX"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Database Support

	log.Infow("startup", "status", "initializing database support", "host", cfg.DB.Host)

	db, err := database.Open(database.Config{
		User:         cfg.DB.User,
		Password:     cfg.DB.Password,
		Host:         cfg.DB.Host,
		Name:         cfg.DB.Name,
		MaxIdleConns: cfg.DB.MaxIdleConns,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		DisableTLS:   cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Infow("shutdown", "status", "stopping database support", "host", cfg.DB.Host)
		db.Close()
	}()

	// =========================================================================
	// Chain Support

	// The service can run without a chain client: verification still works,
	// and every mint trigger fails up front as "not configured". The client
	// is only constructed when an RPC endpoint is configured.
	var submitter mint.Submitter
	if cfg.Chain.RPCURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := chain.New(ctx, chain.Config{
			RPCURL:          cfg.Chain.RPCURL,
			PrivateKeyHex:   cfg.Chain.PrivateKeyHex,
			ContractAddress: cfg.Chain.ContractAddress,
			Confirmations:   cfg.Chain.Confirmations,
			GasBufferPct:    cfg.Chain.GasBufferPct,
		})
		if err != nil {
			log.Errorw("startup", "status", "chain client unavailable, minting disabled", "ERROR", err)
		} else {
			log.Infow("startup", "status", "chain client initialized", "contract", client.Info().ContractAddress)
			submitter = client
			defer client.Shutdown()
		}
	} else {
		log.Infow("startup", "status", "no chain rpc configured, minting disabled")
	}

	// =========================================================================
	// Core Support

	batchStore := batch.NewStore(log, db)
	tranStore := tran.NewStore(log, db)
	userStore := user.NewStore(log, db)

	// Mint lifecycle messages go to the logs and to any websocket client
	// connected through the events package.
	evts := events.New()
	ev := func(batchID uuid.UUID, stage string, format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		log.Infow(msg, "batch", batchID, "stage", stage)
		evts.Send(events.Event{
			Batch:   batchID.String(),
			Stage:   stage,
			Message: msg,
			At:      time.Now().UTC(),
		})
	}

	verifier := verify.NewCore(log, batchStore, tranStore, verify.Policy{
		TolerancePct: cfg.Verify.TolerancePct,
		RejectPct:    cfg.Verify.RejectPct,
	}, reward.DefaultPolicy())

	fraudCore := fraud.NewCore(log, tranStore)

	mintCore := mint.NewCore(log, submitter, batchStore, userStore, mint.Policy{
		MaxRetries:    cfg.Mint.MaxRetries,
		RetryDelay:    cfg.Mint.RetryDelay,
		SweepLimit:    cfg.Mint.SweepLimit,
		SweepCooldown: cfg.Mint.SweepCooldown,
	}, ev)

	// The runner owns the goroutine that executes mint triggers handed off
	// by the verification endpoint.
	runner := mint.NewRunner(log, mintCore)
	runner.Run()
	defer runner.Shutdown()

	// =========================================================================
	// Retry Sweep Support

	// Failed batches past their cooldown are retried on a schedule. The
	// sweep only makes sense with a chain client available.
	if submitter != nil {
		sched := cron.New()
		if _, err := sched.AddFunc(cfg.Mint.SweepSchedule, func() {
			if _, err := mintCore.RetryFailedBatches(context.Background()); err != nil {
				log.Errorw("retry sweep", "ERROR", err)
			}
		}); err != nil {
			return fmt.Errorf("scheduling retry sweep: %w", err)
		}
		sched.Start()
		defer sched.Stop()

		log.Infow("startup", "status", "retry sweep scheduled", "schedule", cfg.Mint.SweepSchedule)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.
	debugMux := handlers.DebugMux(build, log, db)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	muxCfg := handlers.MuxConfig{
		Build:      build,
		Shutdown:   shutdown,
		Log:        log,
		DB:         db,
		BatchStore: batchStore,
		TranStore:  tranStore,
		Verifier:   verifier,
		Fraud:      fraudCore,
		Mint:       mintCore,
		Runner:     runner,
		Evts:       evts,
	}

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      handlers.PublicMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	// Construct a server to service the requests against the mux.
	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      handlers.PrivateMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
