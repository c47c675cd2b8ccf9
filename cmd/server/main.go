package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/rising-multiplier/internal/config"
	"github.com/DoyleJ11/rising-multiplier/internal/engine"
	"github.com/DoyleJ11/rising-multiplier/internal/history"
	"github.com/DoyleJ11/rising-multiplier/internal/httpapi"
	"github.com/DoyleJ11/rising-multiplier/internal/hub"
	"github.com/DoyleJ11/rising-multiplier/internal/metrics"
	"github.com/DoyleJ11/rising-multiplier/internal/round"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	g, gctx := errgroup.WithContext(ctx)

	var (
		recorder round.Recorder
		lister   httpapi.RoundLister
	)
	if cfg.DatabaseURL != "" {
		store, openErr := history.Open(cfg.DatabaseURL)
		if openErr != nil {
			return openErr
		}
		defer func() { err = multierr.Append(err, store.Close()) }()

		journal := history.NewJournal(store, 256, log.Named("journal"))
		g.Go(func() error { return journal.Run(gctx) })
		recorder, lister = journal, store
		log.Info("round journal enabled")
	}

	h := hub.NewHub(gctx, m, log.Named("hub"))

	t := cfg.Tuning
	ledger := engine.NewLedger(decimal.NewFromFloat(t.StartingBalance))
	for i := 1; i <= t.AutoPlayers; i++ {
		ledger.AddSynthetic(fmt.Sprintf("AutoPlayer%d", i))
	}

	machine := round.NewMachine(round.MachineConfig{
		Ledger: ledger,
		Growth: t.Growth,
		Rules: round.Rules{
			FreezeProbability: t.FreezeProbability,
			MaxTicks:          t.MaxTicks,
			AutoMaxTarget:     t.AutoMaxTarget,
		},
		Speed:     t.DefaultSpeed,
		RNG:       engine.DefaultRNG(),
		Publisher: h,
		Recorder:  recorder,
		Metrics:   m,
		Logger:    log.Named("round"),
	})
	rd := round.NewRound(gctx, machine, round.Config{
		TickInterval: t.TickInterval,
		Subscriber:   h,
		Metrics:      m,
		Logger:       log.Named("round"),
	})

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Round:          rd,
			Hub:            h,
			Metrics:        m,
			History:        lister,
			Logger:         log.Named("http"),
			AllowedOrigins: cfg.AllowedOrigins,
			WSRateLimit:    cfg.WSRateLimit,
			WSRateBurst:    cfg.WSRateBurst,
		}),
	}

	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.Int("auto_players", t.AutoPlayers))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		rd.Shutdown()
		h.Shutdown()
		return err
	})

	return g.Wait()
}
