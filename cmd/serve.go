package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/contextual-novel-translator/internal/config"
	"github.com/MimeLyc/contextual-novel-translator/internal/httpapi"
	"github.com/MimeLyc/contextual-novel-translator/internal/jobs"
	"github.com/MimeLyc/contextual-novel-translator/internal/service"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

var (
	serveAddr    string
	serveUIDir   string
	serveNoCron  bool
	shutdownWait = 10 * time.Second
)

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func initServeCmd() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the job workers and the glossary schedule",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides HTTP_ADDR")
	serveCmd.Flags().StringVar(&serveUIDir, "ui", "", "serve a web UI from this directory")
	serveCmd.Flags().BoolVar(&serveNoCron, "no-cron", false, "do not schedule glossary refreshes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	pool, err := a.pool(ctx)
	if err != nil {
		return err
	}
	orch := a.orchestrator(pool)
	planner := a.planner(pool)

	queue := jobs.NewQueue(a.cfg.System.JobWorkers, a.store)
	queue.Start(service.NewExecutor(orch, planner))
	defer queue.Stop()

	cronExpr := a.settings.GetRuntimeSettings().GlossaryCron
	if serveNoCron {
		cronExpr = ""
	}
	engine := cron.New()
	glossarySched := service.NewGlossaryScheduler(cronExpr, engine, a.store, queue)

	apply := func(next config.RuntimeSettings) error {
		if serveNoCron {
			return nil
		}
		return glossarySched.Reschedule(ctx, next.GlossaryCron)
	}

	srv := httpapi.NewServer(a.store, orch, queue,
		httpapi.WithPlanner(planner),
		httpapi.WithPool(pool),
		httpapi.WithRuntimeSettingsStore(a.settings),
		httpapi.WithRuntimeSettingsApplier(apply),
		httpapi.WithUI(serveUIDir, serveUIDir != ""),
	)

	addr := a.cfg.System.HTTPAddr
	if serveAddr != "" {
		addr = serveAddr
	}
	return runWithComponents(ctx, addr, glossarySched, engine, srv)
}

// runWithComponents starts the schedule and the HTTP server and blocks until
// ctx is done or the server fails.
func runWithComponents(ctx context.Context, addr string, sched scheduler, engine cronEngine, srv httpServer) error {
	if err := sched.Schedule(ctx); err != nil {
		return err
	}
	engine.Start()
	defer func() {
		<-engine.Stop().Done()
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP API listening on %s", addr)
		errCh <- srv.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("HTTP API stopped")
	return nil
}
