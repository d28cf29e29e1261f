package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"surveycore/internal/adapters/httpapi"
	"surveycore/internal/adapters/inbox"
	"surveycore/internal/adapters/reports"
	"surveycore/internal/blob"
	"surveycore/internal/core"
	"surveycore/internal/importer"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, inboxDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, report worker, autosave loop and inbox watcher",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			if inboxDir != "" {
				a.cfg.Inbox.Dir = inboxDir
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().StringVar(&inboxDir, "inbox", "", "directory to watch for survey files (overrides inbox.dir)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	log := a.logger.Logger
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := core.NewPrometheusRecorder(reg)
	if err != nil {
		return err
	}

	svc, err := a.openService(ctx, core.WithMetrics(recorder))
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(context.Background()); err != nil {
			log.Error("close storage", "error", err)
		}
	}()
	if err := a.applyAutosaveInterval(ctx, svc); err != nil {
		return err
	}

	blobs, err := blob.Open(ctx, a.cfg.BlobOptions())
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}
	worker := reports.NewWorker(svc, blobs,
		reports.WithLogger(log),
		reports.WithAuditLogger(reports.SlogAuditLog{Logger: log.With("component", "reports")}),
	)

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           (&httpapi.Server{Service: svc, Reports: worker, Metrics: reg, Logger: log}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", "addr", srv.Addr, "storage", svc.StateDriver(), "blob", blobs.Driver())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout.Std())
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return worker.Run(ctx) })
	g.Go(func() error { return svc.RunAutosave(ctx) })
	if a.cfg.Inbox.Dir != "" {
		w, err := inbox.New(a.cfg.Inbox.Dir, svc,
			inbox.WithLogger(log.With("component", "inbox")),
			inbox.WithImportOptions(importer.Options{
				Source: importer.SourceOptions{HasHeader: true},
				Commit: importer.CommitOptions{OverwriteExisting: a.cfg.Inbox.Overwrite},
			}),
		)
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(ctx) })
	}

	err = g.Wait()
	log.Info("shutdown complete")
	return err
}

// applyAutosaveInterval copies a configured interval into the stored
// settings when it differs.
func (a *app) applyAutosaveInterval(ctx context.Context, svc *core.Service) error {
	seconds := int(a.cfg.Autosave.Std() / time.Second)
	if seconds <= 0 || seconds == svc.Settings().Storage.AutoSaveInterval {
		return nil
	}
	_, err := svc.SetSetting(ctx, core.SettingAutoSaveInterval, seconds)
	return err
}
