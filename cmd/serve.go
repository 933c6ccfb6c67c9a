package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskhook/config"
	"taskhook/events"
	"taskhook/handlers"
	"taskhook/logging"
	"taskhook/store"
	"taskhook/tasks"
	"taskhook/webhook"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the task API, the webhook endpoints and the browser pages.

Examples:
  STORE_URL=sqlite://tasks.db STORE_KEY=local taskhook serve
  taskhook serve --addr :8080 --config taskhook.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":3000", "HTTP listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	v, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out, closeLog := logging.Setup(cfg.Log)
	defer closeLog()
	logger := logging.New(out, "taskhook")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store.URL, cfg.Store.Key)
	if err != nil {
		return fmt.Errorf("open %s store: %w", store.Backend(cfg.Store.URL), err)
	}
	defer st.Close()

	client := webhook.NewClient(webhook.ClientConfig{
		URL:     cfg.Webhook.URL,
		Secret:  cfg.Webhook.Secret,
		Timeout: cfg.Webhook.Timeout,
		Logger:  logging.New(out, "webhook"),
	})
	config.Watch(v, func(next config.Config) {
		if next.Webhook.URL != client.URL() {
			client.SetURL(next.Webhook.URL)
			logger.Printf("webhook.url reloaded: %s", next.Webhook.URL)
		}
	}, func(err error) {
		logger.Printf("config reload ignored: %v", err)
	})

	hub := events.NewHub(logging.New(out, "events"))
	hub.Start()
	defer hub.Stop()

	var (
		notifier tasks.Notifier = client
		wg       sync.WaitGroup
	)
	if cfg.Webhook.Delivery == config.DeliveryOutbox {
		notifier = webhook.NewOutbox(st, logging.New(out, "outbox"))
		deps := webhook.WorkerDeps{
			Repo:        st,
			Sender:      client,
			Backoff:     webhook.DefaultBackoff(),
			MaxAttempts: cfg.Outbox.MaxAttempts,
		}
		workerCfg := webhook.DefaultWorkerConfig()
		workerCfg.Interval = cfg.Outbox.Interval
		workerCfg.Burst = cfg.Outbox.Batch

		wg.Add(1)
		go func() {
			defer wg.Done()
			webhook.RunWorker(ctx, deps, workerCfg, logging.New(out, "outbox"))
		}()
	}

	router := handlers.NewRouter(handlers.Deps{
		Tasks:   tasks.NewService(st, notifier, hub, logging.New(out, "tasks")),
		Webhook: client,
		Store:   st,
		Events:  hub.Handler,
		Secret:  cfg.Webhook.Secret,
		Logger:  logging.New(out, "http"),
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s (store=%s, delivery=%s)", cfg.HTTP.Addr, store.Backend(cfg.Store.URL), cfg.Webhook.Delivery)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Printf("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown: %v", err)
	}

	stop()
	wg.Wait()
	return serveErr
}
