package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/config"
)

const version = "1.0.0"

func main() {
	root := &cobra.Command{
		Use:           "easymo-router",
		Short:         "WhatsApp message router for easyMO",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the webhook server and background jobs",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "learn",
			Short: "Run one preference learning pass and exit",
			RunE:  runLearn,
		},
		&cobra.Command{
			Use:   "templates",
			Short: "Print the loaded template catalog",
			RunE:  runTemplates,
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	}
	return zcfg.Build()
}

func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, fmt.Errorf("config: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return cfg, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	a.learner.Start(ctx)
	a.janitor.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info("easyMO router starting",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.String("storage", cfg.Database.Driver),
			zap.String("delivery", cfg.DeliveryProvider),
			zap.String("templates", a.registry.Version()))
		errCh <- a.app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("gracefully shutting down")
	a.learner.Stop()
	a.janitor.Stop()
	return a.app.ShutdownWithTimeout(10 * time.Second)
}

func runLearn(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	learner := newLearner(cfg, store, log, nil)
	sum, err := learner.RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "senders: %d, preferences changed: %d\n", sum.Senders, sum.Updated)
	return nil
}

func runTemplates(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "catalog version %s\n\n", registry.Version())
	for _, t := range registry.Templates() {
		status := "approved"
		if !t.Approved {
			status = "pending"
		}
		fmt.Fprintf(out, "%-20s %-10s %-9s %s\n", t.Name, t.Domain, status, t.ContentSID)
	}
	return nil
}
