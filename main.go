package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"churnguard/config"
	chttp "churnguard/http"
	"churnguard/logging"
	"churnguard/service"
)

var version = "dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "churnguard",
		Short:        "Customer churn prediction service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $"+config.EnvPath+" or "+config.DefaultPath+")")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Train or restore the model and serve predictions over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

func serve(parent context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load config
	path := config.ResolvePath(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Logger
	logger, level, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	go func() {
		err := config.Watch(ctx, path, logger.Named("config"), func(next *config.Config) {
			if err := logging.SetLevel(level, next.Log.Level); err != nil {
				logger.Warn("ignoring log level", zap.String("level", next.Log.Level), zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("config watcher stopped", zap.Error(err))
		}
	}()

	// 3. Model: restore or train
	svc, store, err := service.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := svc.Start(ctx); err != nil {
		if !cfg.Model.AllowDegraded {
			logger.Error("model unavailable", zap.Error(err))
			return err
		}
		logger.Error("starting without a model", zap.Error(err))
	}

	// 4. HTTP server
	server := chttp.NewServer(chttp.ServerConfigFrom(cfg), svc, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 5. Graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
	return nil
}
