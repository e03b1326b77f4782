package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/hellotasks/internal/app"
	"github.com/dropDatabas3/hellotasks/internal/config"
	"github.com/dropDatabas3/hellotasks/internal/observability/logger"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath = os.Getenv("CONFIG_PATH")
		envFile    = ".env"
		addr       string
	)

	root := &cobra.Command{
		Use:           "tasks-api",
		Short:         "API de tareas con autenticación bearer contra el JWKS del identity provider",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// .env es opcional: en contenedores todo viene del entorno.
			if envFile != "" {
				_ = godotenv.Load(envFile)
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "config: %v\n", err)
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.Log.Level,
				ServiceName: cfg.Log.ServiceName,
				Version:     os.Getenv("SERVICE_VERSION"),
			})
			defer func() { _ = logger.Sync() }()

			return run(cmd.Context(), cfg)
		},
	}

	root.Flags().StringVar(&configPath, "config", configPath, "ruta a config.yaml (env CONFIG_PATH; vacío = solo env)")
	root.Flags().StringVar(&envFile, "env-file", envFile, "ruta a .env (si existe, se carga)")
	root.Flags().StringVar(&addr, "addr", "", "dirección de escucha (pisa SERVER_ADDR / PORT)")
	return root
}

func run(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.L()
	ctx = logger.ToContext(ctx, log)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Error("startup failed", logger.Err(err))
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("cleanup failed", logger.Err(err))
		}
	}()

	a.Warmup(ctx)

	if err := a.Run(ctx); err != nil {
		log.Error("server stopped with error", logger.Err(err))
		return err
	}
	log.Info("server stopped")
	return nil
}
