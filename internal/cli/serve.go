package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evidlabel/did/internal/config"
	"github.com/evidlabel/did/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var flagServeEntities string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the anonymization HTTP API",
	Long: "Serve exposes extraction and anonymization over HTTP. The entity\n" +
		"configuration given with --entities is loaded at startup and shared by\n" +
		"all requests; newly minted groups stay visible for the lifetime of the\n" +
		"process.",
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&flagServeEntities, "entities", "e", "", "entity configuration file to serve from")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		exitCode = ExitConfigError
		return err
	}
	defer log.Sync()

	srv, err := server.New(cfg, log, flagServeEntities)
	if err != nil {
		exitCode = ExitRuntimeError
		return err
	}

	// Hot reload only reports; applying a changed config requires a restart.
	config.Watch(cfg, func(newCfg *config.Config) {
		log.Info("Configuration file changed; restart to apply")
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
		exitCode = ExitRuntimeError
		return err
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			exitCode = ExitRuntimeError
			return err
		}

		log.Info("Server shutdown complete")
	}

	return nil
}
