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

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/braidworks/braid/config"
	"github.com/braidworks/braid/engine"
	"github.com/braidworks/braid/eventlog"
	"github.com/braidworks/braid/eventlog/sqlite"
	"github.com/braidworks/braid/interceptor"
	"github.com/braidworks/braid/logging"
	"github.com/braidworks/braid/model"
	"github.com/braidworks/braid/model/anthropic"
	"github.com/braidworks/braid/model/openai"
	"github.com/braidworks/braid/server"
	"github.com/braidworks/braid/task"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the braid HTTP server",
	Long: `Starts the braid engine in server mode, exposing runs over a JSON API
with SSE and websocket event streams.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cfg config.Config) error {
	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, false)

	log, err := openLog(cfg.Store)
	if err != nil {
		return err
	}

	m, err := buildModel(cfg.Model)
	if err != nil {
		return err
	}

	eng := engine.New(
		engine.WithLogger(logger),
		engine.WithLog(log),
		engine.WithMaxModelCalls(cfg.Run.MaxModelCalls),
	)
	defer eng.Close()

	eng.Register(task.New(cfg.Task.Name, m, func(o *task.Options) {
		o.Instructions = cfg.Task.Instructions
		o.Stream = true
		if logging.ParseLevel(cfg.Log.Level) == logging.LogLevelDebug {
			o.StepInterceptors = []interceptor.StepInterceptor{interceptor.Tracing()}
		}
	}))

	// Stream handlers inherit this context so SSE and websocket followers
	// unblock when the process shuts down.
	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.New(eng,
			server.WithLogger(logger),
			server.WithBaseContext(baseCtx),
		).Handler(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "task", cfg.Task.Name, "model", cfg.Model.Provider)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server: %w", err)

	case <-baseCtx.Done():
		logger.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			if closeErr := srv.Close(); closeErr != nil {
				return errors.Join(err, closeErr)
			}
			return err
		}
		logger.Info("server stopped")
		return nil
	}
}

// openLog selects the event log backend. A store path means runs survive
// restarts and become available to the replay command.
func openLog(cfg config.StoreConfig) (eventlog.Log, error) {
	if cfg.Path == "" {
		return eventlog.NewInMemory(), nil
	}
	log, err := sqlite.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return log, nil
}

// buildModel constructs the model adapter named by the configuration. The
// mock provider needs no credentials and drives the server in tests and
// demos.
func buildModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openai.New(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
		}), nil
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
		}), nil
	case "mock", "":
		return model.NewMockModel("mock-model"), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}
