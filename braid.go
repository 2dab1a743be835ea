// Package braid provides a high-level façade over the engine and the shared
// services (event log, metrics, logging) for executing hierarchical,
// tool-using agent tasks. Most applications interact with this package by:
//  1. Creating a Braid via New() (optionally overriding the in-memory defaults)
//  2. Registering one or more tasks (see the task package)
//  3. Starting runs asynchronously (Start) or synchronously (Run)
//
// The façade delegates orchestration to engine.Engine while keeping setup
// concise. All defaults are safe for local development and testing;
// production deployments typically supply a persistent event log and a
// structured logger.
package braid

import (
	"context"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/engine"
	"github.com/braidworks/braid/eventlog"
	"github.com/braidworks/braid/logging"
	"github.com/braidworks/braid/runner"
	"github.com/braidworks/braid/telemetry"
)

// Version is the braid release version.
const Version = "0.1.0"

// Options configures the Braid instance.
type Options struct {
	// MaxModelCalls limits the number of model calls per run. 0 or less
	// means no budget.
	MaxModelCalls int

	// Log persists run event streams (defaults to in-memory if nil).
	Log eventlog.Log

	// Metrics receives runtime instrumentation (defaults to a fresh private
	// registry if nil).
	Metrics *telemetry.Metrics

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Braid is the high-level façade aggregating the underlying engine and
// services.
type Braid struct {
	engine *engine.Engine
}

// New creates a Braid instance with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Braid {
	opts := Options{
		MaxModelCalls: 100,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	eng := engine.New(func(o *engine.Options) {
		o.MaxModelCalls = opts.MaxModelCalls
		o.Log = opts.Log
		o.Metrics = opts.Metrics
		o.Logger = opts.Logger
	})

	return &Braid{engine: eng}
}

// Register adds a task to the underlying engine's registry.
func (b *Braid) Register(t runner.Target) { b.engine.Register(t) }

// Start launches the named task asynchronously and returns the run handle:
// consume its event stream for real-time progress, Wait for the final
// output, Cancel to abort.
func (b *Braid) Start(ctx context.Context, taskName string, input core.Message) (*runner.Run, error) {
	return b.engine.Start(ctx, taskName, input)
}

// Run is a synchronous helper that executes the named task to completion and
// returns its final output message.
func (b *Braid) Run(ctx context.Context, taskName string, input core.Message) (core.Message, error) {
	return b.engine.Run(ctx, taskName, input)
}

// Engine exposes the underlying engine for advanced wiring (HTTP serving,
// replay, direct registry access).
func (b *Braid) Engine() *engine.Engine { return b.engine }

// Close releases the instance's resources. Active runs are not interrupted.
func (b *Braid) Close() error { return b.engine.Close() }
