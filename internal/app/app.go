// Package app implements the application layer for udpbd-vexfat.
package app

import (
	"context"

	"go.trai.ch/udpbd-vexfat/internal/core/domain"
	"go.trai.ch/udpbd-vexfat/internal/core/ports"
	"go.trai.ch/udpbd-vexfat/internal/engine/pipeline"
	"go.trai.ch/udpbd-vexfat/internal/engine/server"
	"go.trai.ch/zerr"
)

// App exposes the two top-level operations: serving a disc image over
// UDPBD and running the release pipeline for a tag.
type App struct {
	logger    ports.Logger
	loader    ports.ConfigLoader
	executor  ports.Executor
	hasher    ports.Hasher
	cache     ports.CacheStore
	results   ports.ResultStore
	toolchain ports.ToolchainInstaller
	verifier  ports.Verifier
	publisher ports.Publisher
	tracer    ports.Tracer
}

// New creates a new App instance.
func New(
	logger ports.Logger,
	loader ports.ConfigLoader,
	executor ports.Executor,
	hasher ports.Hasher,
	cache ports.CacheStore,
	results ports.ResultStore,
	toolchain ports.ToolchainInstaller,
	verifier ports.Verifier,
	publisher ports.Publisher,
	tracer ports.Tracer,
) *App {
	return &App{
		logger:    logger,
		loader:    loader,
		executor:  executor,
		hasher:    hasher,
		cache:     cache,
		results:   results,
		toolchain: toolchain,
		verifier:  verifier,
		publisher: publisher,
		tracer:    tracer,
	}
}

// ServeOptions configures the UDPBD server.
type ServeOptions struct {
	// File is the disc image exposed under DVD/.
	File string
	// Prefix optionally nests the OPL layout in a named directory.
	Prefix string
	// Addr is the UDP listen address; empty means the UDPBD default.
	Addr string
}

// Serve exposes the given file as a virtual exFAT block device until
// the context is cancelled.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	if opts.File == "" {
		return zerr.New("no file to serve")
	}
	if opts.Addr == "" {
		opts.Addr = server.DefaultAddr
	}

	dev, err := server.NewOPLDevice(a.logger, opts.File, opts.Prefix)
	if err != nil {
		return zerr.Wrap(err, "failed to build virtual volume")
	}

	srv, err := server.New(a.logger, dev, opts.Addr)
	if err != nil {
		return zerr.Wrap(err, "failed to start server")
	}

	return srv.Run(ctx)
}

// Release runs the release pipeline for tag using the plan at
// configPath.
func (a *App) Release(ctx context.Context, configPath string, tag domain.Tag) error {
	plan, err := a.loader.Load(configPath)
	if err != nil {
		return zerr.Wrap(err, "failed to load release configuration")
	}

	p, err := pipeline.New(plan, pipeline.Deps{
		Executor:  a.executor,
		Hasher:    a.hasher,
		Cache:     a.cache,
		Results:   a.results,
		Toolchain: a.toolchain,
		Verifier:  a.verifier,
		Publisher: a.publisher,
		Tracer:    a.tracer,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}

	return p.Run(ctx, tag)
}
