package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/udpbd-vexfat/internal/adapters/cache"              //nolint:depguard // Wired in app layer
	"go.trai.ch/udpbd-vexfat/internal/adapters/config"             //nolint:depguard // Wired in app layer
	"go.trai.ch/udpbd-vexfat/internal/adapters/fs"                 //nolint:depguard // Wired in app layer
	"go.trai.ch/udpbd-vexfat/internal/adapters/github"             //nolint:depguard // Wired in app layer
	"go.trai.ch/udpbd-vexfat/internal/adapters/logger"             //nolint:depguard // Wired in app layer
	"go.trai.ch/udpbd-vexfat/internal/adapters/shell"              //nolint:depguard // Wired in app layer
	"go.trai.ch/udpbd-vexfat/internal/adapters/telemetry/progrock" //nolint:depguard // Wired in app layer
	"go.trai.ch/udpbd-vexfat/internal/adapters/toolchain"          //nolint:depguard // Wired in app layer
	"go.trai.ch/udpbd-vexfat/internal/core/ports"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	// App Node
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			logger.NodeID,
			config.NodeID,
			shell.NodeID,
			fs.HasherNodeID,
			fs.VerifierNodeID,
			cache.StoreNodeID,
			cache.ResultStoreNodeID,
			toolchain.NodeID,
			github.NodeID,
			progrock.NodeID,
		},
		Run: runAppNode,
	})

	// Components Node
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}
	executor, err := graft.Dep[ports.Executor](ctx)
	if err != nil {
		return nil, err
	}
	hasher, err := graft.Dep[ports.Hasher](ctx)
	if err != nil {
		return nil, err
	}
	cacheStore, err := graft.Dep[ports.CacheStore](ctx)
	if err != nil {
		return nil, err
	}
	results, err := graft.Dep[ports.ResultStore](ctx)
	if err != nil {
		return nil, err
	}
	installer, err := graft.Dep[ports.ToolchainInstaller](ctx)
	if err != nil {
		return nil, err
	}
	verifier, err := graft.Dep[ports.Verifier](ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := graft.Dep[ports.Publisher](ctx)
	if err != nil {
		return nil, err
	}
	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}

	return New(log, loader, executor, hasher, cacheStore, results, installer, verifier, publisher, tracer), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	application, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		App:    application,
		Logger: log,
	}, nil
}
