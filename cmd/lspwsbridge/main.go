package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"lspwsbridge/internal/bridge"
	"lspwsbridge/internal/bridgeconfig"
	"lspwsbridge/internal/cliopts"
	"lspwsbridge/internal/frontdoor"
	"lspwsbridge/internal/uriremap"
	"lspwsbridge/internal/web/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	opts, err := cliopts.Parse(os.Args)
	if err != nil {
		if errors.Is(err, cliopts.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("%s v%s\n", cliopts.Name, cliopts.Version)
		return
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: initializing logger: %v", err))
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg := &bridgeconfig.Config{}
	if opts.Config != "" {
		cfg, err = bridgeconfig.Load(opts.Config)
		if err != nil {
			logger.Panic("failed to read config file", zap.Error(err))
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		logger.Panic("failed to determine working directory", zap.Error(err))
	}

	var root *uriremap.Root
	if opts.Remap {
		root, err = uriremap.NewRootFromDirectory(cwd)
		if err != nil {
			logger.Panic("failed to build project root URL", zap.Error(err))
		}
	}

	bctx := &bridge.Context{
		Registry: cfg.Registry(opts.Commands),
		Config:   cfg,
		Root:     root,
		Sync:     opts.Sync,
		Remap:    opts.Remap,
		Logger:   logger,
	}

	handler := frontdoor.New(frontdoor.Options{
		Bridge:  bctx,
		Sync:    opts.Sync,
		RootDir: cwd,
	}, logger)

	srv, err := server.New(server.DefaultConfig(opts.Listen, handler))
	if err != nil {
		logger.Panic("failed to build server", zap.Error(err))
	}

	if err := server.NewGracefulShutdown(srv, shutdownTimeout, logger).Start(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
