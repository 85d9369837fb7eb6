package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arduino/go-paths-helper"

	"github.com/MoDevIO/unosim/internal/api"
	"github.com/MoDevIO/unosim/internal/config"
	"github.com/MoDevIO/unosim/internal/toolchain"
	"github.com/MoDevIO/unosim/streams"
	"github.com/MoDevIO/unosim/version"
)

var enableLogging bool

func main() {
	flag.BoolVar(&enableLogging, "log", false, "enable logging of build and runner activity to files")
	flag.Parse()

	if enableLogging {
		streams.GlobalLogDirectory = paths.New(os.TempDir())
		logFile := streams.OpenLogFileAs("unosim.log")
		defer logFile.Close()
		log.SetOutput(logFile)
	} else {
		log.SetOutput(os.Stderr)
	}

	info := version.NewInfo("unosim")
	log.Println(info.String())

	cfg := config.FromEnv()

	// The mock runtime is an opaque asset supplied by the deployment
	// (spec.md §6.4 scopes its own source out of this repo); a missing
	// file only disables real compiles, so this stays a warning.
	mockRuntime, err := os.ReadFile(cfg.MockRuntimePath)
	if err != nil {
		log.Printf("mock runtime asset %s not found, compiles will fail until one is supplied: %s", cfg.MockRuntimePath, err)
	}

	tc := toolchain.GCCToolchain{
		CompilerPath: cfg.CompilerPath,
		BuildRoot:    cfg.BuildRoot,
	}

	server := api.New(cfg, tc, string(mockRuntime))

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Printf("server error: %s", err)
		os.Exit(1)
	case <-sigCh:
		log.Println("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %s", err)
		os.Exit(1)
	}
}
