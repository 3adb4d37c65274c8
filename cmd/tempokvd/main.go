// Command tempokvd is the tempokv server process: it wires config, the
// logger, the keyspace, the TTL heap, the expirer, the dispatcher, and
// the two listeners (wire protocol + admin) together and drives a
// signal-triggered graceful shutdown.
package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Ap3pp3rs94/tempokv/internal/admin"
	"github.com/Ap3pp3rs94/tempokv/internal/config"
	"github.com/Ap3pp3rs94/tempokv/internal/dispatch"
	"github.com/Ap3pp3rs94/tempokv/internal/expirer"
	"github.com/Ap3pp3rs94/tempokv/internal/keyspace"
	"github.com/Ap3pp3rs94/tempokv/internal/server"
	"github.com/Ap3pp3rs94/tempokv/internal/ttlheap"
	"github.com/Ap3pp3rs94/tempokv/pkg/telemetry"
)

const serviceName = "tempokvd"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := telemetry.NewLogger(os.Stdout, telemetry.Options{
		Service: serviceName,
		Level:   telemetry.Level(cfg.LogLevel),
	})
	logger.Info("starting", map[string]any{"env": cfg.Env, "addr": cfg.ListenAddr, "admin_addr": cfg.AdminAddr})

	keys := keyspace.New()
	heap := ttlheap.New()
	exp := expirer.New(keys, heap, logger, cfg.ExpirerTick)
	disp := dispatch.New(keys, heap, logger)

	srv := server.New(server.Options{
		Addr:          cfg.ListenAddr,
		ReadTimeout:   cfg.ReadTimeout,
		WriteTimeout:  cfg.WriteTimeout,
		MaxFrameBytes: cfg.MaxFrameBytes,
	}, disp, logger)

	adminSrv := admin.New(cfg.AdminAddr, serviceName, keys, heap, logger)

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		exp.Run()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := adminSrv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown_signal", map[string]any{"signal": sig.String()})
	case err := <-errCh:
		if err != nil {
			logger.Error("server_error", map[string]any{"error": err.Error()})
		}
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		if err := srv.Shutdown(); err != nil {
			logger.Error("server_shutdown_error", map[string]any{"error": err.Error()})
		}
		if err := adminSrv.Shutdown(); err != nil {
			logger.Error("admin_shutdown_error", map[string]any{"error": err.Error()})
		}
		exp.Stop()
		wg.Wait()
	}()

	select {
	case <-shutdownDone:
		logger.Info("shutdown_complete", map[string]any{"service": serviceName})
	case <-time.After(cfg.ShutdownTimeout):
		logger.Error("shutdown_timeout", map[string]any{"service": serviceName})
	}
}
