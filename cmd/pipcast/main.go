// Command pipcast runs the PIP session orchestrator: the single resident
// process that owns the roster, polls liveness, drives the windows and
// serves the loopback IPC endpoint for the UI surfaces.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pipcast/backend/internal/config"
	"github.com/pipcast/backend/internal/coordinator"
	"github.com/pipcast/backend/internal/instance"
	"github.com/pipcast/backend/internal/logging"
	"github.com/pipcast/backend/internal/monitoring"
	"github.com/pipcast/backend/internal/prefs"
	"github.com/pipcast/backend/internal/server"
	"github.com/pipcast/backend/internal/session"
	"github.com/pipcast/backend/internal/shell"
	"github.com/pipcast/backend/internal/twitch"
	"github.com/pipcast/backend/internal/update"
	"github.com/pipcast/backend/internal/version"
	"github.com/pipcast/backend/internal/window"
	"github.com/pipcast/backend/internal/ws"
)

func main() {
	var (
		port        = flag.String("port", "", "IPC server port (overrides PIPCAST_PORT)")
		dataDir     = flag.String("data-dir", "", "preference store directory")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dataDir != "" {
		cfg.Paths.DataDir = *dataDir
	}

	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	// Single-instance guard first: a duplicate launch forwards its
	// activation to the running copy and exits silently.
	guard, err := instance.Acquire(cfg.Paths.RuntimeDir, log.Named("instance"))
	if errors.Is(err, instance.ErrAlreadyRunning) {
		return nil
	}
	if err != nil {
		return err
	}
	defer guard.Release()

	log.Info("starting pipcast",
		zap.String("version", version.String()),
		zap.String("data_dir", cfg.Paths.DataDir))

	store, err := prefs.Open(cfg.Paths.DataDir)
	if err != nil {
		return err
	}

	metrics := monitoring.New()
	hub := ws.NewHub(log.Named("ws"), metrics)
	host := window.NewBridgeHost(hub, log.Named("window"))

	client := twitch.NewClient(twitch.Config{
		BaseURL:     cfg.Twitch.APIURL,
		ClientID:    cfg.Twitch.ClientID,
		Token:       cfg.Twitch.Token,
		EmbedParent: cfg.Twitch.EmbedParent,
		Timeout:     cfg.Poll.Timeout,
	}, log.Named("twitch"))

	registry := session.NewRegistry(session.Config{
		Host:          host,
		PageURL:       client.PageURL,
		ClaimInterval: cfg.Automation.ClaimInterval,
		Metrics:       metrics,
	}, log.Named("session"))

	coord := coordinator.New(coordinator.Config{
		WatchInterval: cfg.Poll.WatchInterval,
		PollTimeout:   cfg.Poll.Timeout,
	}, client, registry, store, host, metrics, log.Named("coordinator"))
	coord.SetBroadcaster(hub)

	checker := update.NewChecker(cfg.Update.Endpoint, version.Version, log.Named("update"))

	sh := shell.New(shell.Config{UpdateCheck: cfg.Update.Enabled},
		host, coord, checker, hub, log.Named("shell"))
	guard.OnActivate(sh.Activate)

	handler := ws.NewHandler(hub, coord, registry, store, client, host,
		sh.RequestRestart, log.Named("ipc"), metrics)

	srv := server.New(server.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, handler, registry, store, metrics, log.Named("server"))

	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Run() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sh.Startup(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case <-sh.Done():
		log.Info("shutting down", zap.String("signal", "app quit"))
	case err := <-srvErr:
		if err != nil {
			return err
		}
		return errors.New("ipc server stopped unexpectedly")
	}

	sh.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", zap.Error(err))
	}

	if sh.RestartRequested() {
		// Drop the lock first so the fresh copy does not see this process
		// as the running instance and bail out.
		guard.Release()
		relaunch(log)
	}
	return nil
}

// relaunch starts a fresh copy of this binary after the current one has
// released the instance lock. Used by the restart IPC request so the
// launcher can apply a downloaded update.
func relaunch(log *logging.Logger) {
	exe, err := os.Executable()
	if err != nil {
		log.Error("relaunch: resolve executable", zap.Error(err))
		return
	}
	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		log.Error("relaunch failed", zap.Error(err))
		return
	}
	log.Info("relaunched", zap.Int("pid", cmd.Process.Pid))
	_ = cmd.Process.Release()
}
