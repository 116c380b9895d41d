// Package main is the entry point for the Alpaca mount control server: a
// two-axis telescope mount driver exposed over the ASCOM Alpaca HTTP/JSON
// protocol, with Alpaca UDP discovery and a WebSocket property-change feed.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/draco-mount/alpaca-mount/internal/api/rest"
	"github.com/draco-mount/alpaca-mount/internal/api/websocket"
	"github.com/draco-mount/alpaca-mount/internal/device"
	"github.com/draco-mount/alpaca-mount/internal/eventbus"
	"github.com/draco-mount/alpaca-mount/internal/mount"
)

// Version information (set during build).
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// ServerConfig holds process-level configuration: listen address, data
// directory, debug flag. Kept separate from mount.Config, which is the
// device's own settings snapshot.
type ServerConfig struct {
	Port    int    `json:"port"`
	Host    string `json:"host"`
	DataDir string `json:"data_dir"`
	Debug   bool   `json:"debug"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:    11111, // conventional Alpaca telescope port
		Host:    "0.0.0.0",
		DataDir: "./data",
		Debug:   true,
	}
}

func main() {
	fmt.Printf("draco-mount alpaca server %s (built %s)\n", Version, BuildTime)
	fmt.Println("==========================================")

	config := DefaultServerConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx, config); err != nil {
		log.Fatalf("server error: %v", err)
	}

	log.Println("server stopped")
}

func run(ctx context.Context, config ServerConfig) error {
	bus := eventbus.NewInMemoryBus()

	settingsStore := device.NewSettingsStore(config.DataDir, bus, mount.DefaultConfig())
	cfg, _ := settingsStore.Current()

	var onProps func(mount.Status)
	wsHub := websocket.NewHub()
	onProps = func(st mount.Status) {
		wsHub.Broadcast(websocket.EventMountPosition, st)
		if st.Limits.Breached() {
			wsHub.Broadcast(websocket.EventMountLimitTripped, st.Limits)
		}
	}

	ctrl := mount.New(cfg, onProps)
	if err := ctrl.Connect(ctx); err != nil {
		return fmt.Errorf("connect mount controller: %w", err)
	}
	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("start mount controller: %w", err)
	}

	go wsHub.Run(ctx)

	restConfig := rest.Config{
		Address: fmt.Sprintf("%s:%d", config.Host, config.Port),
		Debug:   config.Debug,
	}
	server := rest.NewServer(restConfig, ctrl, settingsStore, wsHub)

	discoveryLogger := log.New(os.Stdout, "discovery: ", log.LstdFlags)
	discovery := device.NewAlpacaDiscoveryResponder(config.Port, discoveryLogger)
	if err := discovery.Start(); err != nil {
		log.Printf("warning: alpaca discovery responder failed to start: %v", err)
	} else {
		defer discovery.Stop()
	}

	mux := http.NewServeMux()
	mux.Handle("/", server.Handler())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: mux,
	}

	log.Printf("starting server on %s:%d", config.Host, config.Port)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	log.Printf("server ready at http://%s:%d", config.Host, config.Port)
	log.Println("")
	log.Println("API endpoints:")
	log.Println("  GET/PUT  /api/v1/telescope/0/{action} - ASCOM Alpaca telescope actions")
	log.Println("  GET      /api/v1/management/apiversions")
	log.Println("  GET      /api/v1/management/v1/configureddevices")
	log.Println("  GET      /api/v1/settings")
	log.Println("  WS       /ws")
	log.Println("")

	select {
	case <-ctx.Done():
		log.Println("shutting down gracefully...")

		if err := settingsStore.Save(context.Background(), ctrl.Config(), ctrl.IsAtPark()); err != nil {
			log.Printf("warning: failed to persist settings on shutdown: %v", err)
		}
		_ = ctrl.Stop()
		_ = ctrl.Disconnect()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
