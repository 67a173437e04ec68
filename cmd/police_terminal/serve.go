package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/config"
	"github.com/jonathan/police-terminal/internal/merge"
	"github.com/jonathan/police-terminal/internal/refresh"
	"github.com/jonathan/police-terminal/internal/render"
	"github.com/jonathan/police-terminal/internal/server"
	"github.com/jonathan/police-terminal/internal/server/ratelimit"
	"github.com/jonathan/police-terminal/internal/sources"
	"github.com/jonathan/police-terminal/internal/store"
	"github.com/jonathan/police-terminal/internal/types"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the terminal API server",
	Long: `Attach to the chat host, watch it for responses and serve the panels,
the rendered overlay and a notice event stream over HTTP.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(background(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return err
	}
	passcodes, err := config.NewPasscodeConfig()
	if err != nil {
		return err
	}
	officer := cfg.Officer
	if officer.PasscodeHash == "" {
		officer.PasscodeHash = os.Getenv("OFFICER_PASSCODE_HASH")
	}
	if officer.PasscodeHash == "" {
		logger.Warn("no officer passcode hash configured; login is disabled (see hash-passcode)")
	}

	kv, err := store.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = kv.Close() }()
	snapshots := store.NewSnapshots(kv, logger)
	prefs := store.NewPreferences(kv, logger)

	conn, err := openHost(ctx, cfg.Host, logger)
	if err != nil {
		return fmt.Errorf("failed to open chat host: %w", err)
	}
	defer conn.Close()

	overlay, err := render.New()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts, err := controllerOptions(cfg.Refresh)
	if err != nil {
		return err
	}

	aggregator := sources.NewAggregator(conn.live, conn.history, logger)
	broker := server.NewBroker(logger)
	controller := refresh.NewController(refresh.Config{
		Pipeline: &refresh.Pipeline{
			Collector: aggregator,
			Merger:    merge.New(merge.DefaultOptions()),
			Store:     snapshots,
			Renderer:  overlay,
			Logger:    logger,
		},
		Notifier: broker,
		Sender:   conn.sender,
		Metrics:  refresh.NewMetrics(registry),
		Logger:   logger,
		Options:  opts,
	})
	defer controller.Close()

	stopWatch, err := conn.watch(ctx, func(msg types.ChatMessage) {
		if msg.IsUser {
			return
		}
		if resolved := controller.HandleMessage(msg.Text); len(resolved) > 0 {
			logger.Debug("chat response resolved panels", zap.Any("panels", resolved))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to watch chat host: %w", err)
	}
	defer stopWatch()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := server.New(addr, server.Deps{
		Controller:  controller,
		Collector:   aggregator,
		Snapshots:   snapshots,
		Preferences: prefs,
		Overlay:     overlay,
		Broker:      broker,
		JWT:         server.NewJWTService(jwtConfig),
		Passcodes:   passcodes,
		Officer:     officer,
		Gatherer:    registry,
		Limiter:     ratelimit.NewLimiter(nil),
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	})

	logger.Info("police terminal ready",
		zap.String("addr", addr),
		zap.String("host_mode", cfg.Host.Mode),
		zap.String("storage", cfg.Storage.Driver))
	return srv.Run(ctx)
}

// controllerOptions converts the refresh section of the config.
func controllerOptions(rc config.RefreshConfig) (refresh.Options, error) {
	opts := refresh.Options{
		Debounce:    rc.Debounce.Std(),
		Timeout:     rc.Timeout.Std(),
		RunTimeout:  rc.RunTimeout.Std(),
		MapKeywords: rc.MapKeywords,
	}
	if len(rc.Commands) > 0 {
		opts.Commands = make(map[types.Panel]string, len(rc.Commands))
		for name, command := range rc.Commands {
			panel, err := types.ParsePanel(name)
			if err != nil {
				return refresh.Options{}, fmt.Errorf("config error: refresh.commands: %w", err)
			}
			opts.Commands[panel] = command
		}
	}
	return opts, nil
}

// background returns cmd's context, or a fresh one when it has none.
func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
