package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vusociu/datn/internal/broadcast"
	"github.com/vusociu/datn/internal/bus"
	"github.com/vusociu/datn/internal/camera"
	"github.com/vusociu/datn/internal/config"
	"github.com/vusociu/datn/internal/constants"
	"github.com/vusociu/datn/internal/faces"
	"github.com/vusociu/datn/internal/locker"
	"github.com/vusociu/datn/internal/metrics"
	"github.com/vusociu/datn/internal/preview"
	"github.com/vusociu/datn/internal/protocol"
	"github.com/vusociu/datn/internal/store"
	"github.com/vusociu/datn/internal/tracing"
	"github.com/vusociu/datn/internal/web"
	"github.com/vusociu/datn/internal/web/handlers"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the locker service",
	Long: `Run the locker: connect to Redis and the MQTT broker, restore the
registry and door state, handle SEND/GET commands and door status reports,
and serve the status page, live preview and metrics over HTTP.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// applyServeFlags lets explicit flags win over the environment.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Web.Port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Web.Host = mustGetString(cmd, "host")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	cfg := config.Load()
	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting locker",
		"version", Version,
		"doors", cfg.Locker.Doors,
		"broker", cfg.MQTT.Broker,
		"client_id", cfg.MQTT.ClientID)

	tp, err := tracing.NewProvider(cfg.Tracing, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	m := metrics.New(prometheus.DefaultRegisterer)

	redisClient, err := store.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()
	st := store.NewRedisStore(redisClient)

	topics := protocol.NewTopics(cfg.MQTT.Topics)
	mqttClient := bus.NewClient(cfg.MQTT, logger)
	feed := handlers.NewEventFeed()
	frames := broadcast.New[[]byte](constants.FrameChannelBuffer)
	cam := camera.NewHTTPCamera(cfg.Camera.URL, cfg.Camera.Timeout)

	engine, err := locker.New(cfg.Locker, locker.Deps{
		Camera:    cam,
		Provider:  faces.NewClient(cfg.Embedding.URL, cfg.Embedding.FaceSize),
		Store:     st,
		Publisher: locker.Publishers{bus.NewEventPublisher(mqttClient, topics), feed},
		Archive:   faces.NewArchive(cfg.Locker.FaceDir),
		Logger:    logger,
		Metrics:   m,
		Tracer:    tp.Tracer(),
	})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	if err := engine.Load(ctx); err != nil {
		return fmt.Errorf("failed to restore state: %w", err)
	}

	router := bus.NewRouter(topics, engine, logger, m)
	for _, topic := range router.Topics() {
		if err := mqttClient.Subscribe(topic, router.Deliver); err != nil {
			return err
		}
	}
	if err := mqttClient.Connect(ctx); err != nil {
		return err
	}
	defer mqttClient.Disconnect()

	loop := preview.NewLoop(engine, cfg.Web.PreviewFPS, frames, logger, m)
	server := web.NewServer(cfg.Web, web.Deps{
		Engine:    engine,
		Bus:       mqttClient,
		Frames:    frames,
		Events:    feed,
		Metrics:   promhttp.Handler(),
		Broker:    cfg.MQTT.Broker,
		CameraURL: cam.URL(),
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return router.Run(gctx) })
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// end open streams so the server can drain
		frames.Close()
		feed.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Locker status page on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	return g.Wait()
}
