package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/vusociu/datn/internal/bus"
	"github.com/vusociu/datn/internal/config"
)

var publishCmd = &cobra.Command{
	Use:   "publish <topic> <message>",
	Short: "Publish a single MQTT message, e.g. to trigger SEND or GET",
	Example: `  locker publish door/execute SEND
  locker publish door/status '{"door":"door_1","status":"CLOSED"}'`,
	Args: cobra.ExactArgs(2),
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().Duration("wait", 5*time.Second, "How long to wait for the broker connection")
}

func runPublish(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)
	cfg := config.Load()
	// a separate client id so the running service is not kicked off the broker
	cfg.MQTT.ClientID += "-cli"
	cfg.MQTT.Topics.Presence = ""

	wait, err := cmd.Flags().GetDuration("wait")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	client := bus.NewClient(cfg.MQTT, logger)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("broker not reachable: %w", err)
	}
	defer client.Disconnect()

	if err := waitConnected(ctx, client, logger); err != nil {
		return err
	}

	topic, message := args[0], args[1]
	if err := client.Publish(ctx, topic, []byte(message)); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Published '%s' to topic '%s'\n", message, topic)
	return nil
}

func waitConnected(ctx context.Context, client *bus.Client, logger *slog.Logger) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for !client.IsConnected() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("broker not reachable: %w", ctx.Err())
		case <-ticker.C:
			logger.Debug("waiting for broker connection")
		}
	}
	return nil
}
