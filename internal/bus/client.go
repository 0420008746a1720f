// Package bus connects the locker to the MQTT broker: it keeps the
// connection alive, routes inbound messages to the engine and publishes
// outbound events.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/vusociu/datn/internal/config"
	"github.com/vusociu/datn/internal/constants"
)

// ErrNotConnected is returned when publishing while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt not connected")

const (
	presenceOnline  = "online"
	presenceOffline = "offline"

	minReconnectInterval = 1 * time.Second
	maxReconnectInterval = 30 * time.Second
)

// MessageHandler receives the topic and payload of one inbound message.
type MessageHandler func(topic string, payload []byte)

// Client is a reconnecting MQTT connection. Subscriptions registered through
// it survive reconnects, and the presence topic tracks whether the locker
// is online.
type Client struct {
	cfg    config.MQTTConfig
	client mqtt.Client
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string]MessageHandler

	connected atomic.Bool
	published atomic.Uint64
	errors    atomic.Uint64
}

// NewClient prepares a client; nothing is dialed until Connect.
func NewClient(cfg config.MQTTConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger.With("component", "mqtt"),
		subs:   make(map[string]MessageHandler),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(minReconnectInterval)
	opts.SetMaxReconnectInterval(maxReconnectInterval)
	opts.SetOrderMatters(false)
	if cfg.Topics.Presence != "" {
		opts.SetWill(cfg.Topics.Presence, presenceOffline, cfg.QoS, false)
	}

	opts.OnConnect = c.onConnect
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.connected.Store(false)
		c.logger.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", cfg.Broker,
			"max_retry_interval", maxReconnectInterval.String())
	}
	opts.OnReconnecting = func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		c.logger.Debug("reconnecting to mqtt broker", "broker", cfg.Broker)
	}

	c.client = mqtt.NewClient(opts)
	return c
}

func (c *Client) onConnect(client mqtt.Client) {
	c.connected.Store(true)
	c.logger.Info("mqtt connection established",
		"broker", c.cfg.Broker,
		"client_id", c.cfg.ClientID)

	if c.cfg.Topics.Presence != "" {
		token := client.Publish(c.cfg.Topics.Presence, c.cfg.QoS, false, presenceOnline)
		if !token.WaitTimeout(constants.PublishTimeout) || token.Error() != nil {
			c.logger.Warn("failed to publish presence", "error", token.Error())
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for topic, handler := range c.subs {
		if err := c.subscribe(topic, handler); err != nil {
			c.logger.Error("failed to resubscribe", "topic", topic, "error", err)
		}
	}
}

// Connect dials the broker. If the broker does not answer within the
// connect timeout the client keeps retrying in the background and Connect
// returns nil; only configuration errors are returned.
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("connecting to mqtt broker", "broker", c.cfg.Broker)

	token := c.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connection failed: %w", err)
		}
	case <-time.After(constants.ConnectTimeout):
		c.logger.Warn("mqtt broker not reachable yet, retrying in background", "broker", c.cfg.Broker)
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Subscribe registers handler for topic. The subscription is (re)made on
// every connect.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	if !c.IsConnected() {
		return nil
	}
	return c.subscribe(topic, handler)
}

func (c *Client) subscribe(topic string, handler MessageHandler) error {
	token := c.client.Subscribe(topic, c.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(constants.ConnectTimeout) {
		return fmt.Errorf("subscription to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscription to %s failed: %w", topic, err)
	}
	c.logger.Info("subscribed", "topic", topic, "qos", c.cfg.QoS)
	return nil
}

// Publish sends payload to topic and waits for the broker ack, bounded by
// the publish timeout and ctx.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.IsConnected() {
		c.errors.Add(1)
		return ErrNotConnected
	}

	token := c.client.Publish(topic, c.cfg.QoS, false, payload)
	select {
	case <-token.Done():
	case <-time.After(constants.PublishTimeout):
		c.errors.Add(1)
		return fmt.Errorf("publish to %s: timeout", topic)
	case <-ctx.Done():
		c.errors.Add(1)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		c.errors.Add(1)
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}

	c.published.Add(1)
	c.logger.Debug("message published", "topic", topic, "size", len(payload))
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Stats contains publish counters.
type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

// Stats returns client statistics.
func (c *Client) Stats() Stats {
	return Stats{
		Connected: c.IsConnected(),
		Published: c.published.Load(),
		Errors:    c.errors.Load(),
	}
}

// Disconnect announces the locker offline and closes the connection.
func (c *Client) Disconnect() {
	if c.client.IsConnected() {
		if c.cfg.Topics.Presence != "" {
			token := c.client.Publish(c.cfg.Topics.Presence, c.cfg.QoS, false, presenceOffline)
			token.WaitTimeout(constants.PublishTimeout)
		}
		c.client.Disconnect(250) // 250ms grace period
		c.logger.Info("mqtt disconnected")
	}
	c.connected.Store(false)
}
