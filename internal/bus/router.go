package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vusociu/datn/internal/constants"
	"github.com/vusociu/datn/internal/locker"
	"github.com/vusociu/datn/internal/metrics"
	"github.com/vusociu/datn/internal/protocol"
)

// Engine is the part of the locker engine the router drives.
type Engine interface {
	Send(ctx context.Context) (locker.Result, error)
	Get(ctx context.Context) (locker.Result, error)
	HandleDoorStatus(ctx context.Context, msg protocol.DoorStatus) error
	SetRecognition(enabled bool)
}

type message struct {
	topic   string
	payload []byte
}

type handlerFunc func(ctx context.Context, payload []byte) error

// Router classifies inbound messages and hands them to the engine one at a
// time, off the MQTT delivery goroutine.
type Router struct {
	topics   *protocol.Topics
	engine   Engine
	logger   *slog.Logger
	metrics  *metrics.Metrics
	queue    chan message
	handlers map[protocol.Kind]handlerFunc
}

// NewRouter creates a router with the handler table for every inbound kind.
func NewRouter(topics *protocol.Topics, engine Engine, logger *slog.Logger, m *metrics.Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		topics:  topics,
		engine:  engine,
		logger:  logger.With("component", "router"),
		metrics: m,
		queue:   make(chan message, constants.EventChannelBuffer),
	}
	r.handlers = map[protocol.Kind]handlerFunc{
		protocol.KindDoorStatus:  r.handleDoorStatus,
		protocol.KindExecute:     r.handleExecute,
		protocol.KindRecognition: r.handleRecognition,
	}
	return r
}

// Topics returns the topics the router wants subscribed.
func (r *Router) Topics() []string {
	return r.topics.Inbound()
}

// Deliver queues an inbound message. It never blocks; when the queue is
// full the message is dropped.
func (r *Router) Deliver(topic string, payload []byte) {
	select {
	case r.queue <- message{topic: topic, payload: append([]byte(nil), payload...)}:
	default:
		r.logger.Warn("inbound queue full, dropping message", "topic", topic)
	}
}

// Run processes queued messages until ctx is canceled.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-r.queue:
			_ = r.Dispatch(ctx, msg.topic, msg.payload)
		}
	}
}

// Dispatch handles one message synchronously. Errors are logged here and
// returned for callers that care.
func (r *Router) Dispatch(ctx context.Context, topic string, payload []byte) error {
	kind, err := r.topics.Classify(topic)
	if err != nil {
		r.metrics.IncrementInbound(protocol.KindUnknown.String())
		r.logger.Warn("message on unknown topic", "topic", topic)
		return err
	}
	r.metrics.IncrementInbound(kind.String())

	handler, ok := r.handlers[kind]
	if !ok {
		r.logger.Warn("no handler for message kind", "kind", kind, "topic", topic)
		return fmt.Errorf("%w: %s", protocol.ErrUnknownTopic, kind)
	}

	r.logger.Debug("message received", "kind", kind, "topic", topic, "payload", string(payload))
	if err := handler(ctx, payload); err != nil {
		level := slog.LevelWarn
		if errors.Is(err, protocol.ErrMalformedPayload) || errors.Is(err, protocol.ErrUnknownCommand) {
			level = slog.LevelInfo
		}
		r.logger.Log(ctx, level, "message not applied", "kind", kind, "error", err)
		return err
	}
	return nil
}

func (r *Router) handleExecute(ctx context.Context, payload []byte) error {
	cmd, err := protocol.ParseCommand(payload)
	if err != nil {
		return err
	}

	var res locker.Result
	switch cmd {
	case protocol.CommandSend:
		res, err = r.engine.Send(ctx)
	case protocol.CommandGet:
		res, err = r.engine.Get(ctx)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	r.logger.Info("command handled", "command", cmd, "outcome", res.Outcome, "door", res.Door)
	return nil
}

func (r *Router) handleDoorStatus(ctx context.Context, payload []byte) error {
	msg, err := protocol.ParseDoorStatus(payload)
	if err != nil {
		return err
	}
	return r.engine.HandleDoorStatus(ctx, msg)
}

func (r *Router) handleRecognition(_ context.Context, payload []byte) error {
	enabled, err := protocol.ParseRecognition(payload)
	if err != nil {
		return err
	}
	r.engine.SetRecognition(enabled)
	return nil
}
