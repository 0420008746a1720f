// Package locker runs the allocation engine: it captures a face, matches it
// against the identity registry and assigns or releases doors.
//
// The Engine is the only component that mutates the registry and the door
// bank. Every mutation happens under one mutex and is staged on copies: the
// copies are written to the store first and only replace the live state
// once the write succeeds.
package locker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vusociu/datn/internal/camera"
	"github.com/vusociu/datn/internal/config"
	"github.com/vusociu/datn/internal/constants"
	"github.com/vusociu/datn/internal/doorbank"
	"github.com/vusociu/datn/internal/faces"
	"github.com/vusociu/datn/internal/identity"
	"github.com/vusociu/datn/internal/metrics"
	"github.com/vusociu/datn/internal/protocol"
	"github.com/vusociu/datn/internal/store"
)

var (
	// ErrNoFace is returned when no capture attempt produced an embedding.
	ErrNoFace = errors.New("no usable face")
	// ErrBusy is returned by the preview path while a command cycle holds the engine.
	ErrBusy = errors.New("engine busy")
)

// Deps are the collaborators the engine drives.
type Deps struct {
	Camera    camera.Camera
	Provider  faces.Provider
	Store     store.Store
	Publisher Publisher
	Archive   *faces.Archive // optional
	Logger    *slog.Logger
	Metrics   *metrics.Metrics // optional
	Tracer    trace.Tracer     // optional
}

// Engine owns the registry and door bank.
type Engine struct {
	mu       sync.Mutex
	registry *identity.Registry
	bank     *doorbank.Bank

	camera    camera.Camera
	provider  faces.Provider
	store     store.Store
	publisher Publisher
	archive   *faces.Archive
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	threshold float64
	attempts  int
	interval  time.Duration

	recognition atomic.Bool
}

// New creates an engine with an empty registry and every door EMPTY.
// Call Load to pick up persisted state.
func New(cfg config.LockerConfig, deps Deps) (*Engine, error) {
	if len(cfg.Doors) == 0 {
		return nil, errors.New("no doors configured")
	}
	if deps.Camera == nil || deps.Provider == nil || deps.Store == nil {
		return nil, errors.New("camera, face provider and store are required")
	}

	e := &Engine{
		registry:  identity.NewRegistry(cfg.MatchThreshold),
		bank:      doorbank.New(cfg.Doors),
		camera:    deps.Camera,
		provider:  deps.Provider,
		store:     deps.Store,
		publisher: deps.Publisher,
		archive:   deps.Archive,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
		threshold: cfg.MatchThreshold,
		attempts:  cfg.CaptureAttempts,
		interval:  cfg.CaptureInterval,
	}
	if e.publisher == nil {
		e.publisher = discardPublisher{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.logger = e.logger.With("component", "locker")
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer("locker")
	}
	if e.attempts < 1 {
		e.attempts = constants.DefaultCaptureAttempts
	}
	if e.interval < 0 {
		e.interval = 0
	}
	e.recognition.Store(true)
	return e, nil
}

// Load replaces the in-memory state with what the store holds. A missing
// registry snapshot means a fresh system. Undecodable door records are
// skipped, and doors assigned to identities the registry does not know are
// released and the release persisted.
func (e *Engine) Load(ctx context.Context) error {
	snap, err := e.store.LoadRegistry(ctx)
	if errors.Is(err, store.ErrNotFound) {
		snap = identity.Snapshot{}
	} else if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	registry, err := identity.Restore(snap, e.threshold)
	if err != nil {
		return fmt.Errorf("failed to restore registry: %w", err)
	}

	records, err := e.store.LoadDoors(ctx)
	if errors.Is(err, store.ErrCorruptRecord) {
		e.logger.Warn("skipping unreadable door records", "error", err)
	} else if err != nil {
		return fmt.Errorf("failed to load doors: %w", err)
	}

	bank := doorbank.New(e.bank.Names())
	ignored, invalid := bank.Restore(records)
	if len(ignored) > 0 {
		e.logger.Warn("ignoring persisted doors outside the door set", "doors", ignored)
	}
	if len(invalid) > 0 {
		e.logger.Warn("persisted doors with unknown status, state inferred from assignment", "doors", invalid)
	}

	cleaned := bank.Clone()
	var stale []string
	for _, d := range bank.Doors() {
		if d.AssignedID == nil || registry.Has(*d.AssignedID) {
			continue
		}
		e.logger.Warn("releasing door assigned to unknown identity", "door", d.Name, "identity", *d.AssignedID)
		if err := cleaned.Release(d.Name); err != nil {
			return fmt.Errorf("release %s: %w", d.Name, err)
		}
		stale = append(stale, d.Name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry = registry
	e.bank = bank
	if len(stale) > 0 {
		if err := e.commit(ctx, registry, cleaned); err != nil {
			// keep the cleanup in memory; the next commit writes every door again
			e.bank = cleaned
			e.logger.Warn("stale door release not persisted", "doors", stale, "error", err)
		}
	}

	e.metrics.SetState(e.registry.Len(), e.bank.Occupied())
	e.logger.Info("state loaded",
		"known_faces", e.registry.Len(),
		"next_id", e.registry.NextID(),
		"occupied_doors", e.bank.Occupied())
	return nil
}

// Send handles a deposit: find a free door, recognize or enroll the face,
// assign the door and announce it.
func (e *Engine) Send(ctx context.Context) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "locker.send")
	defer span.End()
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.send(ctx)
	e.finish(span, string(protocol.CommandSend), start, res, err)
	return res, err
}

func (e *Engine) send(ctx context.Context) (Result, error) {
	door, ok := e.bank.FindFree()
	if !ok {
		e.logger.Info("all doors occupied")
		e.publish(ctx, protocol.NewDoorsFull())
		return Result{Outcome: OutcomeDoorsFull}, nil
	}

	capture, err := e.captureFace(ctx)
	if err != nil {
		e.logger.Warn("recognition failed", "command", protocol.CommandSend, "error", err)
		e.publish(ctx, protocol.NewRecognitionError())
		return Result{Outcome: OutcomeNoFace}, nil
	}

	registry := e.registry.Clone()
	bank := e.bank.Clone()
	res := Result{Outcome: OutcomeAssigned}

	match, distance, found := registry.Match(capture.embedding)
	res.Distance = distance
	var id int
	if found {
		id = match.ID
		if held, ok := bank.FindByIdentity(id); ok {
			// one door per identity: open the one already held
			if err := bank.Reopen(held); err != nil {
				return Result{}, fmt.Errorf("reopen %s: %w", held, err)
			}
			door = held
			res.Outcome = OutcomeReopened
		} else if err := bank.Assign(door, id); err != nil {
			return Result{}, fmt.Errorf("assign %s: %w", door, err)
		}
	} else {
		id = registry.Enroll(capture.embedding).ID
		res.Enrolled = true
		if err := bank.Assign(door, id); err != nil {
			return Result{}, fmt.Errorf("assign %s: %w", door, err)
		}
	}
	res.Door = door
	res.IdentityID = &id

	if err := e.commit(ctx, registry, bank); err != nil {
		res.Outcome = OutcomePersistFailed
		return res, err
	}

	e.logger.Info("door assigned",
		"door", door,
		"identity", id,
		"enrolled", res.Enrolled,
		"distance", distance,
		"outcome", res.Outcome)
	e.publish(ctx, protocol.NewDoorOpen(door))

	if res.Enrolled && e.archive.Enabled() {
		if path, err := e.archive.Save(id, capture.frame.Image, capture.box.Rect); err != nil {
			e.logger.Warn("failed to save face snapshot", "identity", id, "error", err)
		} else {
			e.logger.Debug("face snapshot saved", "identity", id, "path", path)
		}
	}
	return res, nil
}

// Get handles a pickup: recognize the face, open its door, then forget the
// identity and free the door.
func (e *Engine) Get(ctx context.Context) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "locker.get")
	defer span.End()
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.get(ctx)
	e.finish(span, string(protocol.CommandGet), start, res, err)
	return res, err
}

func (e *Engine) get(ctx context.Context) (Result, error) {
	capture, err := e.captureFace(ctx)
	if err != nil {
		e.logger.Warn("recognition failed", "command", protocol.CommandGet, "error", err)
		e.publish(ctx, protocol.NewRecognitionError())
		return Result{Outcome: OutcomeNoFace}, nil
	}

	match, distance, found := e.registry.Match(capture.embedding)
	if !found {
		e.logger.Info("face not recognized", "distance", distance)
		e.publish(ctx, protocol.NewDoorError(nil))
		return Result{Outcome: OutcomeNoMatch, Distance: distance}, nil
	}

	id := match.ID
	door, ok := e.bank.FindByIdentity(id)
	if !ok {
		e.logger.Info("identity holds no door", "identity", id)
		e.publish(ctx, protocol.NewDoorError(&id))
		return Result{Outcome: OutcomeNoDoor, IdentityID: &id, Distance: distance}, nil
	}

	e.publish(ctx, protocol.NewDoorOpen(door))

	registry := e.registry.Clone()
	bank := e.bank.Clone()
	registry.Remove(id)
	if err := bank.Release(door); err != nil {
		return Result{}, fmt.Errorf("release %s: %w", door, err)
	}

	res := Result{Outcome: OutcomeReleased, Door: door, IdentityID: &id, Distance: distance}
	if err := e.commit(ctx, registry, bank); err != nil {
		res.Outcome = OutcomePersistFailed
		return res, err
	}

	e.logger.Info("door released", "door", door, "identity", id, "distance", distance)
	return res, nil
}

// HandleDoorStatus applies a status report from the door controller. Reports
// for doors without a persisted record are ignored.
func (e *Engine) HandleDoorStatus(ctx context.Context, msg protocol.DoorStatus) error {
	ctx, span := e.tracer.Start(ctx, "locker.door_status",
		trace.WithAttributes(attribute.String("door", msg.Door)))
	defer span.End()

	status, err := doorbank.ParseStatus(msg.Status)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	name, ok := e.bank.Resolve(msg.Door)
	if !ok {
		return fmt.Errorf("%w: %q", doorbank.ErrUnknownDoor, msg.Door)
	}

	bank := e.bank.Clone()
	if err := bank.ApplyDeviceStatus(name, status); err != nil {
		return fmt.Errorf("door %s: %w", name, err)
	}
	if len(bank.Changed(e.bank)) == 0 {
		return nil
	}

	if err := e.commit(ctx, e.registry, bank); err != nil {
		return err
	}
	d, _ := bank.Get(name)
	e.logger.Info("door status updated", "door", name, "status", d.Status)
	return nil
}

// SetRecognition turns the live preview recognition on or off.
func (e *Engine) SetRecognition(enabled bool) {
	if e.recognition.Swap(enabled) != enabled {
		e.logger.Info("face recognition toggled", "enabled", enabled)
	}
}

// RecognitionEnabled reports whether the preview pipeline should run.
func (e *Engine) RecognitionEnabled() bool {
	return e.recognition.Load()
}

// Status returns a consistent view of the registry and doors.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		KnownFaces:         e.registry.Len(),
		KnownIDs:           e.registry.IDs(),
		NextID:             e.registry.NextID(),
		Doors:              e.bank.Doors(),
		RecognitionEnabled: e.RecognitionEnabled(),
	}
}

// Preview captures one frame and, when recognize is set, labels every face
// in it without changing any state. It returns ErrBusy instead of waiting
// while a command runs.
func (e *Engine) Preview(ctx context.Context, recognize bool) (camera.Frame, []Label, error) {
	if !e.mu.TryLock() {
		return camera.Frame{}, nil, ErrBusy
	}
	defer e.mu.Unlock()

	frame, err := e.camera.Capture(ctx)
	if err != nil {
		return camera.Frame{}, nil, err
	}
	if !recognize {
		return frame, nil, nil
	}

	boxes, err := e.provider.DetectFaces(ctx, frame)
	if err != nil {
		return frame, nil, err
	}

	labels := make([]Label, 0, len(boxes))
	for _, box := range boxes {
		label := Label{Box: box}
		if emb, err := e.provider.Embed(ctx, frame, box); err == nil {
			if match, _, ok := e.registry.Match(emb); ok {
				id := match.ID
				label.IdentityID = &id
			}
		}
		labels = append(labels, label)
	}
	return frame, labels, nil
}

type capturedFace struct {
	frame     camera.Frame
	box       faces.BoundingBox
	embedding []float32
}

// captureFace grabs frames until one yields an embedding for its first face.
func (e *Engine) captureFace(ctx context.Context) (capturedFace, error) {
	var lastErr error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		if attempt > 1 && e.interval > 0 {
			select {
			case <-ctx.Done():
				return capturedFace{}, ctx.Err()
			case <-time.After(e.interval):
			}
		}
		if err := ctx.Err(); err != nil {
			return capturedFace{}, err
		}

		c, err := e.tryCapture(ctx)
		if err == nil {
			return c, nil
		}
		lastErr = err
		e.metrics.IncrementCaptureMiss()
		e.logger.Debug("capture attempt failed", "attempt", attempt, "error", err)
	}
	return capturedFace{}, fmt.Errorf("%w after %d attempts: %w", ErrNoFace, e.attempts, lastErr)
}

func (e *Engine) tryCapture(ctx context.Context) (capturedFace, error) {
	frame, err := e.camera.Capture(ctx)
	if err != nil {
		return capturedFace{}, err
	}
	boxes, err := e.provider.DetectFaces(ctx, frame)
	if err != nil {
		return capturedFace{}, err
	}
	if len(boxes) == 0 {
		return capturedFace{}, errors.New("no face detected")
	}
	if len(boxes) > 1 {
		e.logger.Debug("several faces in frame, using the first", "faces", len(boxes))
	}
	emb, err := e.provider.Embed(ctx, frame, boxes[0])
	if err != nil {
		return capturedFace{}, err
	}
	return capturedFace{frame: frame, box: boxes[0], embedding: emb}, nil
}

// commit writes the staged state and swaps it in. On failure the live state
// is left as it was and a system error is announced. Callers hold e.mu.
func (e *Engine) commit(ctx context.Context, registry *identity.Registry, bank *doorbank.Bank) error {
	ctx, span := e.tracer.Start(ctx, "locker.commit")
	defer span.End()

	state := store.State{Registry: registry.Snapshot(), Doors: bank.Records()}
	if err := e.store.Save(ctx, state); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		e.metrics.IncrementPersistFailure()
		e.logger.Error("failed to persist state, keeping previous state", "error", err)
		e.publish(ctx, protocol.NewSystemError())
		return fmt.Errorf("persist state: %w", err)
	}

	e.registry = registry
	e.bank = bank
	e.metrics.SetState(registry.Len(), bank.Occupied())
	return nil
}

func (e *Engine) publish(ctx context.Context, ev protocol.Event) {
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.metrics.IncrementPublishFailure(ev.Kind.String())
		e.logger.Warn("failed to publish event", "kind", ev.Kind, "error", err)
	}
}

func (e *Engine) finish(span trace.Span, command string, start time.Time, res Result, err error) {
	outcome := res.Outcome
	if outcome == "" {
		outcome = OutcomeError
	}
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	if res.Door != "" {
		span.SetAttributes(attribute.String("door", res.Door))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	e.metrics.IncrementOutcome(command, string(outcome))
	e.metrics.ObserveCycle(command, time.Since(start))
}
