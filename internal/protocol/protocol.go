// Package protocol defines the closed set of messages the locker exchanges with
// door controllers over the message bus, and how each maps to a topic.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vusociu/datn/internal/config"
)

var (
	ErrUnknownTopic     = errors.New("unknown topic")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnknownCommand   = errors.New("unknown command")
)

// Kind enumerates every message the locker understands or emits.
type Kind int

const (
	KindUnknown Kind = iota

	// Inbound
	KindDoorStatus
	KindExecute
	KindRecognition

	// Outbound
	KindDoorOpen
	KindDoorsFull
	KindRecognitionError
	KindDoorError
	KindSystemError
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindDoorStatus:       "door_status",
	KindExecute:          "execute",
	KindRecognition:      "recognition",
	KindDoorOpen:         "door_open",
	KindDoorsFull:        "doors_full",
	KindRecognitionError: "recognition_error",
	KindDoorError:        "door_error",
	KindSystemError:      "system_error",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Inbound reports whether k is a message the locker receives.
func (k Kind) Inbound() bool {
	return k == KindDoorStatus || k == KindExecute || k == KindRecognition
}

// Literal status strings carried by the payload-less outbound events.
const (
	StatusDoorsFull         = "DOORS_FULL"
	StatusRecognitionFailed = "RECOGNITION_FAILED"
	StatusStorageFailed     = "STORAGE_FAILED"
	ErrorNoDoorAssigned     = "no door assigned"
)

// Command is the payload of the execute topic.
type Command string

const (
	CommandSend Command = "SEND"
	CommandGet  Command = "GET"
)

// ParseCommand accepts SEND or GET, ignoring surrounding whitespace and quotes.
func ParseCommand(payload []byte) (Command, error) {
	s := strings.Trim(strings.TrimSpace(string(payload)), `"`)
	switch Command(strings.ToUpper(s)) {
	case CommandSend:
		return CommandSend, nil
	case CommandGet:
		return CommandGet, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
}

// DoorStatus is the payload of the status topic.
type DoorStatus struct {
	Door   string `json:"door"`
	Status string `json:"status"`
}

// ParseDoorStatus decodes and sanity-checks a status payload.
func ParseDoorStatus(payload []byte) (DoorStatus, error) {
	var ds DoorStatus
	if err := json.Unmarshal(payload, &ds); err != nil {
		return DoorStatus{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(ds.Door) == "" || strings.TrimSpace(ds.Status) == "" {
		return DoorStatus{}, fmt.Errorf("%w: door and status are required", ErrMalformedPayload)
	}
	return ds, nil
}

// ParseRecognition decodes the preview toggle: "1" enables, "0" disables.
func ParseRecognition(payload []byte) (bool, error) {
	switch strings.TrimSpace(string(payload)) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: recognition expects 1 or 0, got %q", ErrMalformedPayload, payload)
}

// DoorOpen instructs the controller to open a door.
type DoorOpen struct {
	Door string `json:"door"`
}

// DoorError reports that a retrieval found no door for an identity.
type DoorError struct {
	Error      string `json:"error"`
	IdentityID *int   `json:"identityId"`
}

// Event is one outbound message with its wire payload.
type Event struct {
	Kind    Kind
	Payload []byte
}

// MarshalJSON renders the event for the activity feed, payload as text.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    string `json:"kind"`
		Payload string `json:"payload"`
	}{e.Kind.String(), string(e.Payload)})
}

func literal(s string) []byte {
	return []byte(s)
}

// NewDoorOpen builds a door-open event.
func NewDoorOpen(door string) Event {
	data, _ := json.Marshal(DoorOpen{Door: door})
	return Event{Kind: KindDoorOpen, Payload: data}
}

// NewDoorsFull builds a doors-full event.
func NewDoorsFull() Event {
	return Event{Kind: KindDoorsFull, Payload: literal(StatusDoorsFull)}
}

// NewRecognitionError builds a recognition-error event.
func NewRecognitionError() Event {
	return Event{Kind: KindRecognitionError, Payload: literal(StatusRecognitionFailed)}
}

// NewDoorError builds a door-error event. identityID is nil when the face
// matched nobody.
func NewDoorError(identityID *int) Event {
	data, _ := json.Marshal(DoorError{Error: ErrorNoDoorAssigned, IdentityID: identityID})
	return Event{Kind: KindDoorError, Payload: data}
}

// NewSystemError builds an event for failures the device cannot fix, such as
// the store rejecting a write.
func NewSystemError() Event {
	return Event{Kind: KindSystemError, Payload: literal(StatusStorageFailed)}
}

// Topics maps kinds to topic names in both directions.
type Topics struct {
	byKind  map[Kind]string
	byTopic map[string]Kind
}

// NewTopics builds the topic table from configuration.
func NewTopics(cfg config.TopicsConfig) *Topics {
	t := &Topics{
		byKind: map[Kind]string{
			KindDoorStatus:       cfg.DoorStatus,
			KindExecute:          cfg.Execute,
			KindRecognition:      cfg.Recognition,
			KindDoorOpen:         cfg.DoorOpen,
			KindDoorsFull:        cfg.DoorsFull,
			KindRecognitionError: cfg.RecognitionError,
			KindDoorError:        cfg.DoorError,
			KindSystemError:      cfg.SystemError,
		},
		byTopic: make(map[string]Kind),
	}
	for k, topic := range t.byKind {
		if k.Inbound() && topic != "" {
			t.byTopic[topic] = k
		}
	}
	return t
}

// Topic returns the topic a kind travels on.
func (t *Topics) Topic(k Kind) (string, bool) {
	topic, ok := t.byKind[k]
	return topic, ok && topic != ""
}

// Classify maps an inbound topic to its kind.
func (t *Topics) Classify(topic string) (Kind, error) {
	if k, ok := t.byTopic[topic]; ok {
		return k, nil
	}
	return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
}

// Inbound returns every subscribed topic.
func (t *Topics) Inbound() []string {
	var out []string
	for _, k := range []Kind{KindDoorStatus, KindExecute, KindRecognition} {
		if topic, ok := t.Topic(k); ok {
			out = append(out, topic)
		}
	}
	return out
}
