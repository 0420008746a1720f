package handlers

import (
	"net/http"

	"github.com/vusociu/datn/internal/doorbank"
	"github.com/vusociu/datn/internal/locker"
)

// StatusSource reports the engine state.
type StatusSource interface {
	Status() locker.Status
}

// Connectivity reports whether the message bus is reachable.
type Connectivity interface {
	IsConnected() bool
}

// StatusHandler serves the status page and door list.
type StatusHandler struct {
	engine    StatusSource
	bus       Connectivity
	broker    string
	cameraURL string
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(engine StatusSource, bus Connectivity, broker, cameraURL string) *StatusHandler {
	return &StatusHandler{engine: engine, bus: bus, broker: broker, cameraURL: cameraURL}
}

// MQTTStatus describes the broker connection.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// DoorResponse is one door as shown to operators.
type DoorResponse struct {
	Name   string          `json:"name"`
	Status doorbank.Status `json:"status"`
	UserID *int            `json:"userId"`
	Free   bool            `json:"free"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status                 string         `json:"status"`
	MQTT                   MQTTStatus     `json:"mqtt"`
	KnownFaces             int            `json:"known_faces"`
	CameraURL              string         `json:"camera_url"`
	FaceRecognitionEnabled bool           `json:"face_recognition_enabled"`
	Doors                  []DoorResponse `json:"doors"`
}

func doorResponses(doors []doorbank.Door) []DoorResponse {
	out := make([]DoorResponse, 0, len(doors))
	for _, d := range doors {
		out = append(out, DoorResponse{
			Name:   d.Name,
			Status: d.Status,
			UserID: d.AssignedID,
			Free:   d.Free(),
		})
	}
	return out
}

// Status handles GET /status.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Status()
	connected := h.bus != nil && h.bus.IsConnected()

	respondJSON(w, http.StatusOK, StatusResponse{
		Status:                 "running",
		MQTT:                   MQTTStatus{Connected: connected, Broker: h.broker},
		KnownFaces:             st.KnownFaces,
		CameraURL:              h.cameraURL,
		FaceRecognitionEnabled: st.RecognitionEnabled,
		Doors:                  doorResponses(st.Doors),
	})
}

// Doors handles GET /api/v1/doors.
func (h *StatusHandler) Doors(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, doorResponses(h.engine.Status().Doors))
}
