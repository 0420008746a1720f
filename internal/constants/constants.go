// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face matching constants
const (
	// DefaultMatchThreshold is the maximum cosine distance for two faces to be the same person
	// Lower values = stricter matching
	DefaultMatchThreshold = 0.6

	// DefaultFaceSize is the edge length (px) of the square face crop sent to the embedder
	DefaultFaceSize = 160

	// MinFaceSizePx is the smallest crop edge worth embedding
	MinFaceSizePx = 10
)

// Capture constants
const (
	// DefaultCaptureAttempts bounds how many frames a SEND/GET cycle grabs looking for a face
	DefaultCaptureAttempts = 5

	// DefaultCaptureInterval is the pause between capture attempts
	DefaultCaptureInterval = 200 * time.Millisecond

	// DefaultPreviewFPS is the target frame rate of the live preview loop
	DefaultPreviewFPS = 5

	// JPEGQuality is used whenever frames or face crops are re-encoded
	JPEGQuality = 85
)

// Store keys
const (
	// DoorStateKey is the hash of door name -> {status, userId}
	DoorStateKey = "data_door"

	// RegistryKey holds the face registry snapshot as one JSON value
	RegistryKey = "face_recognition_data"
)

// MQTT defaults
const (
	DefaultQoS byte = 1

	TopicDoorStatus       = "door/status"
	TopicExecute          = "door/execute"
	TopicRecognition      = "RECOGNITION"
	TopicDoorOpen         = "door/open"
	TopicDoorsFull        = "door/full"
	TopicRecognitionError = "face/error"
	TopicDoorError        = "door/error"
	TopicSystemError      = "locker/error"
	TopicPresence         = "status/client"

	// PublishTimeout bounds how long a publish waits for the broker ack
	PublishTimeout = 2 * time.Second

	// ConnectTimeout bounds the initial broker connection
	ConnectTimeout = 5 * time.Second
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100

	// FrameChannelBuffer is the buffer size of each preview stream listener
	FrameChannelBuffer = 2
)
