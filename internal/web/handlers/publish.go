package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// RawPublisher sends a message to a bus topic.
type RawPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// PublishHandler lets operators inject bus messages for testing.
type PublishHandler struct {
	publisher RawPublisher
	logger    *slog.Logger
}

// NewPublishHandler creates a publish handler.
func NewPublishHandler(publisher RawPublisher, logger *slog.Logger) *PublishHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishHandler{publisher: publisher, logger: logger}
}

// PublishRequest is the body of POST /test_publish.
type PublishRequest struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

// Publish handles POST /test_publish.
func (h *PublishHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if strings.TrimSpace(req.Topic) == "" || req.Message == "" {
		respondError(w, http.StatusBadRequest, "Both 'topic' and 'message' are required")
		return
	}

	if err := h.publisher.Publish(r.Context(), req.Topic, []byte(req.Message)); err != nil {
		h.logger.Warn("test publish failed", "topic", sanitizeForLog(req.Topic), "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to publish message")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Published '%s' to topic '%s'", req.Message, req.Topic),
	})
}
