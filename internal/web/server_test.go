package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vusociu/datn/internal/broadcast"
	"github.com/vusociu/datn/internal/config"
	"github.com/vusociu/datn/internal/doorbank"
	"github.com/vusociu/datn/internal/locker"
	"github.com/vusociu/datn/internal/metrics"
	"github.com/vusociu/datn/internal/web/handlers"
)

type stubEngine struct{}

func (stubEngine) Status() locker.Status {
	return locker.Status{KnownFaces: 1, Doors: []doorbank.Door{{Name: "door_1", Status: doorbank.StatusEmpty}}}
}

type stubBus struct {
	published []string
}

func (b *stubBus) IsConnected() bool { return true }

func (b *stubBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.published = append(b.published, topic+"="+string(payload))
	return nil
}

func newTestServer(t *testing.T) (*Server, *stubBus) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.SetState(1, 0)

	bus := &stubBus{}
	s := NewServer(config.WebConfig{Host: "127.0.0.1", Port: 0}, Deps{
		Engine:  stubEngine{},
		Bus:     bus,
		Frames:  broadcast.New[[]byte](1),
		Events:  handlers.NewEventFeed(),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Broker:  "tcp://localhost:1883",
	}, nil)
	return s, bus
}

func TestServer_Routes(t *testing.T) {
	s, bus := newTestServer(t)

	tests := []struct {
		method   string
		path     string
		body     string
		wantCode int
		contains string
	}{
		{http.MethodGet, "/api/v1/health", "", http.StatusOK, `"ok"`},
		{http.MethodGet, "/status", "", http.StatusOK, `"known_faces":1`},
		{http.MethodGet, "/api/v1/status", "", http.StatusOK, `"status":"running"`},
		{http.MethodGet, "/api/v1/doors", "", http.StatusOK, `"door_1"`},
		{http.MethodPost, "/test_publish", `{"topic":"door/execute","message":"GET"}`, http.StatusOK, `"success":true`},
		{http.MethodPost, "/test_publish", `{}`, http.StatusBadRequest, `required`},
		{http.MethodGet, "/metrics", "", http.StatusOK, "locker_known_faces 1"},
		{http.MethodGet, "/", "", http.StatusOK, "Face Locker"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}

	require.Equal(t, []string{"door/execute=GET"}, bus.published)
}
