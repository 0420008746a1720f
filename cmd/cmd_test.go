package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vusociu/datn/internal/config"
	"github.com/vusociu/datn/internal/doorbank"
	"github.com/vusociu/datn/internal/identity"
)

func intPtr(v int) *int { return &v }

func TestBuildLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := buildLogger(&buf, "json", false)
	logger.Debug("hidden")
	logger.Info("shown", "door", "door_1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "door_1", entry["door"])

	buf.Reset()
	logger = buildLogger(&buf, "text", true)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "locker dev")
	assert.Contains(t, out.String(), "Commit:")
}

func TestApplyServeFlags(t *testing.T) {
	cfg := &config.Config{Web: config.WebConfig{Host: "0.0.0.0", Port: 5000}}
	require.NoError(t, serveCmd.Flags().Set("port", "8081"))
	t.Cleanup(func() {
		_ = serveCmd.Flags().Set("port", "0")
		serveCmd.Flags().Lookup("port").Changed = false
	})

	applyServeFlags(serveCmd, cfg)
	assert.Equal(t, 8081, cfg.Web.Port)
	assert.Equal(t, "0.0.0.0", cfg.Web.Host, "unchanged flag keeps env value")
}

func TestPrintDoors(t *testing.T) {
	records := map[string]doorbank.Record{
		"door_2": {Status: doorbank.StatusUsed, UserID: intPtr(3)},
		"door_9": {Status: doorbank.StatusEmpty},
	}

	var out bytes.Buffer
	require.NoError(t, printDoors(&out, []string{"door_1", "door_2"}, records, false))

	text := out.String()
	assert.Contains(t, text, "DOOR")
	assert.Regexp(t, `door_2\s+USED\s+3\s+true`, text)
	assert.Regexp(t, `door_1\s+EMPTY\s+-\s+false`, text)
	assert.Contains(t, text, `record for unknown door "door_9"`)
	assert.Less(t, bytes.Index(out.Bytes(), []byte("door_1")), bytes.Index(out.Bytes(), []byte("door_2")))
}

func TestPrintDoors_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printDoors(&out, []string{"door_1"}, nil, true))

	var got struct {
		Doors []doorbank.Door `json:"doors"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got.Doors, 1)
	assert.Equal(t, "door_1", got.Doors[0].Name)
	assert.True(t, got.Doors[0].Free())
}

func TestPrintRegistry(t *testing.T) {
	snap := identity.Snapshot{
		KnownIDs:       []int{0, 2},
		NextID:         1,
		KnownEncodings: [][]float32{{1, 0, 0}, {0, 1, 0}},
	}

	var out bytes.Buffer
	require.NoError(t, printRegistry(&out, snap, false))
	assert.Contains(t, out.String(), "Known faces:   2")
	assert.Contains(t, out.String(), "Identity IDs:  [0 2]")
	assert.Contains(t, out.String(), "Next ID:       1")
	assert.Contains(t, out.String(), "Embedding dim: 3")

	out.Reset()
	require.NoError(t, printRegistry(&out, identity.Snapshot{}, true))
	assert.JSONEq(t, `{"knownIds":null,"nextId":0,"embeddingDim":0}`, out.String())
}
