package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLogger struct{}

func (failingLogger) Log(ctx context.Context, event *AuditEvent) error {
	return errors.New("sink unavailable")
}

func TestLogrusLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	logger := NewLogrusLogger(log)
	event := NewEvent(EventTypeGrantCreate, "admin-1", ResourceTypeGrant, "grant-1").With("target_role", "parent")
	event.Message = "grant created"

	require.NoError(t, logger.Log(context.Background(), event))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "authz.grant_create", line["event_type"])
	assert.Equal(t, "admin-1", line["actor_id"])
	assert.Equal(t, "parent", line["meta_target_role"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "grant created", line["msg"])
}

func TestMemoryLogger(t *testing.T) {
	logger := NewMemoryLogger()
	ctx := context.Background()

	require.NoError(t, logger.Log(ctx, NewEvent(EventTypeShareCreate, "u1", ResourceTypeShare, "s1")))
	require.NoError(t, logger.Log(ctx, NewEvent(EventTypeGrantRevoke, "u1", ResourceTypeGrant, "g1")))

	assert.Len(t, logger.Events(), 2)
	shares := logger.OfType(EventTypeShareCreate)
	require.Len(t, shares, 1)
	assert.Equal(t, "s1", shares[0].ResourceID)
}

func TestMultiLogger(t *testing.T) {
	mem := NewMemoryLogger()
	multi := NewMultiLogger(failingLogger{}, mem)

	err := multi.Log(context.Background(), NewEvent(EventTypeOrderComplete, "u1", ResourceTypeOrder, "o1"))
	assert.Error(t, err)
	assert.Len(t, mem.Events(), 1, "later loggers still receive the event")
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop().Log(context.Background(), NewEvent(EventTypeContentCreate, "", ResourceTypeContent, "c1")))
}
