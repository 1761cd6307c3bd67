package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/eventhub/core/logger"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json formatter emits parseable records", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(
			logger.WithJSONFormatter(),
			logger.WithOutput(&buf),
			logger.WithAttr(slog.String("service", "realtime")),
		)

		log.Info("hello", logger.ConnectionID("conn-1"))

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "hello", record["msg"])
		assert.Equal(t, "realtime", record["service"])
		assert.Equal(t, "conn-1", record["connection_id"])
	})

	t.Run("level filters records", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(
			logger.WithLevel(slog.LevelWarn),
			logger.WithOutput(&buf),
		)

		log.Info("dropped")
		assert.Zero(t, buf.Len())

		log.Warn("kept")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("development preset logs debug", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(logger.WithDevelopment("eventhub"), logger.WithOutput(&buf))

		log.Debug("verbose")

		out := buf.String()
		assert.Contains(t, out, "verbose")
		assert.Contains(t, out, "app=eventhub")
	})
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	t.Run("zero values produce empty attrs", func(t *testing.T) {
		t.Parallel()
		assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
		assert.True(t, logger.ConnectionID("").Equal(slog.Attr{}))
		assert.True(t, logger.SubjectID("").Equal(slog.Attr{}))
		assert.True(t, logger.Role("").Equal(slog.Attr{}))
		assert.True(t, logger.Channel("").Equal(slog.Attr{}))
		assert.True(t, logger.Channels(nil).Equal(slog.Attr{}))
		assert.True(t, logger.EventType("").Equal(slog.Attr{}))
		assert.True(t, logger.RetryAfter(0).Equal(slog.Attr{}))
		assert.True(t, logger.Errors(nil, nil).Equal(slog.Attr{}))
	})

	t.Run("populated values carry their keys", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "connection_id", logger.ConnectionID("c").Key)
		assert.Equal(t, "subject_id", logger.SubjectID("s").Key)
		assert.Equal(t, "role", logger.Role("member").Key)
		assert.Equal(t, "channel", logger.Channel("orders").Key)
		assert.Equal(t, "channels", logger.Channels([]string{"a"}).Key)
		assert.Equal(t, "message_type", logger.MessageType("subscribe").Key)
		assert.Equal(t, "retry_after", logger.RetryAfter(time.Second).Key)
		assert.Equal(t, "error", logger.Error(errors.New("boom")).Key)
		assert.Equal(t, "delivered", logger.Delivered(3).Key)
	})

	t.Run("errors groups non-nil errors in order", func(t *testing.T) {
		t.Parallel()
		attr := logger.Errors(errors.New("first"), nil, errors.New("third"))
		require.Equal(t, "errors", attr.Key)
		grouped := attr.Value.Group()
		require.Len(t, grouped, 2)
		assert.Equal(t, "0", grouped[0].Key)
		assert.Equal(t, "2", grouped[1].Key)
	})
}
