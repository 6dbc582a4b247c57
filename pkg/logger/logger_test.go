package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := newLogger()

	assert.NotNil(t, logger)
	formatter, ok := logger.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.Equal(t, time.RFC3339Nano, formatter.TimestampFormat)
	assert.True(t, formatter.FullTimestamp)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
}

func TestGetLogger_WithContextLogger(t *testing.T) {
	customLogger := logrus.NewEntry(logrus.New()).WithField("tree", "skills")
	ctx := WithLogger(context.Background(), customLogger)

	retrieved := G(ctx)
	assert.Equal(t, "skills", retrieved.Data["tree"])
}

func TestGetLogger_WithoutContextLogger(t *testing.T) {
	retrieved := G(context.Background())
	assert.Equal(t, L.Logger, retrieved.Logger)
}

func TestWithFields(t *testing.T) {
	ctx := WithLogger(context.Background(), logrus.NewEntry(logrus.New()).WithField("root", "/corpus"))
	ctx = WithFields(ctx, logrus.Fields{"skill": "postgresql-security"})

	entry := G(ctx)
	assert.Equal(t, "/corpus", entry.Data["root"])
	assert.Equal(t, "postgresql-security", entry.Data["skill"])
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	setLoggerFormat(logger, "json")

	ctx := WithLogger(context.Background(), logrus.NewEntry(logger))
	G(ctx).WithField("rule", "broken-link").Info("finding")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["logLevel"])
	assert.Equal(t, "finding", entry["message"])
	assert.Equal(t, "broken-link", entry["rule"])

	timestamp, ok := entry["timestamp"].(string)
	require.True(t, ok)
	_, err := time.Parse(time.RFC3339Nano, timestamp)
	assert.NoError(t, err)
}

func TestConfigure(t *testing.T) {
	originalLevel := L.Logger.GetLevel()
	originalOut := L.Logger.Out
	originalFormatter := L.Logger.Formatter
	defer func() {
		L.Logger.SetLevel(originalLevel)
		L.Logger.SetOutput(originalOut)
		L.Logger.Formatter = originalFormatter
	}()

	var buf bytes.Buffer
	require.NoError(t, Configure("debug", "json", &buf))
	assert.Equal(t, logrus.DebugLevel, L.Logger.GetLevel())

	G(context.Background()).Debug("loaded skill")
	assert.True(t, strings.Contains(buf.String(), `"message":"loaded skill"`))

	err := Configure("verbose", "text", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
