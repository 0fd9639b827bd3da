package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	log := New()
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Msg("test message")

	assert.Contains(t, buf.String(), "test message")
}

func TestNewWithLevel(t *testing.T) {
	tests := []struct {
		level     string
		want      zerolog.Level
		debugSeen bool
	}{
		{"debug", zerolog.DebugLevel, true},
		{"WARN", zerolog.WarnLevel, false},
		{"", zerolog.InfoLevel, false},
		{"chatty", zerolog.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			log := NewWithLevel(buf, tt.level)
			assert.Equal(t, tt.want, log.GetLevel())

			log.Debug().Msg("rows parsed")
			assert.Equal(t, tt.debugSeen, bytes.Contains(buf.Bytes(), []byte("rows parsed")))
		})
	}
}

func TestWithContext(t *testing.T) {
	ctx := WithContext(context.Background(), New())
	assert.NotNil(t, ctx.Value(LoggerKey))
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf))

	retrieved := FromContext(ctx)
	retrieved.Info().Msg("test")

	assert.NotZero(t, buf.Len(), "expected log output from retrieved logger")
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	assert.NotEqual(t, zerolog.Disabled, log.GetLevel())
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf), map[string]interface{}{
		"run_id":    "123",
		"customers": 42,
	})

	log.Info().Msg("computed")

	output := buf.String()
	require.NotEmpty(t, output)
	assert.Contains(t, output, `"run_id":"123"`)
	assert.Contains(t, output, `"customers":42`)
}
