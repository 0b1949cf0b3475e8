package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Level
	}{
		{"trace", "trace", LevelTrace},
		{"debug", "debug", LevelDebug},
		{"info", "info", LevelInfo},
		{"warn", "warn", LevelWarn},
		{"warning alias", "warning", LevelWarn},
		{"error", "error", LevelError},
		{"fatal", "fatal", LevelFatal},
		{"unknown defaults to warn", "chatty", LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestDefaultLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewDefaultLogger(LevelWarn, &buf)

	l.Info("should not appear")
	assert.Empty(t, buf.String())

	l.Warn("should appear")
	assert.Contains(t, buf.String(), "should appear")
	assert.Contains(t, buf.String(), "[WARN]")
}

func TestDefaultLogger_WithField(t *testing.T) {
	var buf bytes.Buffer
	l := NewDefaultLogger(LevelInfo, &buf)

	child := l.WithField("group", "g1")
	child.Info("hello")

	assert.True(t, strings.Contains(buf.String(), "group=g1"))
}

func TestDefaultLogger_WithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	l := NewDefaultLogger(LevelInfo, &buf)

	_ = l.WithFields(map[string]interface{}{"a": 1})
	l.Info("plain")

	assert.False(t, strings.Contains(buf.String(), "a=1"))
}

func TestNullLogger_DiscardsEverything(t *testing.T) {
	var l Logger = NullLogger{}
	l.Error("boom")
	l.WithField("x", 1).Fatal("still nothing")
}
