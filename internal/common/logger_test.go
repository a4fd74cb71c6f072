package common

import (
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"trace", log.TraceLevel},
		{"debug", log.DebugLevel},
		{"info", log.InfoLevel},
		{"warn", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"", log.InfoLevel},
		{"bogus", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestTimestampFormat(t *testing.T) {
	// Millisecond resolution only at debug and finer.
	assert.Equal(t, "15:04:05.000", timestampFormat(log.TraceLevel))
	assert.Equal(t, "15:04:05.000", timestampFormat(log.DebugLevel))
	assert.Equal(t, "15:04:05", timestampFormat(log.InfoLevel))
	assert.Equal(t, "15:04:05", timestampFormat(log.WarnLevel))
}

func TestGetLogger_Singleton(t *testing.T) {
	assert.NotNil(t, GetLogger())
	assert.Equal(t, GetLogger(), GetLogger())
}
