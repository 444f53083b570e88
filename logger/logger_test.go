package logger

import (
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		LOG_LEVEL_DEBUG: zerolog.DebugLevel,
		LOG_LEVEL_INFO:  zerolog.InfoLevel,
		LOG_LEVEL_WARN:  zerolog.WarnLevel,
		LOG_LEVEL_ERROR: zerolog.ErrorLevel,
		LOG_LEVEL_FATAL: zerolog.FatalLevel,
		LOG_LEVEL_PANIC: zerolog.PanicLevel,
		"verbose":       zerolog.InfoLevel,
	}
	for name, expected := range cases {
		require.Equal(t, expected, ParseLevel(name), name)
	}
}
