package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"trace":   "TRACE",
		"debug":   "DEBUG",
		"INFO":    "INFO",
		" warn ":  "WARN",
		"error":   "ERROR",
		"unknown": "INFO",
		"":        "INFO",
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLogLevel(in), "level %q", in)
	}
}

func TestLoggerFallsBackWithoutInit(t *testing.T) {
	origCLI, origServer := CLILogger, ServerLogger
	CLILogger, ServerLogger = nil, nil
	t.Cleanup(func() { CLILogger, ServerLogger = origCLI, origServer })

	logger := Logger()
	require.NotNil(t, logger)
	require.Same(t, logger, Logger())
	logger.Info("fallback logger ready", zap.String("component", "test"))
}

func TestLoggerPrefersServerLogger(t *testing.T) {
	origCLI, origServer := CLILogger, ServerLogger
	t.Cleanup(func() { CLILogger, ServerLogger = origCLI, origServer })

	InitCLILogger("wishmail-test", true)
	require.NotNil(t, CLILogger)
	require.Same(t, CLILogger, Logger())

	t.Setenv("WISHMAIL_ENV", "test")
	InitServerLogger("wishmail-test", "debug", "structured")
	require.NotNil(t, ServerLogger)
	require.Same(t, ServerLogger, Logger())
	ServerLogger.Debug("structured logger ready", zap.Int("attempt", 1))
}

func TestInitServerLoggerSimpleProfile(t *testing.T) {
	origServer := ServerLogger
	t.Cleanup(func() { ServerLogger = origServer })

	InitServerLogger("wishmail-test", "warn", "Simple")
	require.NotNil(t, ServerLogger)
	ServerLogger.Warn("console logger ready")
}

func TestResolvePort(t *testing.T) {
	port, err := resolvePort("[::]:9191")
	require.NoError(t, err)
	assert.Equal(t, 9191, port)

	_, err = resolvePort("no-port")
	require.Error(t, err)
}
