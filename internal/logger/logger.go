package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/auto-dns/container-deployer/internal/config"
	"github.com/rs/zerolog"
)

func SetupLogger(cfg *config.LoggingConfig) zerolog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg *config.LoggingConfig, out io.Writer) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
	}

	levelStr := strings.ToLower(cfg.Level)
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	return zerolog.New(consoleWriter).
		Level(level).
		With().
		Timestamp().
		Str("service", "container_deployer").
		Str("host", hostname).
		Logger()
}
