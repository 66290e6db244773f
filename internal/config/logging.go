package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

func parseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.WarnLevel, nil
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("logging.level %q is not a valid level", level)
	}
	return l, nil
}

// NewLogger builds the console logger for level. An invalid level falls back
// to warn.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	l, err := parseLevel(level)
	if err != nil {
		l = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(l).
		With().Timestamp().Logger()
}
