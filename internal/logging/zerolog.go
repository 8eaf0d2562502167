package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// NewZerolog returns the logger used by the database and influx managers and
// the dispatcher. Unknown levels fall back to info.
func NewZerolog(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = stdout
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
