package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the service logger. Local environments get a human-readable
// console writer; everything else emits JSON for log shipping.
func New(env string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if env == "local" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	return zerolog.New(out).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Str("service", "dreamscale-auth").
		Logger()
}
