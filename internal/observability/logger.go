package observability

import (
	"io"
	"os"
	"time"

	logs "github.com/danmuck/rndcctl/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the structured request logger for app, following the
// level chosen by the logging package. A nil out writes to stdout.
func InitLogger(app string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).
		Level(logs.Logger().GetLevel()).
		With().
		Timestamp().
		Str("app", app).
		Logger()
	log.Logger = logger
	return logger
}
