package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger with configuration from environment variables.
//
// LOG_LEVEL controls the log level: debug, info, warn, error (default: info).
// LOG_FORMAT selects the output: console (default) or json. Inside Lambda the
// default is json so CloudWatch Logs Insights can index the fields.
func Init() {
	format := os.Getenv("LOG_FORMAT")
	if format == "" && os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		format = "json"
	}
	Configure(os.Getenv("LOG_LEVEL"), format, os.Stderr)
}

// Configure sets the global level and points the global logger at w, as
// JSON lines when format is "json" and as console text otherwise.
func Configure(level, format string, w io.Writer) {
	SetLevel(level)

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if strings.EqualFold(format, "json") {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
}

// SetLevel changes the global level. Unknown values fall back to info.
func SetLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
