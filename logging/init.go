package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// init instantiates the global logger and sets up global zerolog parameters.
func init() {
	// The global logger is disabled until the entry point configures it.
	GlobalLogger = NewLogger(zerolog.Disabled, false)

	// Set up stack trace support and the UNIX timestamp format.
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}
