package cmdutil

import (
	"io"
	"sync"

	"github.com/paularlott/gisadmin/internal/config"

	"github.com/paularlott/cli"
	"github.com/rs/zerolog/log"
)

var (
	logOnce   sync.Once
	logCloser io.Closer
	logErr    error
)

// InitLogging applies the log flags once per process.
func InitLogging(cmd *cli.Command) error {
	logOnce.Do(func() {
		logCloser, logErr = config.InitCommonConfig(cmd)
	})
	return logErr
}

// CloseLogging releases the log file, if one was opened.
func CloseLogging() {
	if logCloser != nil {
		if err := logCloser.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close log file")
		}
	}
}
