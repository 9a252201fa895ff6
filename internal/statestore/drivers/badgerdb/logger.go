package driver_badgerdb

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Replace the logger built into badger with our own
type badgerdbLog struct{}

func badgerdbLogger() *badgerdbLog {
	return &badgerdbLog{}
}

func (l *badgerdbLog) Errorf(f string, v ...interface{}) {
	log.Error().Msg("db: " + fmt.Sprintf(f, v...))
}

func (l *badgerdbLog) Warningf(f string, v ...interface{}) {
	log.Warn().Msg("db: " + fmt.Sprintf(f, v...))
}

func (l *badgerdbLog) Infof(f string, v ...interface{}) {
	log.Debug().Msg("db: " + fmt.Sprintf(f, v...))
}

func (l *badgerdbLog) Debugf(f string, v ...interface{}) {
}
