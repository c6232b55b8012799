// Package logx configures the process-wide zerolog logger.
//
// The TUI owns the terminal, so logs go to a file in the data directory
// rather than stderr.
package logx

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init points the global logger at <dataDir>/chartchat.log. The file is
// created with 0600: transcripts and asset URLs may appear in debug output.
func Init(dataDir, level string) error {
	logPath := filepath.Join(dataDir, "chartchat.log")
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return err
	}

	log.Logger = zerolog.New(f).With().Timestamp().Logger()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(lvl)
	return nil
}

// Discard routes the global logger to nowhere. Used by tests.
func Discard() {
	log.Logger = zerolog.Nop()
}

func Debug() *zerolog.Event { return log.Debug() }

func Info() *zerolog.Event { return log.Info() }

func Warn() *zerolog.Event { return log.Warn() }

func Error() *zerolog.Event { return log.Error() }
