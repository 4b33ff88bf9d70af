package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/yaoapp/kun/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOutput is the rotated log file, nil when logging to stderr.
var LogOutput io.WriteCloser

// SetupLogging applies level, formatter and output from the config.
func SetupLogging(cfg Config) {
	switch strings.ToUpper(cfg.LogLevel) {
	case "TRACE":
		log.SetLevel(log.TraceLevel)
	case "DEBUG":
		log.SetLevel(log.DebugLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}

	log.SetFormatter(log.TEXT)
	if strings.ToUpper(cfg.LogMode) == "JSON" {
		log.SetFormatter(log.JSON)
	}

	CloseLog()
	if cfg.LogFile == "" {
		log.SetOutput(os.Stderr)
		return
	}

	logfile, err := filepath.Abs(cfg.LogFile)
	if err != nil {
		log.Warn("Invalid LOG_FILE %s: %v", cfg.LogFile, err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(logfile), 0755); err != nil {
		log.Warn("Could not create log directory for %s: %v", logfile, err)
		return
	}

	LogOutput = &lumberjack.Logger{
		Filename:   logfile,
		MaxSize:    cfg.LogMaxSize, // megabytes
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge, // days
		LocalTime:  true,
	}
	log.SetOutput(LogOutput)
}

// CloseLog closes the rotated log file if one is open.
func CloseLog() {
	if LogOutput == nil {
		return
	}
	if err := LogOutput.Close(); err != nil {
		log.Error("%v", err)
	}
	LogOutput = nil
}
