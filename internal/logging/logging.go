// Package logging provides leveled log helpers over the standard logger.
//
// The level comes from the LOG_LEVEL environment variable (debug, info,
// warn, error); DEBUG=1 forces debug. Info is the default.
package logging

import (
	"log"
	"os"
	"strings"
	"sync"
)

// Level is the severity of a log message
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	level     Level
	levelOnce sync.Once
)

func initLevel() {
	levelOnce.Do(func() {
		level = parseLevel(os.Getenv("DEBUG"), os.Getenv("LOG_LEVEL"))
	})
}

func parseLevel(debug, logLevel string) Level {
	switch strings.ToLower(debug) {
	case "1", "true", "yes", "on":
		return LevelDebug
	}

	switch strings.ToLower(logLevel) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// GetLevel returns the current log level
func GetLevel() Level {
	initLevel()
	return level
}

// SetLevel overrides the environment-derived level
func SetLevel(l Level) {
	initLevel()
	level = l
}

// Debug logs only when debug logging is enabled
func Debug(format string, args ...any) {
	if GetLevel() <= LevelDebug {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// Info logs an informational message
func Info(format string, args ...any) {
	if GetLevel() <= LevelInfo {
		log.Printf("[INFO] "+format, args...)
	}
}

// Warn logs a warning
func Warn(format string, args ...any) {
	if GetLevel() <= LevelWarn {
		log.Printf("[WARN] "+format, args...)
	}
}

// Error logs an error
func Error(format string, args ...any) {
	if GetLevel() <= LevelError {
		log.Printf("[ERROR] "+format, args...)
	}
}

// Fatal logs and exits
func Fatal(format string, args ...any) {
	log.Fatalf("[FATAL] "+format, args...)
}
