// ==============================================================================
// LOGGER PACKAGE - pkg/logger/logger.go
// ==============================================================================
package logger

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

type Logger interface {
	Info(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Debug(message string, fields map[string]interface{})
	Fatal(message string, fields map[string]interface{})
}

var levels = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
	"fatal": 4,
}

type jsonLogger struct {
	serviceName string
	minLevel    int
	logger      *log.Logger
}

// New logs at info and above. Use NewWithLevel to honour LOG_LEVEL.
func New(serviceName string) Logger {
	return NewWithLevel(serviceName, "info")
}

func NewWithLevel(serviceName, level string) Logger {
	return newJSON(serviceName, level, os.Stdout)
}

func newJSON(serviceName, level string, w io.Writer) *jsonLogger {
	min, ok := levels[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		min = levels["info"]
	}
	return &jsonLogger{
		serviceName: serviceName,
		minLevel:    min,
		logger:      log.New(w, "", 0),
	}
}

func (l *jsonLogger) log(level, message string, fields map[string]interface{}) {
	if levels[level] < l.minLevel {
		return
	}
	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     level,
		"service":   l.serviceName,
		"message":   message,
	}

	for k, v := range fields {
		if e, ok := v.(error); ok {
			v = e.Error()
		}
		entry[k] = v
	}

	jsonData, _ := json.Marshal(entry)
	l.logger.Println(string(jsonData))
}

func (l *jsonLogger) Info(message string, fields map[string]interface{}) {
	l.log("info", message, fields)
}

func (l *jsonLogger) Error(message string, fields map[string]interface{}) {
	l.log("error", message, fields)
}

func (l *jsonLogger) Warn(message string, fields map[string]interface{}) {
	l.log("warn", message, fields)
}

func (l *jsonLogger) Debug(message string, fields map[string]interface{}) {
	l.log("debug", message, fields)
}

func (l *jsonLogger) Fatal(message string, fields map[string]interface{}) {
	l.log("fatal", message, fields)
	os.Exit(1)
}

func NewNop() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (l *nopLogger) Info(message string, fields map[string]interface{})  {}
func (l *nopLogger) Error(message string, fields map[string]interface{}) {}
func (l *nopLogger) Warn(message string, fields map[string]interface{})  {}
func (l *nopLogger) Debug(message string, fields map[string]interface{}) {}
func (l *nopLogger) Fatal(message string, fields map[string]interface{}) {}
