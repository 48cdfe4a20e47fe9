// Package logging configures the shared logrus logger.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log level and destination.
type Config struct {
	Level string `yaml:"level"`
	// File enables rotating file output when set.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	Caller     bool   `yaml:"report_caller"`
}

var (
	mu        sync.Mutex
	logWriter *lumberjack.Logger
)

// Formatter renders entries as
//
//	[2026-10-14 09:30:00] [a1b2c3d4] [info ] message | backend=ollama, mode=hybrid
//
// Fields are sorted by key. request_id is pulled into the prefix.
type Formatter struct{}

// Format implements logrus.Formatter.
func (f *Formatter) Format(entry *log.Entry) ([]byte, error) {
	buffer := entry.Buffer
	if buffer == nil {
		buffer = &bytes.Buffer{}
	}

	reqID := "--------"
	if id, ok := entry.Data["request_id"].(string); ok && id != "" {
		reqID = id
	}
	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}

	fmt.Fprintf(buffer, "[%s] [%s] [%-5s] ", entry.Time.Format("2006-01-02 15:04:05"), reqID, level)
	if entry.Caller != nil {
		fmt.Fprintf(buffer, "[%s:%d] ", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}
	buffer.WriteString(strings.TrimRight(entry.Message, "\r\n"))

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != "request_id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i == 0 {
			buffer.WriteString(" |")
		} else {
			buffer.WriteString(",")
		}
		fmt.Fprintf(buffer, " %s=%v", k, entry.Data[k])
	}
	buffer.WriteByte('\n')
	return buffer.Bytes(), nil
}

// Setup configures the standard logrus logger from cfg and returns it.
// Calling Setup again replaces any previously opened log file.
func Setup(cfg Config) (*log.Logger, error) {
	logger := log.StandardLogger()
	if err := Configure(logger, cfg, os.Stderr); err != nil {
		return nil, err
	}
	return logger, nil
}

// Configure applies cfg to logger. Without a file, output goes to fallback.
func Configure(logger *log.Logger, cfg Config, fallback io.Writer) error {
	level := log.InfoLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("logging: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)
	logger.SetFormatter(&Formatter{})
	logger.SetReportCaller(cfg.Caller)

	mu.Lock()
	defer mu.Unlock()
	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	if cfg.File == "" {
		logger.SetOutput(fallback)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return fmt.Errorf("logging: create log directory: %w", err)
	}
	logWriter = &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    positiveOr(cfg.MaxSizeMB, 10),
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	logger.SetOutput(logWriter)
	return nil
}

// Close flushes and closes the log file, if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logWriter == nil {
		return nil
	}
	err := logWriter.Close()
	logWriter = nil
	return err
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
