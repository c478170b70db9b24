package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	consoleTimeFormat = "15:04:05"
	fileDateLayout    = "02-01-2006"
)

type Config struct {
	Level   string `mapstructure:"level"`
	Debug   bool   `mapstructure:"debug"`
	Dir     string `mapstructure:"dir"`
	NoColor bool   `mapstructure:"no_color"`
}

// Logger wraps zerolog with the field helpers used across the crawler.
// The zero value is not usable; build one with New or Nop.
type Logger struct {
	logger zerolog.Logger
	file   *os.File
}

// New builds a logger writing to stderr and, when cfg.Dir is set, to a
// daily file named after the current date. The console honours the debug
// switch while the file always records debug output.
func New(cfg Config) (*Logger, error) {
	consoleLevel := parseLevel(cfg.Level)
	if cfg.Debug {
		consoleLevel = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: consoleTimeFormat,
		NoColor:    cfg.NoColor,
	}
	writers := []io.Writer{levelFilter{w: zerolog.MultiLevelWriter(console), min: consoleLevel}}

	var file *os.File
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log dir: %w", err)
		}
		path := filepath.Join(cfg.Dir, time.Now().Format(fileDateLayout)+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writers = append(writers, levelFilter{w: zerolog.MultiLevelWriter(f), min: zerolog.DebugLevel})
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()

	return &Logger{logger: zl, file: file}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

func (l *Logger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger(), file: l.file}
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{logger: ctx.Logger(), file: l.file}
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger(), file: l.file}
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// levelFilter drops events below min before they reach w.
type levelFilter struct {
	w   zerolog.LevelWriter
	min zerolog.Level
}

func (f levelFilter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f levelFilter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < f.min {
		return len(p), nil
	}
	return f.w.WriteLevel(level, p)
}
