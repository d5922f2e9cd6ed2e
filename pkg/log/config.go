package log

import (
	"fmt"
	"strings"
)

// Config declaratively describes a logger for construction from a config file.
type Config struct {
	// Level is the minimum level name: debug, info, warn, error, fatal.
	Level string `json:"level" yaml:"level"`
	// Format selects the formatter: json (default) or text.
	Format string `json:"format" yaml:"format"`
	// Output selects the sink: console (default), null, or a file path.
	Output string `json:"output" yaml:"output"`
}

// ParseLevel maps a level name to its Level. The empty string means InfoLevel.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	}
	return InfoLevel, fmt.Errorf("log: unknown level %q", s)
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "json":
		formatter = &JSONFormatter{}
	case "text":
		formatter = &TextFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	var output Output
	switch cfg.Output {
	case "", "console":
		output = NewConsoleOutput()
	case "null":
		output = NullOutput{}
	default:
		fo, err := NewFileOutput(cfg.Output)
		if err != nil {
			return nil, fmt.Errorf("log: open output: %w", err)
		}
		output = fo
	}

	return NewLogger(WithLevel(level), WithFormatter(formatter), WithOutput(output)), nil
}

// NewNopLogger returns a logger that discards everything. Useful in tests.
func NewNopLogger() Logger {
	return NewLogger(WithLevel(FatalLevel), WithOutput(NullOutput{}))
}
