package log

import (
	"context"
	"fmt"
	"os"
)

// osExit is swapped out by tests covering Fatal.
var osExit = os.Exit

func (l *BaseLogger) log(level Level, msg string, fields []Field) {
	if level >= l.level {
		l.slogLogger.LogAttrs(context.Background(), toSlogLevel(level), msg, attrsFromFieldSlice(fields)...)
	}
	if level == FatalLevel {
		osExit(1)
	}
}

func (l *BaseLogger) logf(level Level, format string, args []interface{}) {
	if level >= l.level {
		l.slogLogger.LogAttrs(context.Background(), toSlogLevel(level), fmt.Sprintf(format, args...))
	}
	if level == FatalLevel {
		osExit(1)
	}
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }
func (l *BaseLogger) Fatal(msg string, fields ...Field) { l.log(FatalLevel, msg, fields) }

func (l *BaseLogger) Debugf(msg string, args ...interface{}) { l.logf(DebugLevel, msg, args) }
func (l *BaseLogger) Infof(msg string, args ...interface{})  { l.logf(InfoLevel, msg, args) }
func (l *BaseLogger) Warnf(msg string, args ...interface{})  { l.logf(WarnLevel, msg, args) }
func (l *BaseLogger) Errorf(msg string, args ...interface{}) { l.logf(ErrorLevel, msg, args) }
func (l *BaseLogger) Fatalf(msg string, args ...interface{}) { l.logf(FatalLevel, msg, args) }

// With returns a logger whose entries carry the additional fields.
func (l *BaseLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	c := l.clone()
	for _, f := range fields {
		c.fields[f.Key] = f.Value
	}
	c.slogLogger = l.slogLogger.With(attrsToAny(attrsFromFieldSlice(fields))...)
	return c
}

// WithField returns a logger with a single additional field.
func (l *BaseLogger) WithField(key string, value interface{}) Logger {
	return l.With(Field{Key: key, Value: value})
}

// WithFields returns a logger with all fields from the map attached.
func (l *BaseLogger) WithFields(fields Fields) Logger {
	if len(fields) == 0 {
		return l
	}
	c := l.clone()
	for k, v := range fields {
		c.fields[k] = v
	}
	c.slogLogger = l.slogLogger.With(attrsToAny(attrsFromMap(fields))...)
	return c
}

// WithError returns a logger that tags entries with the error.
func (l *BaseLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.With(Err(err))
}

// WithContext attaches the standard request/trace fields found in ctx.
func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	fields := ContextExtractor(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.WithFields(fields)
}

// WithComponent tags entries with a component name.
func (l *BaseLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

// SetLevel sets the minimum level for this logger.
func (l *BaseLogger) SetLevel(level Level) { l.level = level }

// GetLevel returns the current minimum level.
func (l *BaseLogger) GetLevel() Level { return l.level }

func (l *BaseLogger) clone() *BaseLogger {
	fields := make(Fields, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	c := *l
	c.fields = fields
	return &c
}
