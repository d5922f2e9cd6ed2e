package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const defaultTimestampFormat = time.RFC3339Nano

// JSONFormatter renders each entry as a single JSON object per line.
type JSONFormatter struct {
	// TimestampFormat overrides the default RFC3339Nano timestamp layout.
	TimestampFormat string
	// PrettyPrint indents the output. Intended for debugging only.
	PrettyPrint bool
}

// Format implements Formatter.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Fields)+5)
	for k, v := range entry.Fields {
		data[k] = v
	}

	layout := f.TimestampFormat
	if layout == "" {
		layout = defaultTimestampFormat
	}
	data["ts"] = entry.Timestamp.Format(layout)
	data["level"] = entry.Level.String()
	data["msg"] = entry.Message
	if entry.Caller != "" {
		data["caller"] = entry.Caller
	}
	if entry.Error != nil {
		data["error"] = entry.Error.Error()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if f.PrettyPrint {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(data); err != nil {
		return nil, fmt.Errorf("log: format entry: %w", err)
	}
	return buf.Bytes(), nil
}

// TextFormatter renders entries as "ts LEVEL msg k=v k=v" lines.
type TextFormatter struct {
	// TimestampFormat overrides the default RFC3339Nano timestamp layout.
	TimestampFormat string
	// DisableTimestamp drops the leading timestamp.
	DisableTimestamp bool
}

// Format implements Formatter.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer

	if !f.DisableTimestamp {
		layout := f.TimestampFormat
		if layout == "" {
			layout = defaultTimestampFormat
		}
		buf.WriteString(entry.Timestamp.Format(layout))
		buf.WriteByte(' ')
	}
	fmt.Fprintf(&buf, "%-5s %s", entry.Level.String(), entry.Message)

	if entry.Error != nil {
		fmt.Fprintf(&buf, " error=%q", entry.Error.Error())
	}

	// Deterministic field order.
	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := entry.Fields[k].(type) {
		case string:
			fmt.Fprintf(&buf, " %s=%q", k, v)
		default:
			fmt.Fprintf(&buf, " %s=%v", k, v)
		}
	}

	if entry.Caller != "" {
		fmt.Fprintf(&buf, " caller=%s", entry.Caller)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
