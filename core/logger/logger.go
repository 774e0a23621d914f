// Package logger captures translation and execution events as newline
// delimited JSON for later inspection.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// EventRecorder is a callback that stores events in an external datastore.
type EventRecorder func(e *Event) error

// Logger records parse and execution events.
type Logger struct {
	Record EventRecorder
}

// NewJSONLinesRecorder creates a Logger that exports events in newline
// delimited JSON object format.
func NewJSONLinesRecorder(w io.Writer) *Logger {
	return &Logger{
		Record: func(e *Event) error {
			entry, err := json.Marshal(e)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

// Event is one log line. Exactly one of the payload fields is set.
type Event struct {
	TimestampMicros int64  `json:"timestamp_micros"`
	Source          string `json:"source,omitempty"`

	Parse *ParseEvent `json:"parse,omitempty"`
	Exec  *ExecEvent  `json:"exec,omitempty"`
}

// ParseEvent describes one translation unit's parse outcome.
type ParseEvent struct {
	Lines            int      `json:"lines"`
	Errors           []string `json:"errors,omitempty"`
	MissingLibraries []string `json:"missing_libraries,omitempty"`
	Plugins          []string `json:"plugins,omitempty"`
}

// ExecEvent describes one harness run.
type ExecEvent struct {
	ExitCode       int   `json:"exit_code"`
	TimedOut       bool  `json:"timed_out"`
	DurationMicros int64 `json:"duration_micros"`
}

func (l *Logger) record(source string, e *Event) error {
	e.TimestampMicros = time.Now().UnixMicro()
	e.Source = source
	return l.Record(e)
}

// ForSource creates a logger that stamps every event with the source name.
func (l *Logger) ForSource(name string) *SourceLogger {
	return &SourceLogger{Logger: l, source: name}
}

// SourceLogger logs events tied to one translation unit.
type SourceLogger struct {
	*Logger
	source string
}

func (s *SourceLogger) RecordParse(pe *ParseEvent) error {
	return s.record(s.source, &Event{Parse: pe})
}

func (s *SourceLogger) RecordExec(ee *ExecEvent) error {
	return s.record(s.source, &Event{Exec: ee})
}
