package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// EventType represents the type of event
type EventType string

const (
	EventFetch      EventType = "fetch"
	EventImport     EventType = "import"
	EventRename     EventType = "rename"
	EventDropColumn EventType = "drop_column"
	EventFillColumn EventType = "fill_column"
	EventDedupe     EventType = "dedupe"
	EventPersist    EventType = "persist"
	EventQuery      EventType = "query"
	EventError      EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// rank orders levels for filtering; unknown levels rank with debug
func (lv EventLevel) rank() int {
	switch lv {
	case LevelInfo:
		return 1
	case LevelWarning:
		return 2
	case LevelError:
		return 3
	default:
		return 0
	}
}

// Event represents a single event in the collect/clean/serve pipeline
type Event struct {
	Timestamp    time.Time         `json:"ts"`
	Level        EventLevel        `json:"level"`
	Event        EventType         `json:"event"`
	Domain       string            `json:"domain,omitempty"`
	Source       string            `json:"source,omitempty"`
	Path         string            `json:"path,omitempty"`
	Column       string            `json:"column,omitempty"`
	Page         int               `json:"page,omitempty"`
	Rows         int               `json:"rows,omitempty"`
	Percent      float64           `json:"percent,omitempty"`
	Action       string            `json:"action,omitempty"`
	BytesWritten int64             `json:"bytes_written,omitempty"`
	Duration     int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error        string            `json:"error,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger opens events-<timestamp>.jsonl under dir. Events below
// minLevel are dropped.
func NewEventLogger(dir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create event directory: %w", err)
	}

	name := "events-" + time.Now().Format("20060102-150405") + ".jsonl"
	path := filepath.Join(dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log appends one event line. A nil logger accepts and discards events.
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}
	if event.Level.rank() < l.minLevel.rank() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to write %s event: %w", event.Event, err)
	}
	return nil
}

// LogFetch logs one fetched (or failed) upstream page
func (l *EventLogger) LogFetch(source, domain string, page, rows int, duration time.Duration, err error) error {
	level := LevelDebug
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventFetch,
		Domain:   domain,
		Source:   source,
		Page:     page,
		Rows:     rows,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
	})
}

// LogImport logs a loaded input table
func (l *EventLogger) LogImport(domain, path string, rows, cols int) error {
	return l.Log(&Event{
		Level:  LevelInfo,
		Event:  EventImport,
		Domain: domain,
		Path:   path,
		Rows:   rows,
		Extra: map[string]string{
			"columns": fmt.Sprintf("%d", cols),
		},
	})
}

// LogRename logs a column rename applied while unifying a source
func (l *EventLogger) LogRename(domain, source, from, to string) error {
	return l.Log(&Event{
		Level:  LevelDebug,
		Event:  EventRename,
		Domain: domain,
		Source: source,
		Column: to,
		Extra: map[string]string{
			"from": from,
		},
	})
}

// LogDropColumn logs a column removed for exceeding the missing threshold
func (l *EventLogger) LogDropColumn(domain, column string, percent float64) error {
	return l.Log(&Event{
		Level:   LevelWarning,
		Event:   EventDropColumn,
		Domain:  domain,
		Column:  column,
		Percent: percent,
	})
}

// LogFillColumn logs an imputed column
func (l *EventLogger) LogFillColumn(domain, column string, percent float64, fill string) error {
	return l.Log(&Event{
		Level:   LevelInfo,
		Event:   EventFillColumn,
		Domain:  domain,
		Column:  column,
		Percent: percent,
		Action:  fill,
	})
}

// LogDedupe logs duplicate rows removed on a key column
func (l *EventLogger) LogDedupe(domain, key string, removed int) error {
	level := LevelDebug
	if removed > 0 {
		level = LevelInfo
	}
	return l.Log(&Event{
		Level:  level,
		Event:  EventDedupe,
		Domain: domain,
		Column: key,
		Rows:   removed,
	})
}

// LogPersist logs a table written to disk
func (l *EventLogger) LogPersist(domain, path string, rows int, bytesWritten int64) error {
	return l.Log(&Event{
		Level:        LevelInfo,
		Event:        EventPersist,
		Domain:       domain,
		Path:         path,
		Rows:         rows,
		BytesWritten: bytesWritten,
	})
}

// LogQuery logs a catalog lookup
func (l *EventLogger) LogQuery(domain, title string, matches int, duration time.Duration) error {
	return l.Log(&Event{
		Level:    LevelDebug,
		Event:    EventQuery,
		Domain:   domain,
		Rows:     matches,
		Duration: duration.Milliseconds(),
		Extra: map[string]string{
			"titre": title,
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, path string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Path:  path,
		Error: err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
