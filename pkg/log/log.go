// Package log defines the logging sink contract the tracker core writes
// to, plus a small set of ready-made sinks. It deliberately does not wrap
// the standard library's log.Logger as a struct embed the way the
// bittorrent-client teacher's logger does, since the core needs structured,
// machine-inspectable fields (url, tier, endpoint, retries, ...) rather
// than a single formatted line per message-bus event.
package log

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level uint8

const (
	Trace Level = iota
	Debug
	Info
	Warn
	Error
	None
)

func (l Level) String() string {
	switch l {
	case Trace:
		return "trace"
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "none"
	}
}

// Record is one log entry. The optional fields are zero-valued when not
// applicable to the event being logged; Sink implementations should omit
// them from their rendering rather than print zero values.
type Record struct {
	Id         string
	Timestamp  time.Time
	Level      Level
	Logger     string
	Message    string
	URL        string
	Tier       int
	Endpoint   int
	Event      string
	HTTPStatus int
	Retries    int
	Interval   time.Duration
}

// Sink receives log records. Implementations must be safe to call from
// multiple goroutines: the tracker manager's worker and the caller's
// goroutine (manual announce) may both log concurrently.
type Sink interface {
	Emit(Record)
}

// Redactor rewrites a record's URL and Message before it reaches a Sink,
// e.g. to strip tracker passkeys from logged URLs.
type Redactor func(Record) Record

// Logger attaches a logger name and an optional redactor to a Sink. It is
// the handle components hold instead of a bare Sink, mirroring how the
// teacher's components each carried their own *log.Logger.
type Logger struct {
	name    string
	sink    Sink
	redact  Redactor
	minimum Level
}

func New(name string, sink Sink, opts ...Option) *Logger {
	l := &Logger{name: name, sink: sink, minimum: Trace}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type Option func(*Logger)

func WithRedactor(r Redactor) Option {
	return func(l *Logger) { l.redact = r }
}

func WithMinimumLevel(level Level) Option {
	return func(l *Logger) { l.minimum = level }
}

func (l *Logger) log(level Level, msg string, fields func(*Record)) {
	if l == nil || l.sink == nil || level < l.minimum {
		return
	}
	rec := Record{
		Id:        uuid.New().String(),
		Timestamp: time.Now(),
		Level:     level,
		Logger:    l.name,
		Message:   msg,
	}
	if fields != nil {
		fields(&rec)
	}
	if l.redact != nil {
		rec = l.redact(rec)
	}
	l.sink.Emit(rec)
}

func (l *Logger) Trace(msg string, fields func(*Record)) { l.log(Trace, msg, fields) }
func (l *Logger) Debug(msg string, fields func(*Record)) { l.log(Debug, msg, fields) }
func (l *Logger) Info(msg string, fields func(*Record))  { l.log(Info, msg, fields) }
func (l *Logger) Warn(msg string, fields func(*Record))  { l.log(Warn, msg, fields) }
func (l *Logger) Error(msg string, fields func(*Record)) { l.log(Error, msg, fields) }

// WriterSink renders records as single lines onto an io.Writer, guarded
// by a mutex so concurrent Emit calls do not interleave partial lines.
// Grounded on the teacher's pkg/log/log.go, which wraps a single
// log.Logger writing to a file created with os.Create("log.txt").
type WriterSink struct {
	mu     sync.Mutex
	logger *log.Logger
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{logger: log.New(w, "", 0)}
}

func (s *WriterSink) Emit(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := fmt.Sprintf("%s [%s] %s: %s", r.Timestamp.Format(time.RFC3339Nano), r.Level, r.Logger, r.Message)
	if r.URL != "" {
		line += fmt.Sprintf(" url=%s", r.URL)
	}
	if r.Tier != 0 {
		line += fmt.Sprintf(" tier=%d", r.Tier)
	}
	if r.Endpoint != 0 {
		line += fmt.Sprintf(" endpoint=%d", r.Endpoint)
	}
	if r.Event != "" {
		line += fmt.Sprintf(" event=%s", r.Event)
	}
	if r.HTTPStatus != 0 {
		line += fmt.Sprintf(" status=%d", r.HTTPStatus)
	}
	if r.Retries != 0 {
		line += fmt.Sprintf(" retries=%d", r.Retries)
	}
	if r.Interval != 0 {
		line += fmt.Sprintf(" interval=%s", r.Interval)
	}
	s.logger.Println(line)
}

// DiscardSink drops every record. Used as the default when a caller has
// not wired up logging.
type DiscardSink struct{}

func (DiscardSink) Emit(Record) {}
