package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents the severity of a log entry.
type Level int32

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	}
	return INFO
}

// sink is the output shared by a root logger and every child made by With.
type sink struct {
	mu        sync.Mutex
	out       io.Writer
	level     atomic.Int32
	redactPII atomic.Bool
}

// Logger writes one JSON object per line. Children created with With share
// the parent's output, level and redaction setting.
type Logger struct {
	sink   *sink
	fields []interface{}
}

var defaultLogger = newLogger(os.Stderr)

func newLogger(w io.Writer) *Logger {
	s := &sink{out: w}
	s.level.Store(int32(INFO))
	s.redactPII.Store(true)
	return &Logger{sink: s}
}

// Default returns the process-wide logger.
func Default() *Logger { return defaultLogger }

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { defaultLogger.sink.level.Store(int32(l)) }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) { defaultLogger.sink.redactPII.Store(r) }

// SetOutput redirects the default logger. nil restores stderr.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	defaultLogger.sink.mu.Lock()
	defaultLogger.sink.out = w
	defaultLogger.sink.mu.Unlock()
}

// With returns a logger that adds fields to every entry.
func (l *Logger) With(fields ...interface{}) *Logger {
	merged := make([]interface{}, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{sink: l.sink, fields: merged}
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(INFO, msg, fields) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(WARN, msg, fields) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields) }

// With returns a child of the default logger.
func With(fields ...interface{}) *Logger { return defaultLogger.With(fields...) }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields) }

func (l *Logger) log(level Level, msg string, fields []interface{}) {
	if int32(level) < l.sink.level.Load() {
		return
	}
	redact := l.sink.redactPII.Load()

	entry := make(map[string]interface{}, 3+(len(l.fields)+len(fields))/2)
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg
	addFields(entry, l.fields, redact)
	addFields(entry, fields, redact)

	data, err := json.Marshal(entry)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"level":"ERROR","msg":"unencodable log entry","error":%q}`, err.Error()))
	}
	l.sink.mu.Lock()
	_, _ = l.sink.out.Write(append(data, '\n'))
	l.sink.mu.Unlock()
}

// addFields copies key/value pairs into entry. A trailing key without a
// value is logged under "!BADKEY".
func addFields(entry map[string]interface{}, fields []interface{}, redact bool) {
	for i := 0; i < len(fields); i += 2 {
		if i+1 == len(fields) {
			entry["!BADKEY"] = fmt.Sprint(fields[i])
			return
		}
		key := fmt.Sprint(fields[i])
		entry[key] = fieldValue(key, fields[i+1], redact)
	}
}

// fieldValue keeps numbers and booleans typed and renders everything else
// as text, redacting PII from text values when enabled.
func fieldValue(key string, v interface{}, redact bool) interface{} {
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return x
	case string:
		s = x
	case error:
		s = x.Error()
	case time.Duration:
		s = x.String()
	case time.Time:
		s = x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		s = x.String()
	default:
		s = fmt.Sprintf("%v", x)
	}
	if redact {
		s = redactPIIValue(key, s)
	}
	return s
}
