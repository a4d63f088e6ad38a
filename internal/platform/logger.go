package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Logger is the structured logging contract used throughout the
// orchestration core. Implementations must be safe for concurrent use.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// ProductionLogger is a structured logger emitting either one JSON object
// or one human-readable line per event. It never buffers: every call to
// logEvent performs exactly one write.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	format      string
	output      io.Writer
}

// NewProductionLogger builds a Logger from a level/format pair. format is
// either "json" or "text"; level is any of debug/info/warn/error.
func NewProductionLogger(level, format, serviceName string) *ProductionLogger {
	return &ProductionLogger{
		level:       strings.ToLower(level),
		debug:       strings.ToLower(level) == "debug",
		serviceName: serviceName,
		format:      format,
		output:      os.Stdout,
	}
}

// NewProductionLoggerTo is NewProductionLogger with an explicit writer,
// used by tests to capture output.
func NewProductionLoggerTo(level, format, serviceName string, w io.Writer) *ProductionLogger {
	l := NewProductionLogger(level, format, serviceName)
	l.output = w
	return l
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, nil)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, nil)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, nil)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	if p.format == "json" {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"component": "orchestrator",
			"message":   msg,
		}
		if traceID := traceIDFromContext(ctx); traceID != "" {
			entry["trace_id"] = traceID
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
		return
	}

	var fieldStr strings.Builder
	if len(fields) > 0 {
		fieldStr.WriteString(" ")
		for k, v := range fields {
			fmt.Fprintf(&fieldStr, "%s=%v ", k, v)
		}
	}
	traceInfo := ""
	if traceID := traceIDFromContext(ctx); traceID != "" {
		traceInfo = fmt.Sprintf("[trace=%s] ", traceID)
	}
	fmt.Fprintf(p.output, "%s [%s] [%s] %s%s%s\n",
		timestamp, level, p.serviceName, traceInfo, msg, fieldStr.String())
}

// NoOpLogger discards everything; used as a safe default in tests.
type NoOpLogger struct{}

func (NoOpLogger) Info(string, map[string]interface{})                                  {}
func (NoOpLogger) InfoWithContext(context.Context, string, map[string]interface{})       {}
func (NoOpLogger) Warn(string, map[string]interface{})                                  {}
func (NoOpLogger) WarnWithContext(context.Context, string, map[string]interface{})       {}
func (NoOpLogger) Error(string, map[string]interface{})                                 {}
func (NoOpLogger) ErrorWithContext(context.Context, string, map[string]interface{})      {}
func (NoOpLogger) Debug(string, map[string]interface{})                                 {}
